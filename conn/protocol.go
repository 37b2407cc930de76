package conn

import (
	"context"
	"fmt"

	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/internal"
	"github.com/10gen/mongo-go-query/msg"
)

// ExecuteCommand executes the request on the connection and decodes the
// single response document into out.
func ExecuteCommand(ctx context.Context, c Connection, request msg.Request, out interface{}) error {
	return ExecuteCommands(ctx, c, []msg.Request{request}, []interface{}{out})
}

// ExecuteCommands submits the requests one after another, each in its
// own batch and without waiting in between, and then awaits their
// replies in order.
func ExecuteCommands(ctx context.Context, c Connection, requests []msg.Request, out []interface{}) error {
	if len(requests) != len(out) {
		panic("invalid arguments. 'out' length must equal 'requests' length")
	}

	futures := make([]Future, 0, len(requests))
	for _, req := range requests {
		f, err := c.Call(ctx, req)
		if err != nil {
			return internal.WrapErrorf(err, "failed sending command(%d)", req.RequestID())
		}
		futures = append(futures, f)
	}

	var errors []error
	for i, f := range futures {
		reply, err := f.Await(ctx)
		if err != nil {
			return internal.WrapErrorf(err, "failed receiving command response for %d", requests[i].RequestID())
		}

		err = readCommandResponse(reply, out[i])
		if err != nil {
			errors = append(errors, err)
			continue
		}
	}

	return internal.MultiError(errors...)
}

func readCommandResponse(reply *msg.Reply, out interface{}) error {
	if reply.NumberReturned == 0 {
		return ErrNoDocCommandResponse
	}
	if reply.NumberReturned > 1 {
		return ErrMultiDocCommandResponse
	}

	if reply.ResponseFlags&msg.QueryFailure != 0 {
		// read the first document as the failure
		var doc bson.D
		ok, err := reply.Iter().One(&doc)
		if err != nil {
			return NewCommandResponseError(fmt.Sprintf("failed to read command failure document: %v", err))
		}
		if !ok {
			return ErrUnknownCommandFailure
		}
		return &CommandFailureError{
			Msg:      "command failure",
			Response: doc,
		}
	}

	// read into raw first to check the response for the ok field
	var raw bson.RawD
	ok, err := reply.Iter().One(&raw)
	if err != nil {
		return NewCommandResponseError(fmt.Sprintf("failed to read command response document: %v", err))
	}
	if !ok {
		return ErrNoCommandResponse
	}

	ok = false
	var errmsg, codeName string
	var code int32
	for _, rawElem := range raw {
		switch rawElem.Name {
		case "ok":
			var v int32
			err := rawElem.Value.Unmarshal(&v)
			if err == nil && v == 1 {
				ok = true
			}
		case "errmsg":
			rawElem.Value.Unmarshal(&errmsg)
		case "codeName":
			rawElem.Value.Unmarshal(&codeName)
		case "code":
			rawElem.Value.Unmarshal(&code)
		}
	}

	if !ok {
		if errmsg == "" {
			errmsg = "command failed"
		}
		return &CommandError{
			Code:    code,
			Message: errmsg,
			Name:    codeName,
		}
	}

	// re-decode the response into the user provided structure
	ok, err = reply.Iter().One(out)
	if err != nil {
		return NewCommandResponseError(fmt.Sprintf("failed to read command response document: %v", err))
	}
	if !ok {
		return ErrNoCommandResponse
	}

	return nil
}
