package conntest

import (
	"context"
	"fmt"

	"github.com/10gen/mongo-go-query/conn"
	"github.com/10gen/mongo-go-query/msg"
)

// Batch records everything one Send or Call put on the wire together.
type Batch struct {
	Notices []msg.Notice
	Request msg.Request
}

// MockConnection implements conn.Connection against queued replies.
type MockConnection struct {
	Dead      bool
	Batches   []Batch
	ResponseQ []*msg.Reply
	WriteErr  error

	SkipResponseToFixup bool
}

// Desc gets a description of the connection.
func (c *MockConnection) Desc() *conn.Desc {
	return &conn.Desc{}
}

// Alive indicates whether the connection is still usable.
func (c *MockConnection) Alive() bool {
	return !c.Dead
}

// Expired indicates whether the connection should be discarded.
func (c *MockConnection) Expired() bool {
	return c.Dead
}

// Close closes the connection.
func (c *MockConnection) Close() error {
	c.Dead = true
	return nil
}

// Send records the notices as one batch.
func (c *MockConnection) Send(ctx context.Context, notices ...msg.Notice) error {
	if c.WriteErr != nil {
		err := c.WriteErr
		c.WriteErr = nil
		return err
	}

	c.Batches = append(c.Batches, Batch{Notices: notices})
	return nil
}

// Call records the notices and request as one batch and returns a
// future resolved with the next queued reply.
func (c *MockConnection) Call(ctx context.Context, request msg.Request, notices ...msg.Notice) (conn.Future, error) {
	if c.WriteErr != nil {
		err := c.WriteErr
		c.WriteErr = nil
		return nil, err
	}

	c.Batches = append(c.Batches, Batch{Notices: notices, Request: request})

	if len(c.ResponseQ) == 0 {
		return conn.ResolvedFuture(nil, fmt.Errorf("no response queued")), nil
	}

	resp := c.ResponseQ[0]
	c.ResponseQ = c.ResponseQ[1:]
	if !c.SkipResponseToFixup {
		resp.RespTo = request.RequestID()
	}
	return conn.ResolvedFuture(resp, nil), nil
}

// Requests returns the requests sent so far, in order.
func (c *MockConnection) Requests() []msg.Request {
	var requests []msg.Request
	for _, b := range c.Batches {
		if b.Request != nil {
			requests = append(requests, b.Request)
		}
	}
	return requests
}

// Notices returns the notices sent so far, in order.
func (c *MockConnection) Notices() []msg.Notice {
	var notices []msg.Notice
	for _, b := range c.Batches {
		notices = append(notices, b.Notices...)
	}
	return notices
}
