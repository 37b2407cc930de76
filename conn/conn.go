package conn

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/internal"
	"github.com/10gen/mongo-go-query/msg"
)

var globalClientConnectionID int32

func nextClientConnectionID() int32 {
	return atomic.AddInt32(&globalClientConnectionID, 1)
}

// Dialer dials a connection.
type Dialer func(Endpoint, ...Option) (ConnectionCloser, error)

// Dial opens a connection to a server.
func Dial(endpoint Endpoint, opts ...Option) (ConnectionCloser, error) {
	cfg := newConfig(opts...)

	transport, err := cfg.dialer(endpoint)
	if err != nil {
		return nil, err
	}

	c := &connectionImpl{
		id:        fmt.Sprintf("%s[-%d]", endpoint, nextClientConnectionID()),
		codec:     cfg.codec,
		ep:        endpoint,
		transport: transport,
	}

	err = c.initialize(cfg.appName)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// Connection multiplexes notices and request/reply exchanges over a
// single ordered byte stream to one server.
type Connection interface {
	// Desc gets a description of the connection.
	Desc() *Desc
	// Send transmits the notices as a single batch. It does not wait
	// for anything from the server; notices never produce replies.
	Send(ctx context.Context, notices ...msg.Notice) error
	// Call transmits the notices immediately followed by the request,
	// all in a single batch, and returns a promise for the request's
	// reply. The reply is not read from the stream until the future is
	// awaited.
	Call(ctx context.Context, request msg.Request, notices ...msg.Notice) (Future, error)
	// Alive indicates whether the connection is still usable.
	Alive() bool
	// Expired indicates whether the connection should be discarded.
	Expired() bool
}

// ConnectionCloser is a Connection that can be closed.
type ConnectionCloser interface {
	Connection

	// Close closes the connection.
	Close() error
}

type connectionImpl struct {
	// if id is negative, it's the client identifier; otherwise it's the
	// same as the id the server is using.
	id        string
	codec     msg.Codec
	desc      *Desc
	ep        Endpoint
	transport io.ReadWriteCloser

	writeMu sync.Mutex // serializes batches onto the transport
	readMu  sync.Mutex // serializes draining of replies

	stateMu sync.Mutex // guards pending, dead and err
	pending []*replyFuture
	dead    bool
	err     error
}

func (c *connectionImpl) Desc() *Desc {
	return c.desc
}

func (c *connectionImpl) Alive() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return !c.dead
}

func (c *connectionImpl) Expired() bool {
	return !c.Alive()
}

func (c *connectionImpl) Close() error {
	c.fail(c.wrapError(nil, "connection closed"))
	err := c.transport.Close()
	if err != nil {
		return c.wrapError(err, "failed closing")
	}

	return nil
}

func (c *connectionImpl) Send(ctx context.Context, notices ...msg.Notice) error {
	if len(notices) == 0 {
		return nil
	}

	messages := make([]msg.Message, 0, len(notices))
	for _, n := range notices {
		messages = append(messages, n)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.brokenErr(); err != nil {
		return err
	}

	err := c.codec.Encode(c.transport, messages...)
	if err != nil {
		err = c.wrapError(err, "failed writing")
		c.fail(err)
		return err
	}
	return nil
}

func (c *connectionImpl) Call(ctx context.Context, request msg.Request, notices ...msg.Notice) (Future, error) {
	messages := make([]msg.Message, 0, len(notices)+1)
	for _, n := range notices {
		messages = append(messages, n)
	}
	messages = append(messages, request)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.brokenErr(); err != nil {
		return nil, err
	}

	f := &replyFuture{
		conn:  c,
		reqID: request.RequestID(),
		done:  make(chan struct{}),
	}

	// the future must be queued before the batch hits the wire so the
	// receive side sees submission order
	c.stateMu.Lock()
	c.pending = append(c.pending, f)
	c.stateMu.Unlock()

	err := c.codec.Encode(c.transport, messages...)
	if err != nil {
		err = c.wrapError(err, "failed writing")
		c.fail(err)
		return nil, err
	}

	return f, nil
}

// readOne reads the next reply off the stream and resolves the oldest
// outstanding future with it. Callers must hold readMu.
func (c *connectionImpl) readOne() error {
	if err := c.brokenErr(); err != nil {
		return err
	}

	resp, err := c.codec.Decode(c.transport)
	if err != nil {
		err = c.wrapError(err, "failed reading")
		c.fail(err)
		return err
	}

	reply, ok := resp.(*msg.Reply)
	if !ok {
		err = c.wrapError(nil, fmt.Sprintf("failed reading: invalid message type received: %T", resp))
		c.fail(err)
		return err
	}

	c.stateMu.Lock()
	if len(c.pending) == 0 {
		c.stateMu.Unlock()
		err = c.wrapError(nil, fmt.Sprintf("unsolicited reply to %d", reply.ResponseTo()))
		c.fail(err)
		return err
	}
	head := c.pending[0]
	c.pending = c.pending[1:]
	c.stateMu.Unlock()

	if reply.ResponseTo() != head.reqID {
		err = c.wrapError(nil, fmt.Sprintf("received out of order response: expected %d but got %d", head.reqID, reply.ResponseTo()))
		c.fail(err)
		return err
	}

	head.resolve(reply, nil)
	return nil
}

// fail marks the connection dead and resolves every outstanding future
// with the error.
func (c *connectionImpl) fail(err error) {
	c.stateMu.Lock()
	if c.dead {
		c.stateMu.Unlock()
		return
	}
	c.dead = true
	c.err = err
	pending := c.pending
	c.pending = nil
	c.stateMu.Unlock()

	for _, f := range pending {
		f.resolve(nil, err)
	}
}

func (c *connectionImpl) brokenErr() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.dead {
		if c.err != nil {
			return c.err
		}
		return c.wrapError(nil, "connection is closed")
	}
	return nil
}

func (c *connectionImpl) String() string {
	return c.id
}

func (c *connectionImpl) wrapError(inner error, message string) error {
	return &ConnectionError{
		c.id,
		fmt.Sprintf("connection(%s) error: %s", c.id, message),
		inner,
	}
}

func (c *connectionImpl) initialize(appName string) error {
	isMasterResult, buildInfoResult, err := describeServer(c, createClientDoc(appName))
	if err != nil {
		return err
	}

	c.desc = &Desc{
		Endpoint:            c.ep,
		GitVersion:          buildInfoResult.GitVersion,
		Version:             Version{Desc: buildInfoResult.Version, Parts: buildInfoResult.VersionArray},
		MaxBSONObjectSize:   isMasterResult.MaxBSONObjectSize,
		MaxMessageSizeBytes: isMasterResult.MaxMessageSizeBytes,
		MaxWriteBatchSize:   isMasterResult.MaxWriteBatchSize,
		ReadOnly:            isMasterResult.ReadOnly,
		WireVersion: Range{
			Min: isMasterResult.MinWireVersion,
			Max: isMasterResult.MaxWireVersion,
		},
	}

	getLastErrorReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "getLastError", Value: 1}},
	)

	var getLastErrorResult struct {
		ConnectionID int32 `bson:"connectionId"`
	}
	err = ExecuteCommand(context.Background(), c, getLastErrorReq, &getLastErrorResult)
	// this result is only used to correlate our logs with the
	// server's logs, so a failure is not fatal
	if err == nil {
		c.id = fmt.Sprintf("%s[%d]", c.ep, getLastErrorResult.ConnectionID)
	}

	return nil
}

func createClientDoc(appName string) bson.M {
	clientDoc := bson.M{
		"driver": bson.M{
			"name":    "mongo-go-query",
			"version": internal.Version,
		},
		"os": bson.M{
			"type":         "unknown",
			"name":         runtime.GOOS,
			"architecture": runtime.GOARCH,
			"version":      "unknown",
		},
		"platform": nil,
	}
	if appName != "" {
		clientDoc["application"] = bson.M{"name": appName}
	}

	return clientDoc
}

func describeServer(c Connection, clientDoc bson.M) (*isMasterResult, *buildInfoResult, error) {
	isMasterCmd := bson.D{{Name: "ismaster", Value: 1}}
	if clientDoc != nil {
		isMasterCmd = append(isMasterCmd, bson.DocElem{
			Name:  "client",
			Value: clientDoc,
		})
	}

	isMasterReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		isMasterCmd,
	)
	buildInfoReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "buildInfo", Value: 1}},
	)

	var isMaster isMasterResult
	var buildInfo buildInfoResult
	err := ExecuteCommands(context.Background(), c, []msg.Request{isMasterReq, buildInfoReq}, []interface{}{&isMaster, &buildInfo})
	if err != nil {
		return nil, nil, err
	}

	return &isMaster, &buildInfo, nil
}

type isMasterResult struct {
	IsMaster            bool   `bson:"ismaster"`
	MaxBSONObjectSize   uint32 `bson:"maxBsonObjectSize"`
	MaxMessageSizeBytes uint32 `bson:"maxMessageSizeBytes"`
	MaxWriteBatchSize   uint16 `bson:"maxWriteBatchSize"`
	MinWireVersion      int32  `bson:"minWireVersion"`
	MaxWireVersion      int32  `bson:"maxWireVersion"`
	ReadOnly            bool   `bson:"readOnly"`
}

type buildInfoResult struct {
	GitVersion   string  `bson:"gitVersion"`
	Version      string  `bson:"version"`
	VersionArray []uint8 `bson:"versionArray"`
}
