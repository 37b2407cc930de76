package conn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/msg"
)

// fakeTransport serves pre-encoded replies and records written bytes.
type fakeTransport struct {
	reads  bytes.Buffer
	writes bytes.Buffer

	writeCalls int
	readErr    error
	closed     bool
}

func (t *fakeTransport) Read(p []byte) (int, error) {
	if t.readErr != nil {
		return 0, t.readErr
	}
	if t.reads.Len() == 0 {
		return 0, io.EOF
	}
	return t.reads.Read(p)
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	t.writeCalls++
	return t.writes.Write(p)
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

func newTestConn(transport io.ReadWriteCloser) *connectionImpl {
	return &connectionImpl{
		id:        "test[-1]",
		codec:     msg.NewWireProtocolCodec(),
		transport: transport,
	}
}

func queueReply(t *testing.T, transport *fakeTransport, respTo int32, doc interface{}) {
	t.Helper()

	payload, err := bson.Marshal(doc)
	require.NoError(t, err)

	codec := msg.NewWireProtocolCodec()
	err = codec.Encode(&transport.reads, &msg.Reply{
		RespTo:         respTo,
		NumberReturned: 1,
		DocumentsBytes: payload,
	})
	require.NoError(t, err)
}

func TestCallResolvesInSubmissionOrder(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	subject := newTestConn(transport)

	first := msg.NewCommand(msg.NextRequestID(), "admin", false, bson.D{{Name: "ping", Value: 1}})
	second := msg.NewCommand(msg.NextRequestID(), "admin", false, bson.D{{Name: "ping", Value: 2}})

	queueReply(t, transport, first.RequestID(), bson.D{{Name: "ok", Value: 1}, {Name: "seq", Value: 1}})
	queueReply(t, transport, second.RequestID(), bson.D{{Name: "ok", Value: 1}, {Name: "seq", Value: 2}})

	firstFuture, err := subject.Call(context.Background(), first)
	require.NoError(t, err)
	secondFuture, err := subject.Call(context.Background(), second)
	require.NoError(t, err)

	// forcing the later future drains the earlier reply on the way
	secondReply, err := secondFuture.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, second.RequestID(), secondReply.ResponseTo())

	firstReply, err := firstFuture.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.RequestID(), firstReply.ResponseTo())

	var seq struct {
		Seq int `bson:"seq"`
	}
	ok, err := firstReply.Iter().One(&seq)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, seq.Seq)
}

func TestCallBatchesNoticesWithRequest(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	subject := newTestConn(transport)

	insert := &msg.Insert{FullCollectionName: "db.t", Documents: []interface{}{bson.D{{Name: "x", Value: 1}}}}
	request := msg.NewCommand(msg.NextRequestID(), "db", false, bson.D{{Name: "getlasterror", Value: 1}})

	queueReply(t, transport, request.RequestID(), bson.D{{Name: "ok", Value: 1}})

	future, err := subject.Call(context.Background(), request, insert)
	require.NoError(t, err)

	// one write on the transport carries both messages
	require.Equal(t, 1, transport.writeCalls)

	_, err = future.Await(context.Background())
	require.NoError(t, err)
}

func TestReadErrorPoisonsOutstandingFutures(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{readErr: errors.New("broken pipe")}
	subject := newTestConn(transport)

	first, err := subject.Call(context.Background(), msg.NewCommand(msg.NextRequestID(), "admin", false, bson.D{{Name: "ping", Value: 1}}))
	require.NoError(t, err)
	second, err := subject.Call(context.Background(), msg.NewCommand(msg.NextRequestID(), "admin", false, bson.D{{Name: "ping", Value: 1}}))
	require.NoError(t, err)

	_, err = first.Await(context.Background())
	require.Error(t, err)
	require.IsType(t, &ConnectionError{}, err)

	_, err = second.Await(context.Background())
	require.Error(t, err)

	require.False(t, subject.Alive())

	// further use fails fast
	err = subject.Send(context.Background(), &msg.KillCursors{CursorIDs: []int64{1}})
	require.Error(t, err)
}

func TestOutOfOrderReplyFailsConnection(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	subject := newTestConn(transport)

	request := msg.NewCommand(msg.NextRequestID(), "admin", false, bson.D{{Name: "ping", Value: 1}})
	queueReply(t, transport, request.RequestID()+100, bson.D{{Name: "ok", Value: 1}})

	future, err := subject.Call(context.Background(), request)
	require.NoError(t, err)

	_, err = future.Await(context.Background())
	require.Error(t, err)
	require.False(t, subject.Alive())
}

func TestSendWritesNotices(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	subject := newTestConn(transport)

	err := subject.Send(context.Background(),
		&msg.Delete{FullCollectionName: "db.t", Selector: bson.D{}},
		&msg.KillCursors{CursorIDs: []int64{5}},
	)
	require.NoError(t, err)
	require.Equal(t, 1, transport.writeCalls)

	err = subject.Send(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, transport.writeCalls, "an empty send stays off the wire")
}

func TestCloseResolvesOutstandingFutures(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	subject := newTestConn(transport)

	future, err := subject.Call(context.Background(), msg.NewCommand(msg.NextRequestID(), "admin", false, bson.D{{Name: "ping", Value: 1}}))
	require.NoError(t, err)

	require.NoError(t, subject.Close())
	require.True(t, transport.closed)

	_, err = future.Await(context.Background())
	require.Error(t, err)
}
