package conn

import (
	"context"

	"github.com/10gen/mongo-go-query/msg"
)

// Future is a promise for a reply that has been requested but not yet
// observed.
type Future interface {
	// Await blocks until the reply is available. Awaiting a future
	// drains the connection's receive side in submission order, so
	// replies to earlier requests are resolved on the way.
	Await(ctx context.Context) (*msg.Reply, error)
}

type replyFuture struct {
	conn  *connectionImpl
	reqID int32
	done  chan struct{}

	reply *msg.Reply
	err   error
}

func (f *replyFuture) Await(ctx context.Context) (*msg.Reply, error) {
	for {
		select {
		case <-f.done:
			return f.reply, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		f.conn.readMu.Lock()
		select {
		case <-f.done:
			f.conn.readMu.Unlock()
			return f.reply, f.err
		default:
		}

		err := f.conn.readOne()
		f.conn.readMu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

func (f *replyFuture) resolve(reply *msg.Reply, err error) {
	f.reply = reply
	f.err = err
	close(f.done)
}

// ResolvedFuture creates a future that is already resolved. It is
// intended for fakes and tests.
func ResolvedFuture(reply *msg.Reply, err error) Future {
	return &resolvedFuture{reply, err}
}

type resolvedFuture struct {
	reply *msg.Reply
	err   error
}

func (f *resolvedFuture) Await(_ context.Context) (*msg.Reply, error) {
	return f.reply, f.err
}
