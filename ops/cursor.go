package ops

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/conn"
	"github.com/10gen/mongo-go-query/msg"
)

// Find runs the query and returns a cursor over its results. The
// request is submitted immediately; its reply is not read until the
// cursor is first advanced.
func Find(ctx context.Context, s Session, q Query) (*Cursor, error) {
	request, remaining := buildQueryRequest(false, s.slaveOK(), q, s.db)

	future, err := s.conn.Call(ctx, request)
	if err != nil {
		return nil, err
	}

	return newCursor(s.conn, request.FullCollectionName, q.BatchSize, future, remaining), nil
}

// Cursor owns a server-side cursor and iterates its stream of
// documents. A typical usage:
//
//	cursor, err := ops.Find(ctx, s, q)
//	var doc bson.D
//	for cursor.Next(ctx, &doc) {
//		fmt.Println(doc)
//	}
//	err = cursor.Err()
//	err = cursor.Close(ctx)
//
// A Cursor is safe for use from multiple goroutines, which will
// serialize; single-owner use is recommended.
type Cursor struct {
	conn           conn.Connection
	fullCollection string
	batchSize      int32

	mu sync.Mutex

	// delayed, when non-nil, is a batch that has been requested but not
	// yet observed. delayedLimit is the limit that remains once it
	// lands.
	delayed      conn.Future
	delayedLimit int32

	remainingLimit int32
	cursorID       int64
	docs           []bson.Raw
	err            error
}

func newCursor(c conn.Connection, fullCollection string, batchSize int32, future conn.Future, remainingLimit int32) *Cursor {
	cursor := &Cursor{
		conn:           c,
		fullCollection: fullCollection,
		batchSize:      batchSize,
		delayed:        future,
		delayedLimit:   remainingLimit,
	}

	// if the owner drops the cursor without closing it, make a
	// best-effort attempt to release the server-side cursor
	runtime.SetFinalizer(cursor, (*Cursor).finalize)

	return cursor
}

// Next gets the next document from the cursor, decoding it into result.
// It returns false when the cursor is exhausted or when an error
// occurred; the two are told apart with Err.
func (c *Cursor) Next(ctx context.Context, result interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.next(ctx)
	if !ok {
		return false
	}

	err := bson.Unmarshal(doc.Data, result)
	if err != nil {
		c.err = err
		return false
	}
	return true
}

// NextN gets up to n documents from the cursor, stopping early when the
// cursor is exhausted.
func (c *Cursor) NextN(ctx context.Context, n int) ([]bson.Raw, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var docs []bson.Raw
	for len(docs) < n {
		doc, ok := c.next(ctx)
		if !ok {
			break
		}
		docs = append(docs, doc)
	}
	return docs, c.err
}

// Rest drains the cursor, returning all remaining documents. Afterwards
// the cursor is closed.
func (c *Cursor) Rest(ctx context.Context) ([]bson.Raw, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var docs []bson.Raw
	for {
		doc, ok := c.next(ctx)
		if !ok {
			break
		}
		docs = append(docs, doc)
	}
	return docs, c.err
}

// Err returns the error status of the cursor. Exhaustion is not an
// error.
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases the server-side cursor if one is still open. It is
// idempotent, and a cursor that failed or drained closes without a
// round-trip.
func (c *Cursor) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// observe an in-flight batch so we learn the cursor id; a reply
	// that fails to land leaves nothing to kill
	c.force(ctx)

	cursorID := c.cursorID
	c.cursorID = 0
	c.docs = nil

	if cursorID == 0 {
		return nil
	}

	return c.conn.Send(ctx, &msg.KillCursors{CursorIDs: []int64{cursorID}})
}

// IsClosed indicates whether the cursor is known to have no more
// documents, locally or on the server.
func (c *Cursor) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delayed == nil && c.cursorID == 0 && len(c.docs) == 0
}

// next pops the head document, forcing a delayed batch and prefetching
// the following one when this batch runs out. Callers must hold mu.
func (c *Cursor) next(ctx context.Context) (bson.Raw, bool) {
	if c.err != nil {
		return bson.Raw{}, false
	}
	if err := c.force(ctx); err != nil {
		return bson.Raw{}, false
	}

	if len(c.docs) == 0 {
		if c.cursorID == 0 {
			// drained
			return bson.Raw{}, false
		}
		panic(fmt.Sprintf("cursor %d: server returned a live cursor with an empty batch", c.cursorID))
	}

	doc := c.docs[0]
	c.docs = c.docs[1:]

	if len(c.docs) == 0 && c.cursorID != 0 {
		wireBatch, remaining := batchSizeRemainingLimit(c.batchSize, c.remainingLimit)
		getMore := &msg.GetMore{
			ReqID:              msg.NextRequestID(),
			FullCollectionName: c.fullCollection,
			NumberToReturn:     wireBatch,
			CursorID:           c.cursorID,
		}

		future, err := c.conn.Call(ctx, getMore)
		if err != nil {
			// the popped document is still good; the error surfaces on
			// the next advance
			c.err = err
			c.cursorID = 0
		} else {
			c.delayed = future
			c.delayedLimit = remaining
		}
	}

	return doc, true
}

// force observes a delayed batch, if any, and folds its reply into the
// cursor state. A failure closes the cursor locally and is recorded in
// err.
func (c *Cursor) force(ctx context.Context) error {
	if c.delayed == nil {
		return nil
	}

	future := c.delayed
	c.delayed = nil

	reply, err := future.Await(ctx)
	if err == nil {
		err = c.fromReply(reply, c.delayedLimit)
	}
	if err != nil {
		c.err = err
		c.cursorID = 0
		c.docs = nil
		return err
	}
	return nil
}

// fromReply converts a reply into cursor state, raising the failure the
// response flags indicate, if any.
func (c *Cursor) fromReply(reply *msg.Reply, remainingLimit int32) error {
	if reply.ResponseFlags&msg.CursorNotFound != 0 {
		return &CursorNotFoundError{ID: reply.CursorID}
	}
	if reply.ResponseFlags&msg.QueryFailure != 0 {
		var errDoc struct {
			Err string `bson:"$err"`
		}
		reply.Iter().One(&errDoc)
		return &QueryFailureError{Message: errDoc.Err}
	}
	// AwaitCapable is informational

	docs, err := reply.Documents()
	if err != nil {
		return err
	}

	c.remainingLimit = remainingLimit
	c.cursorID = reply.CursorID
	c.docs = docs
	return nil
}

// finalize runs on garbage collection of an unclosed cursor. Errors are
// swallowed: there is nobody left to report them to.
func (c *Cursor) finalize() {
	if c.delayed != nil || c.cursorID == 0 {
		// a batch still in flight keeps the reply unread; killing the
		// cursor here would have to block, so leave it to the server's
		// idle timeout
		return
	}
	defer func() { recover() }()
	c.conn.Send(context.Background(), &msg.KillCursors{CursorIDs: []int64{c.cursorID}})
}
