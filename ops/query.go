package ops

import (
	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/msg"
)

// QueryOption adjusts the behavior of the cursor a query opens.
type QueryOption int

// QueryOption constants.
const (
	// TailableCursor leaves the cursor open after the last document so
	// the caller can resume reading when more arrive.
	TailableCursor QueryOption = iota
	// NoCursorTimeout disables the server-side idle timeout for the
	// cursor.
	NoCursorTimeout
	// AwaitData makes a tailable cursor block for a while at the end of
	// data instead of returning an empty batch.
	AwaitData
)

func (o QueryOption) wireFlag() msg.QueryFlags {
	switch o {
	case TailableCursor:
		return msg.TailableCursor
	case NoCursorTimeout:
		return msg.NoCursorTimeout
	case AwaitData:
		return msg.AwaitData
	}
	return 0
}

// Selection names the documents of a collection that match the selector.
// A nil or empty selector matches all documents.
type Selection struct {
	Selector   interface{}
	Collection string
}

// Select creates a Selection.
func Select(selector interface{}, collection string) Selection {
	return Selection{Selector: selector, Collection: collection}
}

// Query describes a read of a selection: which fields to project, how
// many documents to skip and return, the order to return them in, and
// how large the cursor batches should be.
type Query struct {
	Options   []QueryOption
	Selection Selection
	Project   interface{}
	Skip      int32
	// Limit is the maximum number of documents to return. 0 means
	// unlimited.
	Limit int32
	Sort  interface{}
	// Snapshot prevents the same document from being returned twice when
	// an intervening write moves it.
	Snapshot bool
	// BatchSize is the number of documents to fetch per batch. 0 means
	// the server decides.
	BatchSize int32
	Hint      interface{}
}

// NewQuery creates a Query over the given selection with all other
// fields at their defaults.
func NewQuery(selector interface{}, collection string) Query {
	return Query{Selection: Select(selector, collection)}
}

// buildQueryRequest folds a Query into the wire request that opens its
// cursor. The second return value is the limit remaining after the first
// batch, to be carried into subsequent get-mores.
func buildQueryRequest(explain bool, slaveOK bool, q Query, db string) (*msg.Query, int32) {
	flags := msg.QueryFlags(0)
	if slaveOK {
		flags |= msg.SlaveOK
	}
	for _, opt := range q.Options {
		flags |= opt.wireFlag()
	}

	wireBatch, remaining := batchSizeRemainingLimit(q.BatchSize, q.Limit)

	selector := q.Selection.Selector
	if selector == nil {
		selector = bson.D{}
	}

	if !emptyDoc(q.Sort) || q.Snapshot || !emptyDoc(q.Hint) || explain {
		envelope := bson.D{{Name: "$query", Value: selector}}
		if !emptyDoc(q.Sort) {
			envelope = append(envelope, bson.DocElem{Name: "$orderby", Value: q.Sort})
		}
		if q.Snapshot {
			envelope = append(envelope, bson.DocElem{Name: "$snapshot", Value: true})
		}
		if !emptyDoc(q.Hint) {
			envelope = append(envelope, bson.DocElem{Name: "$hint", Value: q.Hint})
		}
		if explain {
			envelope = append(envelope, bson.DocElem{Name: "$explain", Value: true})
		}
		selector = envelope
	}

	return &msg.Query{
		ReqID:                msg.NextRequestID(),
		Flags:                flags,
		FullCollectionName:   db + "." + q.Selection.Collection,
		NumberToSkip:         q.Skip,
		NumberToReturn:       wireBatch,
		Query:                selector,
		ReturnFieldsSelector: q.Project,
	}, remaining
}

// batchSizeRemainingLimit reconciles the requested batch size with the
// remaining limit into the wire batch value. A batch size of exactly 1
// is rewritten to 2 because the server reads a wire value of -1 as
// "return one document and close"; this is a required workaround, not a
// tweak. When the batch covers the whole remaining limit the wire value
// is the negated limit, which tells the server to return one final batch
// and close the cursor itself.
func batchSizeRemainingLimit(batchSize, limit int32) (int32, int32) {
	bs := batchSize
	if bs == 1 {
		bs = 2
	}

	if limit == 0 {
		return bs, 0
	}
	if 0 < bs && bs < limit {
		return bs, limit - bs
	}
	// the sentinel 1 is never consulted: the server closes the cursor
	return -limit, 1
}

func emptyDoc(v interface{}) bool {
	switch doc := v.(type) {
	case nil:
		return true
	case bson.D:
		return len(doc) == 0
	case bson.M:
		return len(doc) == 0
	}
	return false
}
