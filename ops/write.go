package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/msg"
)

// write transmits a single write notice according to the session's
// write mode. Unsafe sends it and returns; Safe follows it with a
// getLastError command in the same batch and inspects the reply.
func write(ctx context.Context, s Session, notice msg.Notice) error {
	if s.writeMode == Unsafe {
		return s.conn.Send(ctx, notice)
	}
	return getLastError(ctx, s, notice)
}

// getLastError sends the notices immediately followed by a getlasterror
// command so the command observes the preceding writes on the same
// connection.
func getLastError(ctx context.Context, s Session, notices ...msg.Notice) error {
	request := msg.NewCommand(
		msg.NextRequestID(),
		s.db,
		false,
		bson.D{{Name: "getlasterror", Value: 1}},
	)

	future, err := s.conn.Call(ctx, request, notices...)
	if err != nil {
		return err
	}

	reply, err := future.Await(ctx)
	if err != nil {
		return err
	}

	var result struct {
		Err  *string `bson:"err"`
		Code int32   `bson:"code"`
	}
	ok, err := reply.Iter().One(&result)
	if err != nil {
		return err
	}
	if !ok {
		panic("no response to getLastError")
	}

	if result.Err == nil || *result.Err == "" {
		return nil
	}
	return &WriteError{Code: result.Code, Message: *result.Err}
}

// Insert stores the document in the collection and returns its _id,
// assigning a fresh ObjectId when the document has none.
func Insert(ctx context.Context, s Session, collection string, doc bson.D) (interface{}, error) {
	doc, id := ensureID(doc)
	err := write(ctx, s, &msg.Insert{
		FullCollectionName: s.fullCollection(collection),
		Documents:          []interface{}{doc},
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// InsertMany stores all the documents in the collection with a single
// notice and returns their _ids in order, assigning fresh ObjectIds
// where missing.
func InsertMany(ctx context.Context, s Session, collection string, docs []bson.D) ([]interface{}, error) {
	ids := make([]interface{}, len(docs))
	wireDocs := make([]interface{}, len(docs))
	for i, doc := range docs {
		doc, id := ensureID(doc)
		wireDocs[i] = doc
		ids[i] = id
	}

	err := write(ctx, s, &msg.Insert{
		FullCollectionName: s.fullCollection(collection),
		Documents:          wireDocs,
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Update applies the updater to the documents matching the selection,
// with the behavior the flags request.
func Update(ctx context.Context, s Session, flags msg.UpdateFlags, sel Selection, updater interface{}) error {
	return write(ctx, s, &msg.Update{
		FullCollectionName: s.fullCollection(sel.Collection),
		Flags:              flags,
		Selector:           selectorDoc(sel),
		Update:             updater,
	})
}

// Replace replaces the first document matching the selection.
func Replace(ctx context.Context, s Session, sel Selection, doc interface{}) error {
	return Update(ctx, s, 0, sel, doc)
}

// Upsert replaces the first document matching the selection, inserting
// the document when nothing matches.
func Upsert(ctx context.Context, s Session, sel Selection, doc interface{}) error {
	return Update(ctx, s, msg.Upsert, sel, doc)
}

// UpdateAll applies the updater to every document matching the
// selection.
func UpdateAll(ctx context.Context, s Session, sel Selection, updater interface{}) error {
	return Update(ctx, s, msg.MultiUpdate, sel, updater)
}

// Save stores the document in the collection: an insert when it has no
// _id, otherwise an upsert keyed on its _id.
func Save(ctx context.Context, s Session, collection string, doc bson.D) error {
	id, found := lookupID(doc)
	if !found {
		_, err := Insert(ctx, s, collection, doc)
		return err
	}
	return Upsert(ctx, s, Select(bson.D{{Name: "_id", Value: id}}, collection), doc)
}

// Delete removes every document matching the selection.
func Delete(ctx context.Context, s Session, sel Selection) error {
	return write(ctx, s, &msg.Delete{
		FullCollectionName: s.fullCollection(sel.Collection),
		Selector:           selectorDoc(sel),
	})
}

// DeleteOne removes the first document matching the selection.
func DeleteOne(ctx context.Context, s Session, sel Selection) error {
	return write(ctx, s, &msg.Delete{
		FullCollectionName: s.fullCollection(sel.Collection),
		Flags:              msg.SingleRemove,
		Selector:           selectorDoc(sel),
	})
}

func ensureID(doc bson.D) (bson.D, interface{}) {
	if id, found := lookupID(doc); found {
		return doc, id
	}

	id := bson.NewObjectId()
	withID := make(bson.D, 0, len(doc)+1)
	withID = append(withID, bson.DocElem{Name: "_id", Value: id})
	withID = append(withID, doc...)
	return withID, id
}

func lookupID(doc bson.D) (interface{}, bool) {
	for _, elem := range doc {
		if elem.Name == "_id" {
			return elem.Value, true
		}
	}
	return nil, false
}

func selectorDoc(sel Selection) interface{} {
	if sel.Selector == nil {
		return bson.D{}
	}
	return sel.Selector
}
