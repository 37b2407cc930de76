package ops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/internal/conntest"
	"github.com/10gen/mongo-go-query/internal/msgtest"
	"github.com/10gen/mongo-go-query/msg"
	. "github.com/10gen/mongo-go-query/ops"
)

func okReply() *msg.Reply {
	return msgtest.CreateCommandReply(bson.D{{Name: "ok", Value: 1}})
}

func TestInsertUnsafe(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{}
	s := session(c).WithWriteMode(Unsafe)

	id, err := Insert(context.Background(), s, "t", bson.D{{Name: "x", Value: 1}})
	require.NoError(t, err)
	require.IsType(t, bson.ObjectId(""), id)

	// a fire-and-forget notice, no round-trip
	require.Len(t, c.Batches, 1)
	require.Nil(t, c.Batches[0].Request)
	require.Len(t, c.Batches[0].Notices, 1)

	insert := c.Batches[0].Notices[0].(*msg.Insert)
	require.Equal(t, "db.t", insert.FullCollectionName)
	require.Len(t, insert.Documents, 1)
}

func TestInsertSafePiggybacksGetLastError(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{okReply()},
	}
	s := session(c)

	_, err := Insert(context.Background(), s, "t", bson.D{{Name: "x", Value: 1}})
	require.NoError(t, err)

	// the notice and the getlasterror command travel in one batch
	require.Len(t, c.Batches, 1)
	batch := c.Batches[0]
	require.Len(t, batch.Notices, 1)
	require.IsType(t, &msg.Insert{}, batch.Notices[0])

	query, ok := batch.Request.(*msg.Query)
	require.True(t, ok)
	require.Equal(t, "db.$cmd", query.FullCollectionName)
	cmd, ok := query.Query.(bson.D)
	require.True(t, ok)
	require.Equal(t, "getlasterror", cmd[0].Name)
}

func TestInsertPreservesID(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{okReply()},
	}

	id, err := Insert(context.Background(), session(c), "t", bson.D{{Name: "_id", Value: 42}, {Name: "x", Value: 1}})
	require.NoError(t, err)
	require.Equal(t, 42, id)

	insert := c.Batches[0].Notices[0].(*msg.Insert)
	require.Equal(t, bson.D{{Name: "_id", Value: 42}, {Name: "x", Value: 1}}, insert.Documents[0])
}

func TestInsertAssignsID(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{okReply()},
	}

	id, err := Insert(context.Background(), session(c), "t", bson.D{{Name: "x", Value: 1}})
	require.NoError(t, err)

	// the returned id is the one in the stored document
	insert := c.Batches[0].Notices[0].(*msg.Insert)
	stored := insert.Documents[0].(bson.D)
	require.Equal(t, "_id", stored[0].Name)
	require.Equal(t, id, stored[0].Value)
}

func TestInsertMany(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{okReply()},
	}

	docs := []bson.D{
		{{Name: "x", Value: 1}},
		{{Name: "_id", Value: "keep"}, {Name: "x", Value: 2}},
		{{Name: "x", Value: 3}},
	}
	ids, err := InsertMany(context.Background(), session(c), "t", docs)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.Equal(t, "keep", ids[1])
	require.IsType(t, bson.ObjectId(""), ids[0])
	require.IsType(t, bson.ObjectId(""), ids[2])

	// one notice carries all the documents
	require.Len(t, c.Batches, 1)
	insert := c.Batches[0].Notices[0].(*msg.Insert)
	require.Len(t, insert.Documents, 3)
}

func TestSafeWriteFailure(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{msgtest.CreateCommandReply(bson.D{
			{Name: "err", Value: "E11000 duplicate key error"},
			{Name: "code", Value: 11000},
			{Name: "ok", Value: 1},
		})},
	}

	_, err := Insert(context.Background(), session(c), "t", bson.D{{Name: "_id", Value: 1}})

	writeErr, ok := err.(*WriteError)
	require.True(t, ok)
	require.Equal(t, int32(11000), writeErr.Code)
	require.Equal(t, "E11000 duplicate key error", writeErr.Message)
}

func TestUnsafeWriteIgnoresFailure(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{}
	s := session(c).WithWriteMode(Unsafe)

	// nothing is queued: an unsafe write never reads a reply
	_, err := Insert(context.Background(), s, "t", bson.D{{Name: "_id", Value: 1}})
	require.NoError(t, err)
}

func TestUpdateFamilyFlags(t *testing.T) {
	t.Parallel()

	sel := Select(bson.D{{Name: "x", Value: 1}}, "t")
	updater := bson.D{{Name: "$set", Value: bson.D{{Name: "y", Value: 2}}}}

	testCases := []struct {
		name  string
		run   func(context.Context, Session) error
		flags msg.UpdateFlags
	}{
		{"replace", func(ctx context.Context, s Session) error {
			return Replace(ctx, s, sel, updater)
		}, 0},
		{"upsert", func(ctx context.Context, s Session) error {
			return Upsert(ctx, s, sel, updater)
		}, msg.Upsert},
		{"updateAll", func(ctx context.Context, s Session) error {
			return UpdateAll(ctx, s, sel, updater)
		}, msg.MultiUpdate},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := &conntest.MockConnection{
				ResponseQ: []*msg.Reply{okReply()},
			}

			require.NoError(t, tc.run(context.Background(), session(c)))

			update := c.Batches[0].Notices[0].(*msg.Update)
			require.Equal(t, "db.t", update.FullCollectionName)
			require.Equal(t, tc.flags, update.Flags)
		})
	}
}

func TestSaveWithoutIDInserts(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{okReply()},
	}

	err := Save(context.Background(), session(c), "t", bson.D{{Name: "x", Value: 1}})
	require.NoError(t, err)
	require.IsType(t, &msg.Insert{}, c.Batches[0].Notices[0])
}

func TestSaveWithIDUpserts(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{okReply()},
	}

	err := Save(context.Background(), session(c), "t", bson.D{{Name: "_id", Value: 7}, {Name: "x", Value: 1}})
	require.NoError(t, err)

	update, ok := c.Batches[0].Notices[0].(*msg.Update)
	require.True(t, ok)
	require.Equal(t, msg.Upsert, update.Flags)
	require.Equal(t, bson.D{{Name: "_id", Value: 7}}, update.Selector)
}

func TestDeleteFamilyFlags(t *testing.T) {
	t.Parallel()

	sel := Select(bson.D{{Name: "x", Value: 1}}, "t")

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{okReply(), okReply()},
	}

	require.NoError(t, Delete(context.Background(), session(c), sel))
	require.NoError(t, DeleteOne(context.Background(), session(c), sel))

	first := c.Batches[0].Notices[0].(*msg.Delete)
	require.Equal(t, msg.DeleteFlags(0), first.Flags)
	second := c.Batches[1].Notices[0].(*msg.Delete)
	require.Equal(t, msg.SingleRemove, second.Flags)
}
