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

func mapReduceFixture() MapReduceOptions {
	return MapReduceOptions{
		Collection: "t",
		Map:        bson.JavaScript{Code: "function() { emit(this.x, 1) }"},
		Reduce:     bson.JavaScript{Code: "function(k, vs) { return Array.sum(vs) }"},
	}
}

func TestRunMapReduceCommandShape(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{msgtest.CreateCommandReply(bson.D{
			{Name: "ok", Value: 1},
			{Name: "result", Value: "tmp.mr.t_1"},
		})},
	}

	mr := mapReduceFixture()
	mr.Out = bson.D{{Name: "replace", Value: "results"}}
	mr.Limit = 100

	result, err := RunMapReduce(context.Background(), session(c), mr)
	require.NoError(t, err)
	require.Equal(t, "tmp.mr.t_1", result.Result)

	cmd := sentCommand(t, c, 0)
	names := make([]string, len(cmd))
	for i, elem := range cmd {
		names[i] = elem.Name
	}
	require.Equal(t, []string{
		"mapreduce", "out", "map", "reduce", "query", "sort", "limit", "keeptemp", "scope", "verbose",
	}, names)
	require.Equal(t, int32(100), cmd[6].Value)
}

func TestRunMapReduceFailure(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{msgtest.CreateCommandReply(bson.D{
			{Name: "ok", Value: 0},
			{Name: "errmsg", Value: "js compile error"},
		})},
	}

	_, err := RunMapReduce(context.Background(), session(c), mapReduceFixture())
	require.Error(t, err)
	require.Contains(t, err.Error(), "js compile error")
}

func TestMapReduceOpensCursorOverResult(t *testing.T) {
	t.Parallel()

	c := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{
			msgtest.CreateCommandReply(bson.D{
				{Name: "ok", Value: 1},
				{Name: "result", Value: "tmp.mr.t_2"},
			}),
			msgtest.CreateCursorReply(0, bson.D{{Name: "_id", Value: "a"}, {Name: "value", Value: 2}}),
		},
	}

	cursor, err := MapReduce(context.Background(), session(c), mapReduceFixture())
	require.NoError(t, err)

	docs, err := cursor.Rest(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// the cursor reads the collection the reply named
	find := c.Requests()[1].(*msg.Query)
	require.Equal(t, "db.tmp.mr.t_2", find.FullCollectionName)
}
