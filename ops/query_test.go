package ops

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/msg"
)

func TestBatchSizeRemainingLimit(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		batchSize     int32
		limit         int32
		wireBatch     int32
		remaining     int32
	}{
		{"unlimited, server default batch", 0, 0, 0, 0},
		{"unlimited", 10, 0, 10, 0},
		{"unlimited, batch size one", 1, 0, 2, 0},
		{"batch smaller than limit", 3, 10, 3, 7},
		{"batch size one under limit", 1, 5, 2, 3},
		{"batch equals limit", 5, 5, -5, 1},
		{"batch larger than limit", 10, 5, -5, 1},
		{"server default batch with limit", 0, 5, -5, 1},
		{"limit one", 4, 1, -1, 1},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			wireBatch, remaining := batchSizeRemainingLimit(tc.batchSize, tc.limit)
			require.Equal(t, tc.wireBatch, wireBatch)
			require.Equal(t, tc.remaining, remaining)
		})
	}
}

func TestBatchSizeOneIsNeverSent(t *testing.T) {
	t.Parallel()

	// the server reads a wire batch of -1 as "limit 1", so a batch size
	// of exactly 1 must never reach the wire
	for limit := int32(0); limit < 20; limit++ {
		wireBatch, _ := batchSizeRemainingLimit(1, limit)
		require.NotEqual(t, int32(1), wireBatch, "limit %d", limit)
		if limit != 1 {
			require.NotEqual(t, int32(-1), wireBatch, "limit %d", limit)
		}
	}
}

func TestBuildQueryRequestPlainSelector(t *testing.T) {
	t.Parallel()

	q := NewQuery(bson.D{{Name: "x", Value: 1}}, "widgets")
	q.Skip = 4
	q.BatchSize = 2
	q.Limit = 10

	request, remaining := buildQueryRequest(false, false, q, "db")

	require.Equal(t, "db.widgets", request.FullCollectionName)
	require.Equal(t, int32(4), request.NumberToSkip)
	require.Equal(t, int32(2), request.NumberToReturn)
	require.Equal(t, int32(8), remaining)
	require.Equal(t, msg.QueryFlags(0), request.Flags)

	// no sort, snapshot, hint or explain: the selector goes bare
	require.Empty(t, cmp.Diff(bson.D{{Name: "x", Value: 1}}, request.Query))
	require.Nil(t, request.ReturnFieldsSelector)
}

func TestBuildQueryRequestEnvelope(t *testing.T) {
	t.Parallel()

	q := NewQuery(bson.D{{Name: "x", Value: 1}}, "widgets")
	q.Sort = bson.D{{Name: "y", Value: 1}}
	q.Snapshot = true
	q.Hint = bson.D{{Name: "x", Value: 1}}

	request, _ := buildQueryRequest(true, false, q, "db")

	expected := bson.D{
		{Name: "$query", Value: bson.D{{Name: "x", Value: 1}}},
		{Name: "$orderby", Value: bson.D{{Name: "y", Value: 1}}},
		{Name: "$snapshot", Value: true},
		{Name: "$hint", Value: bson.D{{Name: "x", Value: 1}}},
		{Name: "$explain", Value: true},
	}
	require.Empty(t, cmp.Diff(expected, request.Query))
}

func TestBuildQueryRequestEnvelopeOnlyWhenNeeded(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(*Query)
		envelope bool
	}{
		{"defaults", func(q *Query) {}, false},
		{"empty sort", func(q *Query) { q.Sort = bson.D{} }, false},
		{"sort", func(q *Query) { q.Sort = bson.D{{Name: "y", Value: 1}} }, true},
		{"snapshot", func(q *Query) { q.Snapshot = true }, true},
		{"hint", func(q *Query) { q.Hint = bson.D{{Name: "x", Value: 1}} }, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q := NewQuery(bson.D{{Name: "x", Value: 1}}, "widgets")
			tc.mutate(&q)

			request, _ := buildQueryRequest(false, false, q, "db")

			doc, ok := request.Query.(bson.D)
			require.True(t, ok)
			if tc.envelope {
				require.Equal(t, "$query", doc[0].Name)
			} else {
				require.Equal(t, "x", doc[0].Name)
			}
		})
	}
}

func TestBuildQueryRequestFlags(t *testing.T) {
	t.Parallel()

	q := NewQuery(nil, "widgets")
	q.Options = []QueryOption{TailableCursor, NoCursorTimeout, AwaitData}

	request, _ := buildQueryRequest(false, true, q, "db")

	expected := msg.SlaveOK | msg.TailableCursor | msg.NoCursorTimeout | msg.AwaitData
	require.Equal(t, expected, request.Flags)

	// a nil selector matches all
	require.Empty(t, cmp.Diff(bson.D{}, request.Query))
}
