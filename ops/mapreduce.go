package ops

import (
	"context"
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// MapReduceOptions configures a mapReduce command over the documents
// matching Selector.
type MapReduceOptions struct {
	Collection string
	Map        bson.JavaScript
	Reduce     bson.JavaScript
	Selector   interface{}
	Sort       interface{}
	Limit      int32
	// Out names the output specification. Nil leaves the server's
	// default, a temporary collection.
	Out      interface{}
	Finalize *bson.JavaScript
	Scope    interface{}
	KeepTemp bool
	Verbose  bool
}

func (mr MapReduceOptions) document() bson.D {
	doc := bson.D{{Name: "mapreduce", Value: mr.Collection}}
	if mr.Out != nil {
		doc = append(doc, bson.DocElem{Name: "out", Value: mr.Out})
	}
	if mr.Finalize != nil {
		doc = append(doc, bson.DocElem{Name: "finalize", Value: *mr.Finalize})
	}
	doc = append(doc,
		bson.DocElem{Name: "map", Value: mr.Map},
		bson.DocElem{Name: "reduce", Value: mr.Reduce},
		bson.DocElem{Name: "query", Value: emptyIfNil(mr.Selector)},
		bson.DocElem{Name: "sort", Value: emptyIfNil(mr.Sort)},
		bson.DocElem{Name: "limit", Value: mr.Limit},
		bson.DocElem{Name: "keeptemp", Value: mr.KeepTemp},
		bson.DocElem{Name: "scope", Value: emptyIfNil(mr.Scope)},
		bson.DocElem{Name: "verbose", Value: mr.Verbose},
	)
	return doc
}

// MapReduceResult is the reply to a mapReduce command whose output went
// to a collection.
type MapReduceResult struct {
	// Result names the collection holding the output.
	Result     string   `bson:"result"`
	TimeMillis int64    `bson:"timeMillis"`
	Counts     bson.Raw `bson:"counts"`
	Ok         int      `bson:"ok"`
	Errmsg     string   `bson:"errmsg"`
}

// RunMapReduce runs the mapReduce command and returns the server's
// result document.
func RunMapReduce(ctx context.Context, s Session, mr MapReduceOptions) (*MapReduceResult, error) {
	var result MapReduceResult
	err := RunCommand(ctx, s, mr.document(), &result)
	if err != nil {
		return nil, err
	}
	if result.Ok != 1 {
		return nil, &QueryFailureError{Message: fmt.Sprintf("mapReduce error: %s", result.Errmsg)}
	}
	return &result, nil
}

// MapReduce runs the mapReduce command and opens a cursor over its
// output collection. The output collection is not removed by the
// client; a temporary one is left to the server to reap.
func MapReduce(ctx context.Context, s Session, mr MapReduceOptions) (*Cursor, error) {
	result, err := RunMapReduce(ctx, s, mr)
	if err != nil {
		return nil, err
	}
	if result.Result == "" {
		panic("mapReduce reply names no output collection")
	}
	return Find(ctx, s, NewQuery(nil, result.Result))
}
