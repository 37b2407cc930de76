package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"
)

// GroupOptions configures a group command: aggregate the documents
// matching Cond by a grouping key, folding them with Reduce from
// Initial.
type GroupOptions struct {
	Collection string
	// Key names the fields to group by. It is ignored when KeyF is set.
	Key []string
	// KeyF is a javascript function computing the grouping key from a
	// document.
	KeyF *bson.JavaScript
	Reduce  bson.JavaScript
	Initial interface{}
	Cond    interface{}
	// Finalize is applied to each aggregated result before it is
	// returned.
	Finalize *bson.JavaScript
}

func (g GroupOptions) document() bson.D {
	var doc bson.D
	if g.Finalize != nil {
		doc = append(doc, bson.DocElem{Name: "finalize", Value: *g.Finalize})
	}
	doc = append(doc, bson.DocElem{Name: "ns", Value: g.Collection})
	if g.KeyF != nil {
		doc = append(doc, bson.DocElem{Name: "$keyf", Value: *g.KeyF})
	} else {
		key := make(bson.D, 0, len(g.Key))
		for _, field := range g.Key {
			key = append(key, bson.DocElem{Name: field, Value: true})
		}
		doc = append(doc, bson.DocElem{Name: "key", Value: key})
	}
	doc = append(doc,
		bson.DocElem{Name: "$reduce", Value: g.Reduce},
		bson.DocElem{Name: "initial", Value: emptyIfNil(g.Initial)},
		bson.DocElem{Name: "cond", Value: emptyIfNil(g.Cond)},
	)
	return doc
}

// Group runs the group command and returns the aggregated results.
func Group(ctx context.Context, s Session, g GroupOptions) ([]bson.Raw, error) {
	var result struct {
		Ok     int        `bson:"ok"`
		Errmsg string     `bson:"errmsg"`
		Retval []bson.Raw `bson:"retval"`
	}
	err := RunCommand(ctx, s, bson.D{{Name: "group", Value: g.document()}}, &result)
	if err != nil {
		return nil, err
	}
	if result.Ok != 1 {
		return nil, &QueryFailureError{Message: result.Errmsg}
	}
	return result.Retval, nil
}

func emptyIfNil(v interface{}) interface{} {
	if v == nil {
		return bson.D{}
	}
	return v
}
