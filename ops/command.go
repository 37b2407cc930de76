package ops

import (
	"context"
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// FindOne returns the first document matching the query, reporting
// whether one existed.
func FindOne(ctx context.Context, s Session, q Query, result interface{}) (bool, error) {
	return findOne(ctx, false, s, q, result)
}

// Explain returns the query plan the server would use for the query.
func Explain(ctx context.Context, s Session, q Query, result interface{}) error {
	found, err := findOne(ctx, true, s, q, result)
	if err != nil {
		return err
	}
	if !found {
		panic(fmt.Sprintf("no explain response for query on %q", q.Selection.Collection))
	}
	return nil
}

func findOne(ctx context.Context, explain bool, s Session, q Query, result interface{}) (bool, error) {
	q.Limit = 1
	request, remaining := buildQueryRequest(explain, s.slaveOK(), q, s.db)

	future, err := s.conn.Call(ctx, request)
	if err != nil {
		return false, err
	}

	cursor := newCursor(s.conn, request.FullCollectionName, q.BatchSize, future, remaining)
	defer cursor.Close(ctx)

	if !cursor.Next(ctx, result) {
		return false, cursor.Err()
	}
	return true, nil
}

// RunCommand runs the command document against the session's database
// and decodes the reply document into result. A command that produces
// no reply document is a protocol violation, not a Failure.
func RunCommand(ctx context.Context, s Session, cmd interface{}, result interface{}) error {
	found, err := FindOne(ctx, s, NewQuery(cmd, "$cmd"), result)
	if err != nil {
		return err
	}
	if !found {
		panic(fmt.Sprintf("no response to command %v", cmd))
	}
	return nil
}

// RunCommand1 runs the command {name: 1}.
func RunCommand1(ctx context.Context, s Session, name string, result interface{}) error {
	return RunCommand(ctx, s, bson.D{{Name: name, Value: 1}}, result)
}

// Count returns the number of documents the query matches, honoring its
// skip and limit.
func Count(ctx context.Context, s Session, q Query) (int64, error) {
	cmd := bson.D{
		{Name: "count", Value: q.Selection.Collection},
		{Name: "query", Value: selectorDoc(q.Selection)},
		{Name: "skip", Value: q.Skip},
	}
	if q.Limit != 0 {
		cmd = append(cmd, bson.DocElem{Name: "limit", Value: q.Limit})
	}

	var result struct {
		Ok     int    `bson:"ok"`
		Errmsg string `bson:"errmsg"`
		N      int64  `bson:"n"`
	}
	if err := RunCommand(ctx, s, cmd, &result); err != nil {
		return 0, err
	}
	if result.Ok != 1 {
		return 0, &QueryFailureError{Message: result.Errmsg}
	}
	return result.N, nil
}

// Distinct returns the distinct values of the field named by key among
// the documents matching the selection.
func Distinct(ctx context.Context, s Session, key string, sel Selection) ([]bson.Raw, error) {
	cmd := bson.D{
		{Name: "distinct", Value: sel.Collection},
		{Name: "key", Value: key},
		{Name: "query", Value: selectorDoc(sel)},
	}

	var result struct {
		Ok     int        `bson:"ok"`
		Errmsg string     `bson:"errmsg"`
		Values []bson.Raw `bson:"values"`
	}
	if err := RunCommand(ctx, s, cmd, &result); err != nil {
		return nil, err
	}
	if result.Ok != 1 {
		return nil, &QueryFailureError{Message: result.Errmsg}
	}
	return result.Values, nil
}

// Eval runs the javascript on the server and returns its value.
func Eval(ctx context.Context, s Session, code bson.JavaScript) (bson.Raw, error) {
	var result struct {
		Ok     int      `bson:"ok"`
		Errmsg string   `bson:"errmsg"`
		Retval bson.Raw `bson:"retval"`
	}
	err := RunCommand(ctx, s, bson.D{{Name: "$eval", Value: code}}, &result)
	if err != nil {
		return bson.Raw{}, err
	}
	if result.Ok != 1 {
		return bson.Raw{}, &QueryFailureError{Message: result.Errmsg}
	}
	return result.Retval, nil
}
