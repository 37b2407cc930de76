package ops

import (
	"context"
	"strings"

	"gopkg.in/mgo.v2/bson"
)

// AllDatabases returns the names of all databases on the server.
func AllDatabases(ctx context.Context, s Session) ([]string, error) {
	var result struct {
		Databases []struct {
			Name string `bson:"name"`
		} `bson:"databases"`
	}
	err := RunCommand1(ctx, s.WithDB("admin"), "listDatabases", &result)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(result.Databases))
	for _, db := range result.Databases {
		names = append(names, db.Name)
	}
	return names, nil
}

// AllCollections returns the names of the collections in the session's
// database. Names containing a '$', such as index namespaces, are
// filtered out, with the single exception of the main replication oplog.
func AllCollections(ctx context.Context, s Session) ([]string, error) {
	q := NewQuery(nil, "system.namespaces")
	q.Sort = bson.D{{Name: "name", Value: 1}}

	cursor, err := Find(ctx, s, q)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs, err := cursor.Rest(ctx)
	if err != nil {
		return nil, err
	}

	prefix := s.db + "."
	var names []string
	for _, doc := range docs {
		var ns struct {
			Name string `bson:"name"`
		}
		if err := bson.Unmarshal(doc.Data, &ns); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(ns.Name, prefix) {
			continue
		}
		name := strings.TrimPrefix(ns.Name, prefix)
		if strings.Contains(name, "$") && ns.Name != "local.oplog.$main" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
