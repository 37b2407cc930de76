package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/auth"
)

// Auth authenticates the session's connection against its database with
// the nonce handshake: getnonce, then authenticate with the derived key.
// Authentication is per connection; it must be repeated on a new one.
func Auth(ctx context.Context, s Session, username, password string) (bool, error) {
	var nonceResult struct {
		Nonce string `bson:"nonce"`
	}
	err := RunCommand1(ctx, s, "getnonce", &nonceResult)
	if err != nil {
		return false, err
	}

	cmd := bson.D{
		{Name: "authenticate", Value: 1},
		{Name: "user", Value: username},
		{Name: "nonce", Value: nonceResult.Nonce},
		{Name: "key", Value: auth.MongoCRKey(nonceResult.Nonce, username, password)},
	}

	var authResult struct {
		Ok int `bson:"ok"`
	}
	err = RunCommand(ctx, s, cmd, &authResult)
	if err != nil {
		return false, err
	}
	return authResult.Ok == 1, nil
}
