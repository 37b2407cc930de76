package auth

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/conn"
	"github.com/10gen/mongo-go-query/msg"
)

// MONGODBCR is the mechanism name for MONGODB-CR.
const MONGODBCR = "MONGODB-CR"

// MongoDBCRAuthenticator uses the MONGODB-CR nonce handshake to
// authenticate a connection.
type MongoDBCRAuthenticator struct {
	DB       string
	Username string
	Password string
}

// Name returns MONGODB-CR.
func (a *MongoDBCRAuthenticator) Name() string {
	return MONGODBCR
}

// Auth authenticates the connection.
func (a *MongoDBCRAuthenticator) Auth(ctx context.Context, c conn.Connection) error {
	db := a.DB
	if db == "" {
		db = defaultAuthDB
	}

	getNonceRequest := msg.NewCommand(
		msg.NextRequestID(),
		db,
		true,
		bson.D{{Name: "getnonce", Value: 1}},
	)
	var getNonceResult struct {
		Nonce string `bson:"nonce"`
	}

	err := conn.ExecuteCommand(ctx, c, getNonceRequest, &getNonceResult)
	if err != nil {
		return newError(err, a.Name())
	}

	authRequest := msg.NewCommand(
		msg.NextRequestID(),
		db,
		true,
		bson.D{
			{Name: "authenticate", Value: 1},
			{Name: "user", Value: a.Username},
			{Name: "nonce", Value: getNonceResult.Nonce},
			{Name: "key", Value: MongoCRKey(getNonceResult.Nonce, a.Username, a.Password)},
		},
	)
	err = conn.ExecuteCommand(ctx, c, authRequest, &bson.D{})
	if err != nil {
		return newError(err, a.Name())
	}

	return nil
}
