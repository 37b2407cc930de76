package auth

import (
	"context"

	"github.com/10gen/mongo-go-query/conn"
	"github.com/10gen/mongo-go-query/internal/feature"
)

// DefaultAuthenticator uses SCRAM-SHA-1 or MONGODB-CR depending
// on the server version.
type DefaultAuthenticator struct {
	DB       string
	Username string
	Password string
}

// Auth authenticates the connection.
func (a *DefaultAuthenticator) Auth(ctx context.Context, c conn.Connection) error {
	var actual Authenticator
	var err error
	if err = feature.ScramSHA1(c.Desc().Version); err != nil {
		actual = &MongoDBCRAuthenticator{DB: a.DB, Username: a.Username, Password: a.Password}
	} else {
		actual, err = NewScramSHA1Authenticator(a.DB, a.Username, a.Password)
		if err != nil {
			return err
		}
	}

	return actual.Auth(ctx, c)
}
