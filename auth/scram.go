package auth

import (
	"context"

	"github.com/xdg/scram"
	"github.com/xdg/stringprep"

	"github.com/10gen/mongo-go-query/conn"
)

// SCRAMSHA1 is the mechanism name for SCRAM-SHA-1.
const SCRAMSHA1 = "SCRAM-SHA-1"

// SCRAMSHA256 is the mechanism name for SCRAM-SHA-256.
const SCRAMSHA256 = "SCRAM-SHA-256"

// NewScramSHA1Authenticator creates a SCRAM-SHA-1 authenticator. The
// client proof is derived from the same md5 credential digest the
// server stores for MONGODB-CR.
func NewScramSHA1Authenticator(db, username, password string) (Authenticator, error) {
	client, err := scram.SHA1.NewClientUnprepped(username, PasswordDigest(username, password), "")
	if err != nil {
		return nil, newError(err, SCRAMSHA1)
	}
	return &ScramAuthenticator{
		DB:        db,
		mechanism: SCRAMSHA1,
		client:    client,
	}, nil
}

// NewScramSHA256Authenticator creates a SCRAM-SHA-256 authenticator.
func NewScramSHA256Authenticator(db, username, password string) (Authenticator, error) {
	passprep, err := stringprep.SASLprep.Prepare(password)
	if err != nil {
		return nil, newError(err, SCRAMSHA256)
	}
	client, err := scram.SHA256.NewClientUnprepped(username, passprep, "")
	if err != nil {
		return nil, newError(err, SCRAMSHA256)
	}
	client.WithMinIterations(4096)
	return &ScramAuthenticator{
		DB:        db,
		mechanism: SCRAMSHA256,
		client:    client,
	}, nil
}

// ScramAuthenticator uses a SCRAM algorithm over SASL to authenticate
// a connection.
type ScramAuthenticator struct {
	DB        string
	mechanism string
	client    *scram.Client
}

// Name returns the SCRAM mechanism name.
func (a *ScramAuthenticator) Name() string {
	return a.mechanism
}

// Auth authenticates the connection.
func (a *ScramAuthenticator) Auth(ctx context.Context, c conn.Connection) error {
	adapter := &scramSaslAdapter{
		mechanism:    a.mechanism,
		conversation: a.client.NewConversation(),
	}
	return conductSaslConversation(ctx, c, a.DB, adapter)
}

type scramSaslAdapter struct {
	mechanism    string
	conversation *scram.ClientConversation
}

func (a *scramSaslAdapter) Start() (string, []byte, error) {
	step, err := a.conversation.Step("")
	if err != nil {
		return a.mechanism, nil, err
	}
	return a.mechanism, []byte(step), nil
}

func (a *scramSaslAdapter) Next(challenge []byte) ([]byte, error) {
	step, err := a.conversation.Step(string(challenge))
	if err != nil {
		return nil, err
	}
	return []byte(step), nil
}

func (a *scramSaslAdapter) Completed() bool {
	return a.conversation.Done()
}
