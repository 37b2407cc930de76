package auth

import (
	"context"
	"fmt"

	"github.com/10gen/mongo-go-query/conn"
)

const defaultAuthDB = "admin"

// Authenticator handles authenticating a connection.
type Authenticator interface {
	// Auth authenticates the connection.
	Auth(context.Context, conn.Connection) error
}

// NewConnectionDialer returns a connection dialer that authenticates
// the connection it opens.
func NewConnectionDialer(dialer conn.Dialer, authenticator Authenticator) conn.Dialer {
	return func(endpoint conn.Endpoint, opts ...conn.Option) (conn.ConnectionCloser, error) {
		return DialConnection(dialer, authenticator, endpoint, opts...)
	}
}

// DialConnection opens a connection and authenticates it.
func DialConnection(dialer conn.Dialer, authenticator Authenticator, endpoint conn.Endpoint, opts ...conn.Option) (conn.ConnectionCloser, error) {
	c, err := dialer(endpoint, opts...)
	if err != nil {
		if c != nil {
			c.Close()
		}
		return nil, err
	}

	err = authenticator.Auth(context.Background(), c)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func newError(err error, mech string) error {
	return &Error{
		message: fmt.Sprintf("unable to authenticate using mechanism \"%s\"", mech),
		inner:   err,
	}
}

// Error is an error that occurred during authentication.
type Error struct {
	message string
	inner   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.message, e.inner)
}

// Inner returns the wrapped error.
func (e *Error) Inner() error {
	return e.inner
}

// Message returns the message.
func (e *Error) Message() string {
	return e.message
}
