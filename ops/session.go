package ops

import "github.com/10gen/mongo-go-query/conn"

// WriteMode controls how writes are acknowledged.
type WriteMode int

// WriteMode constants.
const (
	// Safe turns every write into a round-trip by following the write
	// with a getLastError command in the same batch and inspecting its
	// reply.
	Safe WriteMode = iota
	// Unsafe sends writes as fire-and-forget notices. Server-side write
	// errors are silently lost.
	Unsafe
)

// ReadPreference indicates whether reads may be served by a secondary.
type ReadPreference int

// ReadPreference constants.
const (
	Primary ReadPreference = iota
	SlaveOK
)

// Session carries the ambient state of an operation: the connection, the
// target database, the read preference and the write mode. A Session is
// an immutable value; the With methods derive a shadowed copy for a
// nested operation, leaving the original untouched on all paths.
type Session struct {
	conn      conn.Connection
	db        string
	readPref  ReadPreference
	writeMode WriteMode
}

// NewSession creates a session bound to the given connection and
// database, reading from the primary and writing in Safe mode.
func NewSession(c conn.Connection, db string) Session {
	return Session{conn: c, db: db}
}

// Conn gets the connection the session operates on.
func (s Session) Conn() conn.Connection {
	return s.conn
}

// DB gets the database the session operates on.
func (s Session) DB() string {
	return s.db
}

// ReadPref gets the session's read preference.
func (s Session) ReadPref() ReadPreference {
	return s.readPref
}

// WriteMode gets the session's write mode.
func (s Session) WriteMode() WriteMode {
	return s.writeMode
}

// WithDB derives a session bound to the given database.
func (s Session) WithDB(db string) Session {
	s.db = db
	return s
}

// WithSlaveOK derives a session whose reads tolerate a secondary.
func (s Session) WithSlaveOK() Session {
	s.readPref = SlaveOK
	return s
}

// WithPrimary derives a session whose reads require the primary.
func (s Session) WithPrimary() Session {
	s.readPref = Primary
	return s
}

// WithWriteMode derives a session with the given write mode.
func (s Session) WithWriteMode(mode WriteMode) Session {
	s.writeMode = mode
	return s
}

// UseDB runs op with the session bound to the given database.
func (s Session) UseDB(db string, op func(Session) error) error {
	return op(s.WithDB(db))
}

// UseSlaveOK runs op with the session's reads tolerating a secondary.
func (s Session) UseSlaveOK(op func(Session) error) error {
	return op(s.WithSlaveOK())
}

// UseWriteMode runs op with the session writing in the given mode.
func (s Session) UseWriteMode(mode WriteMode, op func(Session) error) error {
	return op(s.WithWriteMode(mode))
}

func (s Session) slaveOK() bool {
	return s.readPref == SlaveOK
}

func (s Session) fullCollection(collection string) string {
	return s.db + "." + collection
}
