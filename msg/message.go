package msg

import "sync/atomic"

var globalRequestID int32

// CurrentRequestID gets the current request id.
func CurrentRequestID() int32 {
	return atomic.AddInt32(&globalRequestID, 0)
}

// NextRequestID gets the next request id.
func NextRequestID() int32 {
	return atomic.AddInt32(&globalRequestID, 1)
}

type opcode int32

const (
	replyOpcode       opcode = 1
	updateOpcode      opcode = 2001
	insertOpcode      opcode = 2002
	queryOpcode       opcode = 2004
	getMoreOpcode     opcode = 2005
	deleteOpcode      opcode = 2006
	killCursorsOpcode opcode = 2007
	compressedOpcode  opcode = 2012
)

// Message represents a MongoDB message.
type Message interface {
	msg()
}

// Request is a message sent to the server for which the server
// produces a single reply.
type Request interface {
	Message
	RequestID() int32
}

// Notice is a fire-and-forget message sent to the server. The server
// never replies to a notice.
type Notice interface {
	Message
	notice()
}

// Response is a message received from the server.
type Response interface {
	Message
	ResponseTo() int32
}

func (m *Query) msg()       {}
func (m *GetMore) msg()     {}
func (m *Reply) msg()       {}
func (m *Insert) msg()      {}
func (m *Update) msg()      {}
func (m *Delete) msg()      {}
func (m *KillCursors) msg() {}

func (m *Insert) notice()      {}
func (m *Update) notice()      {}
func (m *Delete) notice()      {}
func (m *KillCursors) notice() {}
