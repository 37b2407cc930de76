package msgtest

import (
	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/msg"
)

// CreateCommandReply fabricates the reply a server would send for a
// command producing the given document.
func CreateCommandReply(cmd interface{}) *msg.Reply {
	doc, err := bson.Marshal(cmd)
	if err != nil {
		panic(err)
	}
	return &msg.Reply{
		NumberReturned: 1,
		DocumentsBytes: doc,
	}
}

// CreateCursorReply fabricates the reply a server would send for a
// query or get-more: a batch of documents under the given cursor id.
func CreateCursorReply(cursorID int64, docs ...interface{}) *msg.Reply {
	var payload []byte
	for _, doc := range docs {
		b, err := bson.Marshal(doc)
		if err != nil {
			panic(err)
		}
		payload = append(payload, b...)
	}
	return &msg.Reply{
		CursorID:       cursorID,
		NumberReturned: int32(len(docs)),
		DocumentsBytes: payload,
	}
}

// CreateFailureReply fabricates a reply with the given response flags
// set, carrying the documents.
func CreateFailureReply(flags msg.ReplyFlags, cursorID int64, docs ...interface{}) *msg.Reply {
	reply := CreateCursorReply(cursorID, docs...)
	reply.ResponseFlags = flags
	return reply
}
