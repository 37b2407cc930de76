package msg

import (
	"fmt"
	"io"

	"gopkg.in/mgo.v2/bson"

	"github.com/10gen/mongo-go-query/internal"
)

const defaultEncodeBufferSize = 256

// Encoder encodes messages.
type Encoder interface {
	// Encode encodes a number of messages to the writer. All messages
	// are written with a single call to the writer, so everything passed
	// to one Encode travels in the same batch.
	Encode(io.Writer, ...Message) error
}

// Decoder decodes messages.
type Decoder interface {
	// Decode decodes one message from the reader.
	Decode(io.Reader) (Message, error)
}

// Codec encodes and decodes messages.
type Codec interface {
	Encoder
	Decoder
}

// NewWireProtocolCodec creates a Codec for the binary message format.
func NewWireProtocolCodec() Codec {
	return &wireProtocolCodec{
		lengthBytes: make([]byte, 4),
	}
}

type wireProtocolCodec struct {
	lengthBytes []byte
}

func (c *wireProtocolCodec) Decode(reader io.Reader) (Message, error) {
	_, err := io.ReadFull(reader, c.lengthBytes)
	if err != nil {
		return nil, internal.WrapError(err, "unable to decode message length")
	}

	length := readInt32(c.lengthBytes, 0)

	b := make([]byte, length)

	b[0] = c.lengthBytes[0]
	b[1] = c.lengthBytes[1]
	b[2] = c.lengthBytes[2]
	b[3] = c.lengthBytes[3]

	_, err = io.ReadFull(reader, b[4:])
	if err != nil {
		return nil, internal.WrapError(err, "unable to decode message")
	}

	return decodeMessage(b)
}

func (c *wireProtocolCodec) Encode(writer io.Writer, msgs ...Message) error {
	b := make([]byte, 0, defaultEncodeBufferSize)

	var err error
	for _, m := range msgs {
		b, err = encodeMessage(b, m)
		if err != nil {
			return err
		}
	}

	_, err = writer.Write(b)
	if err != nil {
		return internal.WrapError(err, "unable to encode messages")
	}
	return nil
}

func encodeMessage(b []byte, m Message) ([]byte, error) {
	start := len(b)
	var err error
	switch typedM := m.(type) {
	case *Query:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(queryOpcode))
		b = addInt32(b, int32(typedM.Flags))
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, typedM.NumberToSkip)
		b = addInt32(b, typedM.NumberToReturn)
		b, err = addMarshalled(b, typedM.Query)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal query")
		}
		if typedM.ReturnFieldsSelector != nil {
			b, err = addMarshalled(b, typedM.ReturnFieldsSelector)
			if err != nil {
				return nil, internal.WrapError(err, "unable to marshal return fields selector")
			}
		}
	case *GetMore:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(getMoreOpcode))
		b = addInt32(b, 0) // reserved
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, typedM.NumberToReturn)
		b = addInt64(b, typedM.CursorID)
	case *Insert:
		b = addHeader(b, 0, NextRequestID(), 0, int32(insertOpcode))
		b = addInt32(b, 0) // flags
		b = addCString(b, typedM.FullCollectionName)
		for _, doc := range typedM.Documents {
			b, err = addMarshalled(b, doc)
			if err != nil {
				return nil, internal.WrapError(err, "unable to marshal insert document")
			}
		}
	case *Update:
		b = addHeader(b, 0, NextRequestID(), 0, int32(updateOpcode))
		b = addInt32(b, 0) // reserved
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, int32(typedM.Flags))
		b, err = addMarshalled(b, typedM.Selector)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal update selector")
		}
		b, err = addMarshalled(b, typedM.Update)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal update document")
		}
	case *Delete:
		b = addHeader(b, 0, NextRequestID(), 0, int32(deleteOpcode))
		b = addInt32(b, 0) // reserved
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, int32(typedM.Flags))
		b, err = addMarshalled(b, typedM.Selector)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal delete selector")
		}
	case *KillCursors:
		b = addHeader(b, 0, NextRequestID(), 0, int32(killCursorsOpcode))
		b = addInt32(b, 0) // reserved
		b = addInt32(b, int32(len(typedM.CursorIDs)))
		for _, id := range typedM.CursorIDs {
			b = addInt64(b, id)
		}
	case *Reply:
		b = addHeader(b, 0, typedM.ReqID, typedM.RespTo, int32(replyOpcode))
		b = addInt32(b, int32(typedM.ResponseFlags))
		b = addInt64(b, typedM.CursorID)
		b = addInt32(b, typedM.StartingFrom)
		b = addInt32(b, typedM.NumberReturned)
		b = append(b, typedM.DocumentsBytes...)
	default:
		return nil, fmt.Errorf("unknown message type: %T", m)
	}

	setInt32(b, int32(start), int32(len(b)-start))
	return b, nil
}

func decodeMessage(b []byte) (Message, error) {
	requestID := readInt32(b, 4)
	responseTo := readInt32(b, 8)
	op := readInt32(b, 12)

	switch opcode(op) {
	case replyOpcode:
		replyMessage := &Reply{
			ReqID:  requestID,
			RespTo: responseTo,
		}
		replyMessage.ResponseFlags = ReplyFlags(readInt32(b, 16))
		replyMessage.CursorID = readInt64(b, 20)
		replyMessage.StartingFrom = readInt32(b, 28)
		replyMessage.NumberReturned = readInt32(b, 32)
		replyMessage.DocumentsBytes = b[36:]
		return replyMessage, nil
	}

	return nil, fmt.Errorf("opcode %d not implemented", op)
}

func addCString(b []byte, s string) []byte {
	b = append(b, []byte(s)...)
	return append(b, 0)
}

func addInt32(b []byte, i int32) []byte {
	return append(b, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
}

func addInt64(b []byte, i int64) []byte {
	return append(b, byte(i), byte(i>>8), byte(i>>16), byte(i>>24), byte(i>>32), byte(i>>40), byte(i>>48), byte(i>>56))
}

func addMarshalled(b []byte, data interface{}) ([]byte, error) {
	if data == nil {
		return append(b, 5, 0, 0, 0, 0), nil
	}

	dataBytes, err := bson.Marshal(data)
	if err != nil {
		return nil, err
	}

	return append(b, dataBytes...), nil
}

func setInt32(b []byte, pos int32, i int32) {
	b[pos] = byte(i)
	b[pos+1] = byte(i >> 8)
	b[pos+2] = byte(i >> 16)
	b[pos+3] = byte(i >> 24)
}

func addHeader(b []byte, length, requestID, responseTo, opCode int32) []byte {
	b = addInt32(b, length)
	b = addInt32(b, requestID)
	b = addInt32(b, responseTo)
	return addInt32(b, opCode)
}

func readInt32(b []byte, pos int32) int32 {
	return (int32(b[pos+0])) |
		(int32(b[pos+1]) << 8) |
		(int32(b[pos+2]) << 16) |
		(int32(b[pos+3]) << 24)
}

func readInt64(b []byte, pos int32) int64 {
	return (int64(b[pos+0])) |
		(int64(b[pos+1]) << 8) |
		(int64(b[pos+2]) << 16) |
		(int64(b[pos+3]) << 24) |
		(int64(b[pos+4]) << 32) |
		(int64(b[pos+5]) << 40) |
		(int64(b[pos+6]) << 48) |
		(int64(b[pos+7]) << 56)
}

func documentLength(bytes []byte) (int, error) {
	if len(bytes) < 4 {
		return 0, fmt.Errorf("document requires 4 length bytes but only %d available", len(bytes))
	}

	return int(readInt32(bytes, 0)), nil
}
