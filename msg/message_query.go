package msg

// Query is a message requesting the server to run a query and open a
// cursor over its results.
type Query struct {
	ReqID                int32
	Flags                QueryFlags
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Query                interface{}
	ReturnFieldsSelector interface{}
}

// RequestID gets the request id of the message.
func (m *Query) RequestID() int32 { return m.ReqID }

// QueryFlags are the flags in a Query.
type QueryFlags int32

// QueryFlags constants.
const (
	_ QueryFlags = 1 << iota
	TailableCursor
	SlaveOK
	OplogReplay
	NoCursorTimeout
	AwaitData
	Exhaust
	Partial
)

// GetMore is a message requesting the next batch of documents for an
// open cursor. The server replies to it like it replies to a Query.
type GetMore struct {
	ReqID              int32
	FullCollectionName string
	NumberToReturn     int32
	CursorID           int64
}

// RequestID gets the request id of the message.
func (m *GetMore) RequestID() int32 { return m.ReqID }
