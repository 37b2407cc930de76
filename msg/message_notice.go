package msg

// Insert is a notice carrying one or more documents to store in a
// collection.
type Insert struct {
	FullCollectionName string
	Documents          []interface{}
}

// Update is a notice asking the server to update the documents matching
// the selector.
type Update struct {
	FullCollectionName string
	Flags              UpdateFlags
	Selector           interface{}
	Update             interface{}
}

// UpdateFlags are the flags in an Update.
type UpdateFlags int32

// UpdateFlags constants.
const (
	Upsert UpdateFlags = 1 << iota
	MultiUpdate
)

// Delete is a notice asking the server to remove the documents matching
// the selector.
type Delete struct {
	FullCollectionName string
	Flags              DeleteFlags
	Selector           interface{}
}

// DeleteFlags are the flags in a Delete.
type DeleteFlags int32

// DeleteFlags constants.
const (
	SingleRemove DeleteFlags = 1 << iota
)

// KillCursors is a notice asking the server to release the given
// server-side cursors.
type KillCursors struct {
	CursorIDs []int64
}
