package ops

import "fmt"

// CursorNotFoundError occurs when the server no longer knows the cursor,
// typically because it timed out on the server side. The connection
// remains usable.
type CursorNotFoundError struct {
	ID int64
}

func (e *CursorNotFoundError) Error() string {
	return fmt.Sprintf("cursor %d not found", e.ID)
}

// QueryFailureError occurs when the server rejects a query. The message
// is the server-provided $err so it can be correlated with the server's
// logs. The connection remains usable.
type QueryFailureError struct {
	Message string
}

func (e *QueryFailureError) Error() string {
	return fmt.Sprintf("query failure: %s", e.Message)
}

// WriteError occurs when a Safe mode write is rejected by the server.
// The connection remains usable.
type WriteError struct {
	Code    int32
	Message string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error %d: %s", e.Code, e.Message)
}
