package cursor

import "errors"

// ErrInvalidCursorState is returned when rows are requested from a cursor
// with no active result: one that never executed a statement, whose last
// Execute failed, or that has been closed.
var ErrInvalidCursorState = errors.New("invalid cursor state")
