package protocol

import "errors"

// Error taxonomy shared by every package. Callers branch with errors.Is.
var (
	// ErrInvalidArgument marks malformed or missing construction input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNullReference marks an absent required reference, or a query against
	// an object that is not yet in the state the query needs.
	ErrNullReference = errors.New("null reference")
	// ErrInvalidState marks an operation the current lifecycle state forbids.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound marks a lookup miss at the service boundary.
	ErrNotFound = errors.New("not found")
)
