package transit

import "errors"

var (
	// ErrNotFound marks an unknown trip, bus or stop identifier.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks a progress request past the final stop.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict marks an exhausted wheelchair slot or an adjustment that
	// would break the capacity bounds.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument marks malformed input on create and update.
	ErrInvalidArgument = errors.New("invalid argument")
)
