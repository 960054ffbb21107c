package fanout

import "errors"

var (
	// ErrTimeout is returned when a round reply does not arrive in time.
	ErrTimeout = errors.New("round timed out")
	// ErrNotStarted is returned when the runtime is used before Start.
	ErrNotStarted = errors.New("runtime not started")
)
