package coordinator

import "errors"

var (
	// ErrRoundInProgress rejects a Start received while a round is active.
	ErrRoundInProgress = errors.New("coordinator: round in progress")

	// ErrSupervisionExhausted reports worker faults beyond the supervision policy.
	ErrSupervisionExhausted = errors.New("coordinator: supervision exhausted")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("coordinator: already started")

	// ErrNotStarted is returned when messaging a coordinator that was never started.
	ErrNotStarted = errors.New("coordinator: not started")

	// ErrStopped is returned when the coordinator was shut down.
	ErrStopped = errors.New("coordinator: stopped")
)
