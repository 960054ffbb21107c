// Package event carries lifecycle notifications (workers started, failed and
// replaced, rounds completed, supervisor escalation) from the coordinator to
// an optional listener without letting a slow listener stall the sender.
package event

import (
	"time"

	"github.com/viant/fanout/internal/clock"
)

// Event types published by the coordinator.
const (
	TypeWorkerStarted  = "worker.started"
	TypeWorkerFailed   = "worker.failed"
	TypeWorkerReplaced = "worker.replaced"
	TypeRoundStarted   = "round.started"
	TypeRoundCompleted = "round.completed"
	TypeRoundRejected  = "round.rejected"
	TypeEscalated      = "coordinator.escalated"
)

type Context struct {
	Source    string `json:"source"`
	EventType string `json:"eventType"`
	Round     uint64 `json:"round,omitempty"`
	Worker    string `json:"worker,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Data:      data,
	}
}

// Type returns the event type or an empty string.
func (e *Event[T]) Type() string {
	if e == nil || e.Context == nil {
		return ""
	}
	return e.Context.EventType
}
