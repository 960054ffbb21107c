package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/viant/fanout/model/message"
	"github.com/viant/fanout/policy"
)

// ErrFault marks a worker failure; every termination error wraps it.
var ErrFault = errors.New("worker fault")

// DefaultFailureRate is the probability of an injected fault per task.
const DefaultFailureRate = 0.001

// Task computes a partial result for a single work item.
type Task interface {
	Compute(ctx context.Context, item message.WorkItem) (float64, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, item message.WorkItem) (float64, error)

// Compute calls f
func (f TaskFunc) Compute(ctx context.Context, item message.WorkItem) (float64, error) {
	return f(ctx, item)
}

// SquareRoot returns sqrt(x) and fails with probability FailureRate. Injected
// faults are transient: supervision replaces the worker without counting it.
type SquareRoot struct {
	FailureRate float64
	roll        func() float64
}

// NewSquareRoot creates the reference task.
func NewSquareRoot(failureRate float64) *SquareRoot {
	return &SquareRoot{FailureRate: failureRate, roll: rand.Float64}
}

// WithRoll sets the source of the uniform [0, 1) draw deciding a fault; it
// is called from every worker and must be safe for concurrent use.
func (s *SquareRoot) WithRoll(roll func() float64) *SquareRoot {
	s.roll = roll
	return s
}

// Compute returns the square root of the item value
func (s *SquareRoot) Compute(_ context.Context, item message.WorkItem) (float64, error) {
	roll := s.roll
	if roll == nil {
		roll = rand.Float64
	}
	if s.FailureRate > 0 && roll() < s.FailureRate {
		return 0, fmt.Errorf("%w: %w: injected failure for %v", ErrFault, policy.ErrTransient, item.Value)
	}
	return math.Sqrt(item.Value), nil
}
