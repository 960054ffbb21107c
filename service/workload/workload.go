// Package workload supplies the opaque values the coordinator wraps into
// work items at the start of every round.
package workload

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultScale bounds the values produced by Random: [0, DefaultScale).
const DefaultScale = 1e6

// Source produces work item values.
type Source interface {
	Next() float64
}

// Func adapts a function to Source.
type Func func() float64

// Next returns f()
func (f Func) Next() float64 { return f() }

// Random draws uniformly distributed values in [0, Scale).
type Random struct {
	Scale float64
	mu    sync.Mutex
	rnd   *rand.Rand
}

// NewRandom creates a random source; a zero seed seeds from the clock.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{Scale: DefaultScale, rnd: rand.New(rand.NewSource(seed))}
}

// Next returns the next random value
func (r *Random) Next() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64() * r.Scale
}

// Sequence replays Values in order, wrapping around at the end.
type Sequence struct {
	Values []float64
	mu     sync.Mutex
	next   int
}

// NewSequence creates a replaying source.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{Values: values}
}

// Next returns the next value of the sequence, or 0 when it is empty.
func (s *Sequence) Next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.next%len(s.Values)]
	s.next++
	return v
}
