package progress

import (
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the coordinator.
type Delta struct {
	Rounds       int
	Dispatched   int
	Results      int
	Failures     int
	Replacements int
	Ignored      int
	Rejected     int
}

// Progress keeps aggregated counters. It is safe for concurrent use.
type Progress struct {
	StartedAt time.Time

	Rounds       int // rounds completed
	Dispatched   int // work items sent to workers
	Results      int // partial results accepted
	Failures     int // worker terminations observed
	Replacements int // workers spawned in place of failed ones
	Ignored      int // results that arrived for no outstanding worker
	Rejected     int // starts refused while a round was active

	mu       sync.Mutex
	onChange func(Progress)
}

// New creates a tracker.
func New(onChange func(Progress)) *Progress {
	return &Progress{StartedAt: time.Now(), onChange: onChange}
}

// Update applies the supplied delta. The onChange callback, if any, is
// invoked with a copy outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.Rounds += d.Rounds
	p.Dispatched += d.Dispatched
	p.Results += d.Results
	p.Failures += d.Failures
	p.Replacements += d.Replacements
	p.Ignored += d.Ignored
	p.Rejected += d.Rejected
	snapshot := p.copy()
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copy()
}

// OnChange registers a callback invoked after every Update; nil disables it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

func (p *Progress) copy() Progress {
	return Progress{
		StartedAt:    p.StartedAt,
		Rounds:       p.Rounds,
		Dispatched:   p.Dispatched,
		Results:      p.Results,
		Failures:     p.Failures,
		Replacements: p.Replacements,
		Ignored:      p.Ignored,
		Rejected:     p.Rejected,
	}
}
