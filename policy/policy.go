package policy

import (
	"errors"
	"time"

	"github.com/viant/fanout/internal/clock"
)

var (
	// ErrUnrecoverable marks a fault that must never be handled by replacement.
	ErrUnrecoverable = errors.New("unrecoverable fault")
	// ErrTransient marks an expected fault: the worker is stopped and replaced
	// without counting against the restart bound.
	ErrTransient = errors.New("transient fault")
)

// Defaults tolerate 10 counted restarts per minute.
const (
	DefaultMaxRestarts = 10
	DefaultWindow      = time.Minute
)

// Directive is the supervision decision for a single failure.
type Directive int

const (
	// Replace discards the failed worker and starts a fresh one.
	Replace Directive = iota
	// Restart replaces the worker like Replace but counts against MaxRestarts.
	Restart
	// Escalate fails the supervisor itself.
	Escalate
)

func (d Directive) String() string {
	switch d {
	case Replace:
		return "replace"
	case Restart:
		return "restart"
	case Escalate:
		return "escalate"
	}
	return "unknown"
}

// Decider maps a worker fault onto a Directive.
type Decider func(err error) Directive

// DefaultDecider escalates ErrUnrecoverable, replaces ErrTransient and
// restarts on any other fault.
func DefaultDecider(err error) Directive {
	switch {
	case errors.Is(err, ErrUnrecoverable):
		return Escalate
	case errors.Is(err, ErrTransient):
		return Replace
	}
	return Restart
}

// Policy represents the supervision settings of a coordinator.
//
//   - MaxRestarts bounds Restart directives within Window; negative means
//     unbounded, zero escalates the first one.
//   - Window <= 0 counts restarts over the whole supervisor lifetime.
//   - Decider defaults to DefaultDecider.
type Policy struct {
	MaxRestarts int
	Window      time.Duration
	Decider     Decider
}

// Default returns the default policy.
func Default() *Policy {
	return &Policy{MaxRestarts: DefaultMaxRestarts, Window: DefaultWindow, Decider: DefaultDecider}
}

// Config represents the declarative, serialisable part of a Policy. An
// omitted field selects the default; a present one, zero included, means
// what it means on Policy.
type Config struct {
	MaxRestarts *int           `json:"maxRestarts,omitempty" yaml:"maxRestarts,omitempty"`
	Window      *time.Duration `json:"window,omitempty" yaml:"window,omitempty"`
}

// DefaultConfig returns the Config of the default policy.
func DefaultConfig() Config {
	return *ToConfig(Default())
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	maxRestarts, window := p.MaxRestarts, p.Window
	return &Config{MaxRestarts: &maxRestarts, Window: &window}
}

// FromConfig converts a stored Config back to a runtime Policy with the
// default decider.
func FromConfig(c *Config) *Policy {
	ret := Default()
	if c == nil {
		return ret
	}
	if c.MaxRestarts != nil {
		ret.MaxRestarts = *c.MaxRestarts
	}
	if c.Window != nil {
		ret.Window = *c.Window
	}
	return ret
}

// Tracker applies a Policy to a stream of failures. It is owned by a single
// supervisor loop and is not safe for concurrent use.
type Tracker struct {
	policy   *Policy
	restarts []time.Time
}

// NewTracker creates a tracker; a nil policy selects Default.
func (p *Policy) NewTracker() *Tracker {
	if p == nil {
		p = Default()
	}
	return &Tracker{policy: p}
}

// Decide records a failure and returns the directive for it. A Restart
// beyond the bound becomes Escalate.
func (t *Tracker) Decide(err error) Directive {
	decider := t.policy.Decider
	if decider == nil {
		decider = DefaultDecider
	}
	directive := decider(err)
	if directive != Restart || t.policy.MaxRestarts < 0 {
		return directive
	}
	now := clock.Now()
	t.prune(now)
	if len(t.restarts) >= t.policy.MaxRestarts {
		return Escalate
	}
	t.restarts = append(t.restarts, now)
	return Restart
}

// Restarts returns the number of counted restarts inside the current window.
func (t *Tracker) Restarts() int {
	t.prune(clock.Now())
	return len(t.restarts)
}

func (t *Tracker) prune(now time.Time) {
	if t.policy.Window <= 0 {
		return
	}
	cutoff := now.Add(-t.policy.Window)
	i := 0
	for i < len(t.restarts) && !t.restarts[i].After(cutoff) {
		i++
	}
	t.restarts = t.restarts[i:]
}
