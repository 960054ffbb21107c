package policy

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/fanout/internal/clock"
)

func withClock(t *testing.T, now *time.Time) {
	t.Helper()
	prev := clock.NowFunc
	clock.NowFunc = func() time.Time { return *now }
	t.Cleanup(func() { clock.NowFunc = prev })
}

func TestDefaultDecider(t *testing.T) {
	assert.Equal(t, Restart, DefaultDecider(errors.New("boom")))
	assert.Equal(t, Replace, DefaultDecider(fmt.Errorf("wrapped: %w", ErrTransient)))
	assert.Equal(t, Escalate, DefaultDecider(fmt.Errorf("wrapped: %w", ErrUnrecoverable)))
}

func TestTracker_Decide(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	withClock(t, &now)

	tracker := (&Policy{MaxRestarts: 3, Window: time.Minute}).NewTracker()
	fault := errors.New("fault")
	for i := 0; i < 3; i++ {
		assert.Equal(t, Restart, tracker.Decide(fault))
		now = now.Add(time.Second)
	}
	assert.Equal(t, 3, tracker.Restarts())
	assert.Equal(t, Escalate, tracker.Decide(fault))

	// the window slides: old restarts no longer count
	now = now.Add(time.Minute)
	assert.Equal(t, 0, tracker.Restarts())
	assert.Equal(t, Restart, tracker.Decide(fault))
}

func TestTracker_TransientNotCounted(t *testing.T) {
	tracker := Default().NewTracker()
	transient := fmt.Errorf("injected: %w", ErrTransient)
	for i := 0; i < 10*DefaultMaxRestarts; i++ {
		assert.Equal(t, Replace, tracker.Decide(transient))
	}
	assert.Equal(t, 0, tracker.Restarts())

	fault := errors.New("fault")
	for i := 0; i < DefaultMaxRestarts; i++ {
		assert.Equal(t, Restart, tracker.Decide(fault))
	}
	assert.Equal(t, Escalate, tracker.Decide(fault))
	assert.Equal(t, Replace, tracker.Decide(transient))
}

func TestTracker_Unbounded(t *testing.T) {
	tracker := (&Policy{MaxRestarts: -1}).NewTracker()
	for i := 0; i < 100; i++ {
		assert.Equal(t, Restart, tracker.Decide(errors.New("fault")))
	}
	assert.Equal(t, Escalate, tracker.Decide(ErrUnrecoverable))
}

func TestTracker_ZeroRestarts(t *testing.T) {
	tracker := (&Policy{MaxRestarts: 0, Window: time.Minute}).NewTracker()
	assert.Equal(t, Escalate, tracker.Decide(errors.New("fault")))
}

func TestConfig(t *testing.T) {
	p := FromConfig(nil)
	assert.Equal(t, DefaultMaxRestarts, p.MaxRestarts)
	assert.Equal(t, DefaultWindow, p.Window)

	p = FromConfig(&Config{})
	assert.Equal(t, DefaultMaxRestarts, p.MaxRestarts)
	assert.Equal(t, DefaultWindow, p.Window)

	maxRestarts, window := 2, time.Second
	p = FromConfig(&Config{MaxRestarts: &maxRestarts, Window: &window})
	assert.Equal(t, 2, p.MaxRestarts)
	assert.Equal(t, time.Second, p.Window)
	assert.Equal(t, &Config{MaxRestarts: &maxRestarts, Window: &window}, ToConfig(p))
	assert.Nil(t, ToConfig(nil))
	assert.Equal(t, "escalate", Escalate.String())
	assert.Equal(t, "restart", Restart.String())

	config := DefaultConfig()
	assert.Equal(t, DefaultMaxRestarts, *config.MaxRestarts)
	assert.Equal(t, DefaultWindow, *config.Window)
}

func TestConfig_ZeroRestarts(t *testing.T) {
	zero := 0
	tracker := FromConfig(&Config{MaxRestarts: &zero}).NewTracker()
	assert.Equal(t, Escalate, tracker.Decide(errors.New("fault")))
}
