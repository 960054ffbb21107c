package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/fanout/internal/idgen"
	"github.com/viant/fanout/model/message"
	"github.com/viant/fanout/progress"
	"github.com/viant/fanout/service/coordinator"
	"github.com/viant/fanout/service/event"
	"github.com/viant/fanout/service/messaging/memory"
	"github.com/viant/fanout/tracing"
)

// Runtime drives rounds on a started coordinator.
type Runtime struct {
	coordinator *coordinator.Service
	listener    *event.Listener[coordinator.Lifecycle]
	config      *Config
	logger      zerolog.Logger

	mux sync.Mutex
	// reply mailboxes of calls that gave up waiting, oldest first
	abandoned []*memory.Queue[message.Envelope]
}

// Start spawns the worker pool and starts the coordinator loop
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.coordinator.Start(ctx); err != nil {
		return err
	}
	if r.listener != nil {
		r.listener.Start(ctx)
	}
	return nil
}

// Shutdown stops the coordinator, its workers and the event listener
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.coordinator.Shutdown()
	if r.listener != nil {
		r.listener.Stop()
	}
	return nil
}

// Done is closed once the coordinator has stopped.
func (r *Runtime) Done() <-chan struct{} {
	return r.coordinator.Done()
}

// Err returns the escalated coordinator failure once Done is closed.
func (r *Runtime) Err() error {
	return r.coordinator.Err()
}

// Progress returns the coordinator counters
func (r *Runtime) Progress() *progress.Progress {
	return r.coordinator.Progress()
}

// Inspect returns the current pool membership and round state.
func (r *Runtime) Inspect(ctx context.Context) (*message.PoolState, error) {
	state, err := r.coordinator.Inspect(ctx)
	return state, r.translate(err)
}

// Round runs a round with the configured round timeout.
func (r *Runtime) Round(ctx context.Context) (float64, error) {
	return r.RunRound(ctx, r.config.RoundTimeout)
}

// RunRound asks the coordinator for a round and waits up to timeout for the
// aggregate. A timeout <= 0 has already expired: the round is still requested
// but the call returns ErrTimeout without waiting.
//
// A call that times out leaves its round running. Calls are serialised and
// the next call first waits, within its own deadline, for the abandoned reply
// so that it never overlaps a round nobody is waiting for.
func (r *Runtime) RunRound(ctx context.Context, timeout time.Duration) (sum float64, err error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	ctx, span := tracing.StartSpan(ctx, "runtime.RunRound", "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err = r.drain(waitCtx); err != nil {
		return 0, r.translate(err)
	}

	reply := memory.NewMailbox[message.Envelope](1)
	requester := message.ID(idgen.NewWithPrefix("requester"))
	if err = r.coordinator.Send(ctx, message.New(requester, reply, message.Start{})); err != nil {
		return 0, r.translate(err)
	}
	if waitCtx.Err() != nil {
		return 0, r.abandon(ctx, reply, timeout)
	}

	envelope, err := r.coordinator.Await(waitCtx, reply)
	if err != nil {
		if waitCtx.Err() != nil {
			return 0, r.abandon(ctx, reply, timeout)
		}
		return 0, r.translate(err)
	}
	switch body := envelope.Body.(type) {
	case message.Result:
		span.WithFloat("round.sum", body.Value)
		return body.Value, nil
	case message.Rejected:
		err = body.Err
		return 0, err
	default:
		err = fmt.Errorf("unexpected reply: %v", envelope.Body.Kind())
		return 0, err
	}
}

// drain discards the late replies of abandoned calls. It stops quietly at
// the deadline, leaving the rest for a later call.
func (r *Runtime) drain(ctx context.Context) error {
	for len(r.abandoned) > 0 {
		if ctx.Err() != nil {
			return nil
		}
		envelope, err := r.coordinator.Await(ctx, r.abandoned[0])
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.abandoned = r.abandoned[1:]
		r.logger.Debug().Stringer("kind", envelope.Body.Kind()).Msg("discarded late reply")
	}
	return nil
}

func (r *Runtime) abandon(ctx context.Context, reply *memory.Queue[message.Envelope], timeout time.Duration) error {
	r.abandoned = append(r.abandoned, reply)
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w after %v", ErrTimeout, timeout)
}

func (r *Runtime) translate(err error) error {
	if errors.Is(err, coordinator.ErrNotStarted) {
		return ErrNotStarted
	}
	return err
}
