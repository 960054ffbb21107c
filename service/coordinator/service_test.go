package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fanout/model/message"
	"github.com/viant/fanout/policy"
	"github.com/viant/fanout/service/event"
	"github.com/viant/fanout/service/messaging/memory"
	"github.com/viant/fanout/service/worker"
	"github.com/viant/fanout/service/workload"
)

// failOn returns a square root task failing on the listed values.
func failOn(values ...float64) worker.Task {
	return worker.TaskFunc(func(ctx context.Context, item message.WorkItem) (float64, error) {
		for _, v := range values {
			if item.Value == v {
				return 0, fmt.Errorf("%w: value %v", worker.ErrFault, v)
			}
		}
		return math.Sqrt(item.Value), nil
	})
}

func newStarted(t *testing.T, options ...Option) *Service {
	t.Helper()
	options = append([]Option{WithLogger(zerolog.Nop())}, options...)
	srv, err := New(options...)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Shutdown)
	return srv
}

// runRound sends Start and waits for the reply.
func runRound(t *testing.T, srv *Service) *message.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply := memory.NewMailbox[message.Envelope](1)
	require.NoError(t, srv.Send(ctx, message.New("test", reply, message.Start{})))
	envelope, err := srv.Await(ctx, reply)
	require.NoError(t, err)
	return envelope
}

func sumOf(t *testing.T, envelope *message.Envelope) float64 {
	t.Helper()
	result, ok := envelope.Body.(message.Result)
	require.True(t, ok, "expected result, got %T", envelope.Body)
	return result.Value
}

func inspect(t *testing.T, srv *Service) *message.PoolState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := srv.Inspect(ctx)
	require.NoError(t, err)
	return state
}

func assertDistinct(t *testing.T, ids []message.ID) {
	t.Helper()
	seen := map[message.ID]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate worker %s", id)
		seen[id] = true
	}
}

func TestService_Round(t *testing.T) {
	testCases := []struct {
		name     string
		workers  int
		values   []float64
		task     worker.Task
		expected float64
		failures int
	}{
		{
			name:     "no failures",
			workers:  3,
			values:   []float64{4, 9, 16},
			task:     worker.NewSquareRoot(0),
			expected: 9,
		},
		{
			name:     "second worker fails",
			workers:  3,
			values:   []float64{9, 4, 16},
			task:     failOn(4),
			expected: 7,
			failures: 1,
		},
		{
			name:     "all fail",
			workers:  2,
			values:   []float64{1, 2},
			task:     failOn(1, 2),
			expected: 0,
			failures: 2,
		},
		{
			name:     "empty pool",
			workers:  0,
			values:   []float64{4},
			task:     worker.NewSquareRoot(0),
			expected: 0,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newStarted(t,
				WithWorkers(tc.workers),
				WithTask(tc.task),
				WithWorkload(workload.NewSequence(tc.values...)))
			before := inspect(t, srv)

			assert.Equal(t, tc.expected, sumOf(t, runRound(t, srv)))

			after := inspect(t, srv)
			assert.False(t, after.Active)
			assert.Len(t, after.Workers, tc.workers)
			assertDistinct(t, after.Workers)
			snapshot := srv.Progress().Snapshot()
			assert.Equal(t, 1, snapshot.Rounds)
			assert.Equal(t, tc.workers, snapshot.Dispatched)
			assert.Equal(t, tc.workers-tc.failures, snapshot.Results)
			assert.Equal(t, tc.failures, snapshot.Failures)
			assert.Equal(t, tc.failures, snapshot.Replacements)

			// failed workers are gone, survivors keep their identity
			survivors := map[message.ID]bool{}
			for _, id := range after.Workers {
				survivors[id] = true
			}
			kept := 0
			for _, id := range before.Workers {
				if survivors[id] {
					kept++
				}
			}
			assert.Equal(t, tc.workers-tc.failures, kept)
		})
	}
}

func TestService_ReplacementJoinsNextRound(t *testing.T) {
	srv := newStarted(t,
		WithWorkers(3),
		WithTask(failOn(4)),
		WithWorkload(workload.NewSequence(9, 4, 16, 1, 1, 1)))

	assert.Equal(t, 7.0, sumOf(t, runRound(t, srv)))
	assert.Equal(t, 3.0, sumOf(t, runRound(t, srv)))
	assert.Equal(t, 6, srv.Progress().Snapshot().Dispatched)
}

func TestService_PoolInvariant(t *testing.T) {
	var mu sync.Mutex
	var succeeded []float64
	task := worker.TaskFunc(func(ctx context.Context, item message.WorkItem) (float64, error) {
		if math.Mod(math.Floor(item.Value), 7) == 0 {
			return 0, worker.ErrFault
		}
		mu.Lock()
		succeeded = append(succeeded, item.Value)
		mu.Unlock()
		return math.Sqrt(item.Value), nil
	})
	const workers = 8
	srv := newStarted(t,
		WithWorkers(workers),
		WithTask(task),
		WithWorkload(workload.NewRandom(11)),
		WithPolicy(&policy.Policy{MaxRestarts: -1}))

	seen := map[message.ID]bool{}
	for _, id := range inspect(t, srv).Workers {
		seen[id] = true
	}
	for i := 0; i < 30; i++ {
		mu.Lock()
		succeeded = nil
		mu.Unlock()

		sum := sumOf(t, runRound(t, srv))

		mu.Lock()
		expected := 0.0
		for _, v := range succeeded {
			expected += math.Sqrt(v)
		}
		mu.Unlock()
		assert.InDelta(t, expected, sum, 1e-6)

		state := inspect(t, srv)
		assert.Len(t, state.Workers, workers)
		assertDistinct(t, state.Workers)
		for _, id := range state.Workers {
			seen[id] = true
		}
	}
	snapshot := srv.Progress().Snapshot()
	assert.Equal(t, 30, snapshot.Rounds)
	assert.Equal(t, snapshot.Failures, snapshot.Replacements)
	assert.Equal(t, snapshot.Dispatched, snapshot.Results+snapshot.Failures)
	assert.Len(t, seen, workers+snapshot.Replacements, "identities are never reused")
}

func TestService_IgnoresStrangers(t *testing.T) {
	srv := newStarted(t,
		WithWorkers(2),
		WithTask(worker.NewSquareRoot(0)),
		WithWorkload(workload.NewSequence(4, 9)))

	ctx := context.Background()
	require.NoError(t, srv.Send(ctx, message.New("stranger", nil, message.Result{Value: 100})))
	require.NoError(t, srv.Send(ctx, message.New("stranger", nil, message.WorkerFailed{Worker: "stranger"})))
	assert.Equal(t, 5.0, sumOf(t, runRound(t, srv)))

	snapshot := srv.Progress().Snapshot()
	assert.Equal(t, 1, snapshot.Ignored)
	assert.Equal(t, 0, snapshot.Failures)
	assert.Len(t, inspect(t, srv).Workers, 2)
}

func TestService_RejectsOverlappingStart(t *testing.T) {
	release := make(chan struct{})
	task := worker.TaskFunc(func(ctx context.Context, item message.WorkItem) (float64, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return math.Sqrt(item.Value), nil
	})
	srv := newStarted(t,
		WithWorkers(2),
		WithTask(task),
		WithWorkload(workload.NewSequence(4, 16)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	first := memory.NewMailbox[message.Envelope](1)
	require.NoError(t, srv.Send(ctx, message.New("first", first, message.Start{})))
	assert.True(t, inspect(t, srv).Active)

	second := memory.NewMailbox[message.Envelope](1)
	require.NoError(t, srv.Send(ctx, message.New("second", second, message.Start{})))
	envelope, err := srv.Await(ctx, second)
	require.NoError(t, err)
	rejected, ok := envelope.Body.(message.Rejected)
	require.True(t, ok)
	assert.ErrorIs(t, rejected.Err, ErrRoundInProgress)

	close(release)
	envelope, err = srv.Await(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 6.0, sumOf(t, envelope))
	assert.Equal(t, 1, srv.Progress().Snapshot().Rejected)
}

func TestService_Escalation(t *testing.T) {
	testCases := []struct {
		name   string
		policy *policy.Policy
		task   worker.Task
	}{
		{
			name:   "restart intensity exceeded",
			policy: &policy.Policy{MaxRestarts: 1, Window: time.Minute},
			task:   failOn(1, 2),
		},
		{
			name:   "unrecoverable fault",
			policy: policy.Default(),
			task: worker.TaskFunc(func(ctx context.Context, item message.WorkItem) (float64, error) {
				return 0, policy.ErrUnrecoverable
			}),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newStarted(t,
				WithWorkers(2),
				WithTask(tc.task),
				WithPolicy(tc.policy),
				WithWorkload(workload.NewSequence(1, 2)))

			envelope := runRound(t, srv)
			rejected, ok := envelope.Body.(message.Rejected)
			require.True(t, ok, "expected rejection, got %T", envelope.Body)
			assert.ErrorIs(t, rejected.Err, ErrSupervisionExhausted)

			select {
			case <-srv.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("coordinator did not stop")
			}
			assert.ErrorIs(t, srv.Err(), ErrSupervisionExhausted)
			assert.ErrorIs(t, srv.Err(), worker.ErrFault)
			err := srv.Send(context.Background(), message.New("late", nil, message.Start{}))
			assert.ErrorIs(t, err, ErrSupervisionExhausted)
		})
	}
}

func TestService_TransientFaultsNotCounted(t *testing.T) {
	task := worker.TaskFunc(func(ctx context.Context, item message.WorkItem) (float64, error) {
		if item.Value == 4 {
			return 0, fmt.Errorf("%w: %w", worker.ErrFault, policy.ErrTransient)
		}
		return math.Sqrt(item.Value), nil
	})
	srv := newStarted(t,
		WithWorkers(3),
		WithTask(task),
		WithPolicy(&policy.Policy{MaxRestarts: 0, Window: time.Minute}),
		WithWorkload(workload.NewSequence(9, 4, 16)))

	for i := 0; i < 5; i++ {
		assert.Equal(t, 7.0, sumOf(t, runRound(t, srv)))
	}
	assert.NoError(t, srv.Err())
	snapshot := srv.Progress().Snapshot()
	assert.Equal(t, 5, snapshot.Failures)
	assert.Equal(t, 5, snapshot.Replacements)
	assert.Len(t, inspect(t, srv).Workers, 3)
}

func TestService_Events(t *testing.T) {
	publisher := event.NewMemoryPublisher[Lifecycle](64)
	var mu sync.Mutex
	var types []string
	listener := event.NewListener[Lifecycle](publisher, func(e *event.Event[Lifecycle]) {
		mu.Lock()
		types = append(types, e.Type())
		mu.Unlock()
	})
	listener.Start(context.Background())
	defer listener.Stop()

	srv := newStarted(t,
		WithWorkers(2),
		WithTask(failOn(4)),
		WithWorkload(workload.NewSequence(4, 9)),
		WithEvents(publisher))
	assert.Equal(t, 3.0, sumOf(t, runRound(t, srv)))

	expected := []string{
		event.TypeWorkerStarted,
		event.TypeWorkerStarted,
		event.TypeRoundStarted,
		event.TypeWorkerFailed,
		event.TypeWorkerStarted,
		event.TypeWorkerReplaced,
		event.TypeRoundCompleted,
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) >= len(expected)
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, expected, types)
}

func TestService_Lifecycle(t *testing.T) {
	srv, err := New(WithLogger(zerolog.Nop()), WithWorkers(1))
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Send(context.Background(), message.New("x", nil, message.Start{})), ErrNotStarted)
	srv.Shutdown()

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrAlreadyStarted)
	srv.Shutdown()
	assert.NoError(t, srv.Err())
	assert.ErrorIs(t, srv.Send(context.Background(), message.New("x", nil, message.Start{})), ErrStopped)

	_, err = New(WithWorkers(-1))
	assert.Error(t, err)
}

func TestService_FaultIsContained(t *testing.T) {
	boom := errors.New("boom")
	task := worker.TaskFunc(func(ctx context.Context, item message.WorkItem) (float64, error) {
		if item.Value == 0 {
			panic(boom)
		}
		return item.Value, nil
	})
	srv := newStarted(t,
		WithWorkers(3),
		WithTask(task),
		WithWorkload(workload.NewSequence(1, 0, 2)))
	assert.Equal(t, 3.0, sumOf(t, runRound(t, srv)))
	assert.NoError(t, srv.Err())
	assert.Len(t, inspect(t, srv).Workers, 3)
}
