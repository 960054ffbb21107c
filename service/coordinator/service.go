package coordinator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/viant/fanout/model/message"
	"github.com/viant/fanout/policy"
	"github.com/viant/fanout/progress"
	"github.com/viant/fanout/runtime/round"
	"github.com/viant/fanout/service/event"
	"github.com/viant/fanout/service/messaging"
	"github.com/viant/fanout/service/messaging/memory"
	"github.com/viant/fanout/service/worker"
	"github.com/viant/fanout/service/workload"
	"github.com/viant/fanout/tracing"
)

// ID is the sender identity the coordinator stamps on its envelopes.
const ID message.ID = "coordinator"

// Config represents coordinator configuration
type Config struct {
	// WorkerCount is the pool size kept across failures
	WorkerCount int

	// InboxBuffer is the coordinator mailbox capacity; 0 sizes it from WorkerCount
	InboxBuffer int

	// Mailbox configures each worker mailbox
	Mailbox messaging.QueueConfig
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount: 100,
		Mailbox:     worker.DefaultMailbox,
	}
}

func (c Config) inboxBuffer() int {
	if c.InboxBuffer > 0 {
		return c.InboxBuffer
	}
	// a round produces at most one result and one failure per worker
	return 4*c.WorkerCount + 16
}

// Lifecycle is the payload of coordinator events.
type Lifecycle struct {
	Worker      message.ID
	Replacement message.ID
	Round       uint64
	Sum         float64
	Err         error
}

// Service supervises a pool of workers and runs rounds over it.
type Service struct {
	config   Config
	task     worker.Task
	source   workload.Source
	policy   *policy.Policy
	tracker  *policy.Tracker
	logger   zerolog.Logger
	progress *progress.Progress
	events   *event.Publisher[Lifecycle]

	inbox *memory.Queue[message.Envelope]

	// owned by the run loop
	pool      *pool
	round     *round.Round
	roundSpan *tracing.Span
	roundSeq  uint64
	workerSeq int

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
	err     error
}

// New creates a coordinator; call Start to spawn the pool and run the loop.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		logger: log.Logger,
		done:   make(chan struct{}),
		pool:   newPool(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.config.WorkerCount < 0 {
		return nil, fmt.Errorf("invalid worker count: %d", s.config.WorkerCount)
	}
	if s.task == nil {
		s.task = worker.NewSquareRoot(worker.DefaultFailureRate)
	}
	if s.source == nil {
		s.source = workload.NewRandom(0)
	}
	if s.policy == nil {
		s.policy = policy.Default()
	}
	if s.progress == nil {
		s.progress = progress.New(nil)
	}
	s.tracker = s.policy.NewTracker()
	s.inbox = memory.NewMailbox[message.Envelope](s.config.inboxBuffer())
	return s, nil
}

// Mailbox returns the coordinator address
func (s *Service) Mailbox() message.Mailbox {
	return s.inbox
}

// Progress returns the coordinator counters
func (s *Service) Progress() *progress.Progress {
	return s.progress
}

// Start populates the pool and begins processing the inbox.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.WorkerCount; i++ {
		s.spawn()
	}
	s.logger.Info().Int("workers", s.pool.size()).Msg("coordinator started")
	go s.run()
	return nil
}

// Shutdown stops the loop and all workers, and waits for them.
func (s *Service) Shutdown() {
	if !s.started.Load() {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed once the coordinator has stopped, normally or by escalation.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Err returns the escalated failure once Done is closed, nil otherwise.
func (s *Service) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Send delivers an envelope to the coordinator inbox.
func (s *Service) Send(ctx context.Context, envelope *message.Envelope) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	select {
	case <-s.done:
		return s.terminated()
	default:
	}
	return s.inbox.Publish(ctx, envelope)
}

// Await waits for the next envelope on reply, failing early when the
// coordinator stops.
func (s *Service) Await(ctx context.Context, reply *memory.Queue[message.Envelope]) (*message.Envelope, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	msg, err := reply.Consume(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, s.terminated()
	}
	_ = msg.Ack()
	return msg.T(), nil
}

// Inspect returns the current pool and round state.
func (s *Service) Inspect(ctx context.Context) (*message.PoolState, error) {
	reply := memory.NewMailbox[message.Envelope](1)
	if err := s.Send(ctx, message.New("", reply, message.Inspect{})); err != nil {
		return nil, err
	}
	envelope, err := s.Await(ctx, reply)
	if err != nil {
		return nil, err
	}
	state, ok := envelope.Body.(message.PoolState)
	if !ok {
		return nil, fmt.Errorf("unexpected reply: %v", envelope.Body.Kind())
	}
	return &state, nil
}

func (s *Service) terminated() error {
	if err := s.Err(); err != nil {
		return err
	}
	return ErrStopped
}

func (s *Service) run() {
	defer close(s.done)
	for {
		msg, err := s.inbox.Consume(s.ctx)
		if err != nil {
			s.stopWorkers()
			s.logger.Info().Msg("coordinator stopped")
			return
		}
		err = s.handle(msg.T())
		_ = msg.Ack()
		if err != nil {
			s.fail(err)
			return
		}
	}
}

func (s *Service) handle(envelope *message.Envelope) error {
	switch body := envelope.Body.(type) {
	case message.Start:
		s.onStart(envelope)
	case message.Result:
		s.onResult(envelope.From, body)
	case message.WorkerFailed:
		return s.onWorkerFailed(body)
	case message.Inspect:
		s.onInspect(envelope)
	default:
		kind := "nil"
		if body != nil {
			kind = body.Kind().String()
		}
		s.logger.Warn().Str("kind", kind).Str("from", string(envelope.From)).Msg("unhandled message")
	}
	return nil
}

func (s *Service) onStart(envelope *message.Envelope) {
	if s.round != nil {
		s.progress.Update(progress.Delta{Rejected: 1})
		s.publish(event.TypeRoundRejected, Lifecycle{Round: s.round.Seq, Err: ErrRoundInProgress})
		s.reply(envelope.ReplyTo, message.Rejected{Err: ErrRoundInProgress})
		return
	}
	s.roundSeq++
	r := round.New(s.roundSeq, envelope.ReplyTo)
	_, s.roundSpan = tracing.StartSpan(s.ctx, "coordinator.round", "INTERNAL")
	s.roundSpan.WithAttributes(tracing.RoundAttributes(r.Seq, s.pool.size()))
	s.round = r

	for _, h := range s.pool.list() {
		item := message.WorkItem{Value: s.source.Next()}
		if err := h.Send(s.ctx, message.New(ID, s.inbox, item)); err != nil {
			s.logger.Warn().Err(err).Str("worker", h.Name).Msg("failed to dispatch")
			continue
		}
		r.Expect(h.ID)
	}
	s.progress.Update(progress.Delta{Dispatched: r.Dispatched})
	s.publish(event.TypeRoundStarted, Lifecycle{Round: r.Seq})
	if r.Done() {
		s.complete()
	}
}

func (s *Service) onResult(from message.ID, result message.Result) {
	if s.round == nil || !s.round.Accept(from, result.Value) {
		s.progress.Update(progress.Delta{Ignored: 1})
		s.logger.Debug().Str("worker", string(from)).Msg("ignoring result for no outstanding work")
		return
	}
	s.progress.Update(progress.Delta{Results: 1})
	if s.round.Done() {
		s.complete()
	}
}

func (s *Service) onWorkerFailed(failed message.WorkerFailed) error {
	h := s.pool.get(failed.Worker)
	if h == nil {
		s.logger.Debug().Str("worker", string(failed.Worker)).Msg("ignoring termination of unknown worker")
		return nil
	}
	directive := s.tracker.Decide(failed.Err)
	s.progress.Update(progress.Delta{Failures: 1})
	s.logger.Info().Err(failed.Err).Str("worker", h.Name).Stringer("directive", directive).Msg("worker terminated")
	s.publish(event.TypeWorkerFailed, Lifecycle{Worker: h.ID, Err: failed.Err})
	if s.roundSpan != nil {
		s.roundSpan.AddEvent("worker.failed", map[string]string{"worker": h.Name, "directive": directive.String()})
	}
	if directive == policy.Escalate {
		return fmt.Errorf("%w: %s: %w", ErrSupervisionExhausted, h.Name, failed.Err)
	}

	s.pool.remove(h.ID)
	replacement := s.spawn()
	s.progress.Update(progress.Delta{Replacements: 1})
	s.publish(event.TypeWorkerReplaced, Lifecycle{Worker: h.ID, Replacement: replacement.ID})

	if s.round != nil && s.round.Drop(h.ID) && s.round.Done() {
		s.complete()
	}
	return nil
}

func (s *Service) onInspect(envelope *message.Envelope) {
	state := message.PoolState{Workers: s.pool.ids()}
	if s.round != nil {
		state.Active = true
		state.Outstanding = s.round.Outstanding()
		state.Round = s.round.Seq
	}
	s.reply(envelope.ReplyTo, state)
}

func (s *Service) complete() {
	r := s.round
	s.round = nil
	s.reply(r.Requester, message.Result{Value: r.Sum})
	s.progress.Update(progress.Delta{Rounds: 1})
	s.publish(event.TypeRoundCompleted, Lifecycle{Round: r.Seq, Sum: r.Sum})
	s.roundSpan.WithInt("round.replied", r.Replied).WithInt("round.lost", r.Lost).WithFloat("round.sum", r.Sum)
	tracing.EndSpan(s.roundSpan, nil)
	s.roundSpan = nil
	s.logger.Debug().Uint64("round", r.Seq).Float64("sum", r.Sum).
		Int("replied", r.Replied).Int("lost", r.Lost).Dur("elapsed", r.Elapsed()).Msg("sending result")
}

func (s *Service) fail(err error) {
	s.err = err
	s.logger.Error().Err(err).Msg("coordinator escalated")
	lifecycle := Lifecycle{Err: err}
	if r := s.round; r != nil {
		lifecycle.Round = r.Seq
		s.reply(r.Requester, message.Rejected{Err: err})
		tracing.EndSpan(s.roundSpan, err)
		s.round, s.roundSpan = nil, nil
	}
	s.publish(event.TypeEscalated, lifecycle)
	s.cancel()
	s.stopWorkers()
}

func (s *Service) spawn() *worker.Handle {
	name := fmt.Sprintf("worker-%d", s.workerSeq)
	s.workerSeq++
	h := worker.Spawn(s.ctx, s.task, s.inbox,
		worker.WithName(name),
		worker.WithMailbox(s.config.Mailbox),
		worker.WithLogger(s.logger))
	s.pool.add(h)
	s.publish(event.TypeWorkerStarted, Lifecycle{Worker: h.ID})
	return h
}

func (s *Service) stopWorkers() {
	handles := s.pool.list()
	for _, h := range handles {
		h.Stop()
	}
	for _, h := range handles {
		<-h.Done()
	}
}

func (s *Service) reply(to message.Mailbox, body message.Body) {
	if to == nil {
		return
	}
	if err := to.Publish(s.ctx, message.New(ID, s.inbox, body)); err != nil {
		s.logger.Warn().Err(err).Stringer("kind", body.Kind()).Msg("failed to reply")
	}
}

func (s *Service) publish(eventType string, data Lifecycle) {
	if s.events == nil {
		return
	}
	ctx := &event.Context{Source: string(ID), EventType: eventType, Round: data.Round, Worker: string(data.Worker)}
	_ = s.events.Publish(s.ctx, event.NewEvent(ctx, data))
}
