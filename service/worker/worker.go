package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/viant/fanout/internal/idgen"
	"github.com/viant/fanout/model/message"
	"github.com/viant/fanout/service/messaging"
	"github.com/viant/fanout/service/messaging/memory"
)

// DefaultMailbox is the mailbox configuration of a spawned worker.
var DefaultMailbox = messaging.QueueConfig{Buffer: 4, DeadLetter: true}

// Handle is the address and lifecycle of a running worker.
type Handle struct {
	ID      message.ID
	Name    string
	task    Task
	watcher message.Mailbox
	mailbox *memory.Queue[message.Envelope]
	config  messaging.QueueConfig
	logger  zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Spawn starts a worker goroutine running task. Abnormal termination is
// reported to watcher as WorkerFailed; a nil watcher disables notification.
func Spawn(ctx context.Context, task Task, watcher message.Mailbox, options ...Option) *Handle {
	h := &Handle{
		ID:      message.ID(idgen.NewWithPrefix("worker")),
		task:    task,
		watcher: watcher,
		config:  DefaultMailbox,
		logger:  log.Logger,
		done:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(h)
	}
	if h.Name == "" {
		h.Name = string(h.ID)
	}
	h.mailbox = memory.NewQueue[message.Envelope](memory.FromQueueConfig(h.config))
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)
	return h
}

// Mailbox returns the worker address
func (h *Handle) Mailbox() message.Mailbox {
	return h.mailbox
}

// Send delivers an envelope to the worker.
func (h *Handle) Send(ctx context.Context, envelope *message.Envelope) error {
	return h.mailbox.Publish(ctx, envelope)
}

// Stop terminates the worker without notifying the watcher.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed once the worker goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the fault that terminated the worker, valid after Done.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// DeadLetters returns the work the worker failed on, when its mailbox keeps dead letters.
func (h *Handle) DeadLetters() []message.Envelope {
	return h.mailbox.DeadLetters()
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)
	for {
		msg, err := h.mailbox.Consume(ctx)
		if err != nil {
			return
		}
		if err = h.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			h.err = err
			_ = msg.Nack(err)
			h.notify(ctx, err)
			return
		}
		_ = msg.Ack()
	}
}

func (h *Handle) process(ctx context.Context, msg messaging.Message[message.Envelope]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = fmt.Errorf("%w: panic: %w", ErrFault, rErr)
				return
			}
			err = fmt.Errorf("%w: panic: %v", ErrFault, r)
		}
	}()
	envelope := msg.T()
	item, ok := envelope.Body.(message.WorkItem)
	if !ok {
		h.logger.Warn().Str("worker", h.Name).Stringer("kind", envelope.Body.Kind()).Msg("unhandled message")
		return nil
	}
	y, err := h.task.Compute(ctx, item)
	if err != nil {
		if !errors.Is(err, ErrFault) {
			err = fmt.Errorf("%w: %w", ErrFault, err)
		}
		return err
	}
	if envelope.ReplyTo == nil {
		return nil
	}
	if pErr := envelope.ReplyTo.Publish(ctx, message.New(h.ID, h.mailbox, message.Result{Value: y})); pErr != nil && ctx.Err() == nil {
		h.logger.Warn().Err(pErr).Str("worker", h.Name).Msg("failed to reply")
	}
	return nil
}

func (h *Handle) notify(ctx context.Context, err error) {
	if h.watcher == nil {
		return
	}
	failed := message.New(h.ID, nil, message.WorkerFailed{Worker: h.ID, Err: err})
	if pErr := h.watcher.Publish(ctx, failed); pErr != nil {
		h.logger.Warn().Err(pErr).Str("worker", h.Name).Msg("failed to notify watcher")
	}
}
