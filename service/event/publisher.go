package event

import (
	"context"
	"sync/atomic"

	"github.com/viant/fanout/internal/clock"
	"github.com/viant/fanout/service/messaging"
	"github.com/viant/fanout/service/messaging/memory"
)

type offerer[T any] interface {
	TryPublish(t *T) bool
}

type Publisher[T any] struct {
	queue   messaging.Queue[Event[T]]
	dropped atomic.Int64
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// NewMemoryPublisher creates a publisher backed by an in-memory queue.
func NewMemoryPublisher[T any](buffer int) *Publisher[T] {
	return NewPublisher[T](memory.NewMailbox[Event[T]](buffer))
}

// Publish enqueues the event. Queues that support it are offered the event
// without waiting; when full the event is dropped and counted.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if p == nil {
		return nil
	}
	event.CreatedAt = clock.Now()
	if o, ok := p.queue.(offerer[Event[T]]); ok {
		if !o.TryPublish(event) {
			p.dropped.Add(1)
		}
		return nil
	}
	return p.queue.Publish(ctx, event)
}

func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}

// Dropped returns the number of events lost to a full queue.
func (p *Publisher[T]) Dropped() int64 {
	if p == nil {
		return 0
	}
	return p.dropped.Load()
}
