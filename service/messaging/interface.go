// Package messaging defines the point-to-point mailbox abstraction every unit
// of execution (coordinator, worker, round requester) receives messages on.
package messaging

import (
	"context"
)

// Vendor represents the name of a messaging vendor
type Vendor string

// VendorMemory is the only vendor shipped with the module: in-process mailboxes.
const VendorMemory Vendor = "memory"

// Queue represents an ordered mailbox for any payload type. A queue has exactly
// one consumer; it may have many producers.
type Queue[T any] interface {
	// Publish appends a message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves the oldest message, blocking until one is available
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// ID returns the message identifier assigned on publish
	ID() string

	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}

// QueueConfig defines standard configuration options for queue implementations
type QueueConfig struct {
	// Buffer is the number of messages a mailbox holds before Publish blocks
	Buffer int `json:"buffer,omitempty" yaml:"buffer,omitempty"`

	// DeadLetter keeps nacked messages for inspection
	DeadLetter bool `json:"deadLetter,omitempty" yaml:"deadLetter,omitempty"`
}
