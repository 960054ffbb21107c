package worker

import (
	"github.com/rs/zerolog"
	"github.com/viant/fanout/service/messaging"
)

// Option customises a spawned worker.
type Option func(*Handle)

// WithName sets a log friendly name; the identity stays opaque.
func WithName(name string) Option {
	return func(h *Handle) {
		h.Name = name
	}
}

// WithMailbox sets the mailbox configuration; a zero Buffer keeps the default capacity.
func WithMailbox(config messaging.QueueConfig) Option {
	return func(h *Handle) {
		if config.Buffer <= 0 {
			config.Buffer = DefaultMailbox.Buffer
		}
		h.config = config
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handle) {
		h.logger = logger
	}
}
