package coordinator

import (
	"github.com/rs/zerolog"
	"github.com/viant/fanout/policy"
	"github.com/viant/fanout/progress"
	"github.com/viant/fanout/service/event"
	"github.com/viant/fanout/service/worker"
	"github.com/viant/fanout/service/workload"
)

// Option customises the coordinator.
type Option func(*Service)

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithWorkers sets the pool size
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithTask sets the task every worker runs
func WithTask(task worker.Task) Option {
	return func(s *Service) {
		s.task = task
	}
}

// WithWorkload sets the source of work item values
func WithWorkload(source workload.Source) Option {
	return func(s *Service) {
		s.source = source
	}
}

// WithPolicy sets the supervision policy
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithProgress sets the counters tracker
func WithProgress(p *progress.Progress) Option {
	return func(s *Service) {
		s.progress = p
	}
}

// WithEvents sets the lifecycle event publisher
func WithEvents(publisher *event.Publisher[Lifecycle]) Option {
	return func(s *Service) {
		s.events = publisher
	}
}
