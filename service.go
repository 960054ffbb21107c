package fanout

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/viant/fanout/policy"
	"github.com/viant/fanout/service/coordinator"
	"github.com/viant/fanout/service/event"
	"github.com/viant/fanout/service/worker"
	"github.com/viant/fanout/service/workload"
)

const eventBuffer = 1024

// Service represents the fanout service
type Service struct {
	runtime *Runtime
	config  *Config
	task    worker.Task
	source  workload.Source
	policy  *policy.Policy
	logger  *zerolog.Logger
	handler func(*event.Event[coordinator.Lifecycle])
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	s.ensureBaseSetup()

	coordinatorOptions := []coordinator.Option{
		coordinator.WithConfig(coordinator.Config{
			WorkerCount: s.config.Workers,
			Mailbox:     s.config.Mailbox,
		}),
		coordinator.WithTask(s.task),
		coordinator.WithWorkload(s.source),
		coordinator.WithPolicy(s.policy),
		coordinator.WithLogger(*s.logger),
	}
	if s.handler != nil {
		publisher := event.NewMemoryPublisher[coordinator.Lifecycle](eventBuffer)
		coordinatorOptions = append(coordinatorOptions, coordinator.WithEvents(publisher))
		s.runtime.listener = event.NewListener(publisher, s.handler)
	}
	var err error
	if s.runtime.coordinator, err = coordinator.New(coordinatorOptions...); err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	s.runtime.config = s.config
	s.runtime.logger = *s.logger
	return nil
}

func (s *Service) ensureBaseSetup() {
	if s.logger == nil {
		logger := log.Logger
		s.logger = &logger
	}
	if s.task == nil {
		s.task = worker.NewSquareRoot(s.config.FailureRate)
	}
	if s.source == nil {
		s.source = workload.NewRandom(0)
	}
	if s.policy == nil {
		s.policy = policy.FromConfig(&s.config.Supervision)
	}
}

// Runtime returns the runtime driving rounds
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// New creates a service; options are applied on top of DefaultConfig.
func New(options ...Option) (*Service, error) {
	ret := &Service{runtime: &Runtime{}, config: DefaultConfig()}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}
