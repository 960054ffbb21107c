package fanout

import (
	"github.com/rs/zerolog"
	"github.com/viant/fanout/policy"
	"github.com/viant/fanout/service/coordinator"
	"github.com/viant/fanout/service/event"
	"github.com/viant/fanout/service/worker"
	"github.com/viant/fanout/service/workload"
	"github.com/viant/fanout/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service
type Option func(s *Service)

// WithConfig replaces the whole configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			c := *config
			s.config = &c
		}
	}
}

// WithWorkers sets the pool size
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.Workers = count
	}
}

// WithTask sets the task run by every worker; it overrides the configured failure rate.
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

// WithPolicy sets the supervision policy; it overrides the configured supervision.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = &logger
	}
}

// WithEventHandler registers a handler receiving coordinator lifecycle events
// in publish order. Events are dropped, not delayed, when the handler falls behind.
func WithEventHandler(handler func(*event.Event[coordinator.Lifecycle])) Option {
	return func(s *Service) {
		s.handler = handler
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
