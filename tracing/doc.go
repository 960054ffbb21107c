// Package tracing integrates OpenTelemetry with the coordinator so that every
// round, and every caller waiting on one, is recorded as a span. Nothing is
// exported until Init or InitWithExporter installs a provider; until then
// spans are no-op.
package tracing
