// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, and health check endpoints for the auth services.
//
// The logger is a thin wrapper over slog emitting JSON; handlers should
// obtain it via FromContext so request IDs flow into every line. Metrics are
// registered against an explicit registry rather than the global default so
// tests can run in isolation.
package observability
