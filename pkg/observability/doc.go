// Package observability provides structured logging, Prometheus metrics,
// health checks, and panic recovery for the orgdeck service.
//
// Logging is JSON-structured via log/slog. Metrics cover HTTP traffic,
// permission gate decisions, cache effectiveness, and a few business-level
// gauges. Health checks distinguish a hard Postgres dependency from the
// optional Redis cache layer.
package observability
