// Package telemetry provides observability for triggerkit.
//
// # Components
//
//   - logging: structured logging over log/slog
//   - metrics: Prometheus trigger metrics and the metrics endpoint
//   - health: liveness and readiness probes
package telemetry
