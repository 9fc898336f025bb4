// Package observability bundles the operational concerns shared by the
// pulse daemons: structured JSON logging, Prometheus metrics, health
// probes, OpenTelemetry wiring, panic recovery and graceful shutdown.
package observability
