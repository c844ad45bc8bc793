// Package opentelemetry provides tracing setup and span, HTTP and queue
// propagation helpers.
//
// InitializeTelemetryWithError builds an OTLP trace pipeline when enabled and
// a local tracer provider otherwise, so instrumented code never branches on
// whether telemetry is on.
package opentelemetry
