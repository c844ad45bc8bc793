// Package zap implements log.Logger on top of go.uber.org/zap, correlating
// every entry with the active OpenTelemetry span.
package zap
