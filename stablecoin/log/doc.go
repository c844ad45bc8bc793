// Package log defines the logging interface used across lib-stablecoin and
// the typed fields attached to every entry.
//
// The zap package provides the production implementation. GoLogger wraps the
// standard library logger for tools and tests.
package log
