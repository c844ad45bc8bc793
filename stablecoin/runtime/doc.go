// Package runtime provides panic recovery for goroutines, bus handlers and
// HTTP handlers, recording each recovered panic in logs, the active span and
// an optional external reporter.
package runtime
