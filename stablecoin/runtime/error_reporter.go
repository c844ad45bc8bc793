package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrorReporter forwards recovered panics to an external tracker.
// Implementations must be safe for concurrent use.
type ErrorReporter interface {
	CaptureException(ctx context.Context, err error, tags map[string]string)
}

var (
	errorReporterInstance ErrorReporter
	errorReporterMu       sync.RWMutex

	productionMode   bool
	productionModeMu sync.RWMutex
)

const redactedPanicMsg = "panic recovered (details redacted)"

// SetErrorReporter installs reporter. Pass nil to disable reporting.
func SetErrorReporter(reporter ErrorReporter) {
	errorReporterMu.Lock()
	defer errorReporterMu.Unlock()

	errorReporterInstance = reporter
}

// GetErrorReporter returns the configured reporter, or nil.
func GetErrorReporter() ErrorReporter {
	errorReporterMu.RLock()
	defer errorReporterMu.RUnlock()

	return errorReporterInstance
}

// SetProductionMode toggles redaction of panic values and stacks.
func SetProductionMode(enabled bool) {
	productionModeMu.Lock()
	defer productionModeMu.Unlock()

	productionMode = enabled
}

// IsProductionMode reports whether redaction is on.
func IsProductionMode() bool {
	productionModeMu.RLock()
	defer productionModeMu.RUnlock()

	return productionMode
}

func reportPanicToErrorService(ctx context.Context, panicValue any, stack []byte, component, name string) {
	reporter := GetErrorReporter()
	if reporter == nil {
		return
	}

	isProduction := IsProductionMode()

	tags := map[string]string{
		"component":      component,
		"goroutine_name": name,
	}

	if len(stack) > 0 && !isProduction {
		tags["stack_trace"] = string(stack)
	}

	reporter.CaptureException(ctx, toPanicError(panicValue, isProduction), tags)
}

func toPanicError(panicValue any, redact bool) error {
	if redact {
		return errors.New(redactedPanicMsg)
	}

	if err, ok := panicValue.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}

	return fmt.Errorf("panic: %v", panicValue)
}
