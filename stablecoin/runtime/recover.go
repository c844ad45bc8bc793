package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
)

// ErrPanic wraps every panic converted into an error by RecoverToError.
var ErrPanic = errors.New("panic recovered")

// RecoverAndLogWithContext recovers a panic and records it. Use it directly in
// a defer statement.
//
//	defer runtime.RecoverAndLogWithContext(ctx, logger, "relay", "subscription_watcher")
func RecoverAndLogWithContext(ctx context.Context, logger log.Logger, component, name string) {
	if recovered := recover(); recovered != nil {
		handle(ctx, logger, recovered, debug.Stack(), component, name)
	}
}

// RecoverAndCrashWithContext records a panic and re-panics.
func RecoverAndCrashWithContext(ctx context.Context, logger log.Logger, component, name string) {
	if recovered := recover(); recovered != nil {
		handle(ctx, logger, recovered, debug.Stack(), component, name)
		panic(recovered)
	}
}

// RecoverToError turns a panic into an error assigned to *errp.
//
//	func (b *Bus) dispatch(ctx context.Context, req any) (res any, err error) {
//	    defer runtime.RecoverToError(ctx, logger, "bus", "dispatch", &err)
//	    ...
//	}
func RecoverToError(ctx context.Context, logger log.Logger, component, name string, errp *error) {
	if recovered := recover(); recovered != nil {
		handle(ctx, logger, recovered, debug.Stack(), component, name)

		if errp != nil {
			*errp = fmt.Errorf("%w in %s/%s: %v", ErrPanic, component, name, recovered)
		}
	}
}

// HandlePanicValue records a panic value already recovered elsewhere, e.g. by
// fiber's recover middleware.
func HandlePanicValue(ctx context.Context, logger log.Logger, panicValue any, component, name string) {
	handle(ctx, logger, panicValue, debug.Stack(), component, name)
}

// SafeGoWithContextAndComponent runs fn in a goroutine that cannot crash the
// process.
func SafeGoWithContextAndComponent(ctx context.Context, logger log.Logger, component, name string, fn func(context.Context)) {
	go func() {
		defer RecoverAndLogWithContext(ctx, logger, component, name)

		fn(ctx)
	}()
}

func handle(ctx context.Context, logger log.Logger, panicValue any, stack []byte, component, name string) {
	if ctx == nil {
		ctx = context.Background()
	}

	logPanicWithStack(ctx, logger, component, name, panicValue, stack)
	RecordPanicToSpan(ctx, panicValue, stack, component, name)
	reportPanicToErrorService(ctx, panicValue, stack, component, name)
}

func logPanicWithStack(ctx context.Context, logger log.Logger, component, name string, panicValue any, stack []byte) {
	if logger == nil {
		return
	}

	fields := []log.Field{
		log.String("component", component),
		log.String("source", name),
		log.String("panic_value", fmt.Sprint(panicValue)),
	}

	if !IsProductionMode() {
		fields = append(fields, log.String("stack_trace", string(stack)))
	}

	logger.Log(ctx, log.LevelError, "panic recovered", fields...)
}
