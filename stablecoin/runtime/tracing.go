package runtime

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PanicSpanEventName is the event name added to the active span on panic.
const PanicSpanEventName = "panic.recovered"

// RecordPanicToSpan marks the span in ctx as failed. Stack traces are dropped
// in production mode.
func RecordPanicToSpan(ctx context.Context, panicValue any, stack []byte, component, name string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("panic.component", component),
		attribute.String("panic.goroutine_name", name),
	}

	value := fmt.Sprint(panicValue)
	if IsProductionMode() {
		value = redactedPanicMsg
	} else if len(stack) > 0 {
		attrs = append(attrs, attribute.String("panic.stack", string(stack)))
	}

	attrs = append(attrs, attribute.String("panic.value", value))

	span.AddEvent(PanicSpanEventName, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, "panic recovered in "+component+"/"+name)
}
