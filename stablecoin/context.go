package stablecoin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
)

// ErrNilParentContext indicates that a nil parent context was provided.
var ErrNilParentContext = errors.New("cannot create context from nil parent")

type customContextKey string

// CustomContextKey is the context key used to store CustomContextKeyValue.
var CustomContextKey = customContextKey("stablecoin_context")

// CustomContextKeyValue holds the request-scoped facilities attached to a context.
type CustomContextKeyValue struct {
	RequestID string
	Tracer    trace.Tracer
	Logger    log.Logger

	// AttrBag holds attributes applied to every span of the request.
	AttrBag []attribute.KeyValue
}

func valuesFrom(ctx context.Context) *CustomContextKeyValue {
	values, _ := ctx.Value(CustomContextKey).(*CustomContextKeyValue)
	if values == nil {
		return &CustomContextKeyValue{}
	}

	clone := *values
	clone.AttrBag = append([]attribute.KeyValue(nil), values.AttrBag...)

	return &clone
}

// ContextWithLogger returns a child context carrying logger.
func ContextWithLogger(ctx context.Context, logger log.Logger) context.Context {
	values := valuesFrom(ctx)
	values.Logger = logger

	return context.WithValue(ctx, CustomContextKey, values)
}

// ContextWithTracer returns a child context carrying tracer.
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	values := valuesFrom(ctx)
	values.Tracer = tracer

	return context.WithValue(ctx, CustomContextKey, values)
}

// ContextWithRequestID returns a child context carrying the correlation id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	values := valuesFrom(ctx)
	values.RequestID = requestID

	return context.WithValue(ctx, CustomContextKey, values)
}

// ContextWithSpanAttributes appends request-wide span attributes.
func ContextWithSpanAttributes(ctx context.Context, kv ...attribute.KeyValue) context.Context {
	if len(kv) == 0 {
		return ctx
	}

	values := valuesFrom(ctx)
	values.AttrBag = append(values.AttrBag, kv...)

	return context.WithValue(ctx, CustomContextKey, values)
}

// AttributesFromContext returns a copy of the request-wide span attributes.
func AttributesFromContext(ctx context.Context) []attribute.KeyValue {
	values, ok := ctx.Value(CustomContextKey).(*CustomContextKeyValue)
	if !ok || values == nil || len(values.AttrBag) == 0 {
		return nil
	}

	return append([]attribute.KeyValue(nil), values.AttrBag...)
}

// NewLoggerFromContext returns the context logger or a NopLogger.
//
//nolint:ireturn
func NewLoggerFromContext(ctx context.Context) log.Logger {
	if values, ok := ctx.Value(CustomContextKey).(*CustomContextKeyValue); ok && values.Logger != nil {
		return values.Logger
	}

	return &log.NopLogger{}
}

// NewTrackingFromContext returns the logger, tracer and request id of ctx,
// substituting a NopLogger, the global tracer and a fresh uuid for whatever
// is missing.
//
//nolint:ireturn
func NewTrackingFromContext(ctx context.Context) (log.Logger, trace.Tracer, string) {
	values, _ := ctx.Value(CustomContextKey).(*CustomContextKeyValue)
	if values == nil {
		values = &CustomContextKeyValue{}
	}

	logger := values.Logger
	if logger == nil {
		logger = &log.NopLogger{}
	}

	tracer := values.Tracer
	if tracer == nil {
		tracer = otel.Tracer(constant.TelemetrySDKName)
	}

	requestID := strings.TrimSpace(values.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return logger, tracer, requestID
}

// WithTimeoutSafe applies timeout unless parent already has an earlier deadline.
func WithTimeoutSafe(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if parent == nil {
		return nil, nil, ErrNilParentContext
	}

	if deadline, ok := parent.Deadline(); ok && time.Until(deadline) < timeout {
		ctx, cancel := context.WithCancel(parent)
		return ctx, cancel, nil
	}

	ctx, cancel := context.WithTimeout(parent, timeout)

	return ctx, cancel, nil
}
