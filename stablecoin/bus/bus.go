package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler handles one request type.
type Handler[Req, Res any] interface {
	Handle(ctx context.Context, req Req) (Res, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Handle calls f.
func (f HandlerFunc[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	return f(ctx, req)
}

type entry func(ctx context.Context, req any) (any, error)

// Bus is a sealed registry of request handlers.
type Bus struct {
	kind     string
	mu       sync.RWMutex
	handlers map[reflect.Type]entry
	sealed   bool
	logger   log.Logger
	tracer   trace.Tracer
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger log.Logger) Option {
	return func(b *Bus) { b.logger = log.OrNop(logger) }
}

// WithTracer sets the tracer used for dispatch spans. Without it the tracer
// carried by the context is used.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Bus) { b.tracer = tracer }
}

// NewCommandBus returns an empty command bus.
func NewCommandBus(opts ...Option) *Bus { return newBus("command", opts) }

// NewQueryBus returns an empty query bus.
func NewQueryBus(opts ...Option) *Bus { return newBus("query", opts) }

func newBus(kind string, opts []Option) *Bus {
	b := &Bus{kind: kind, handlers: make(map[reflect.Type]entry), logger: log.NewNop()}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Register binds h to the request type Req.
func Register[Req, Res any](b *Bus, h Handler[Req, Res]) error {
	t := reflect.TypeFor[Req]()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return &stablecoin.ConfigurationError{Component: b.kind + " bus", Err: fmt.Errorf("%w: %s", constant.ErrRegistrySealed, t)}
	}

	if _, exists := b.handlers[t]; exists {
		return &stablecoin.ConfigurationError{Component: b.kind + " bus", Err: fmt.Errorf("%w: %s", constant.ErrDuplicateHandler, t)}
	}

	b.handlers[t] = func(ctx context.Context, req any) (any, error) {
		return h.Handle(ctx, req.(Req))
	}

	return nil
}

// RegisterFunc binds fn to the request type Req.
func RegisterFunc[Req, Res any](b *Bus, fn func(ctx context.Context, req Req) (Res, error)) error {
	return Register[Req, Res](b, HandlerFunc[Req, Res](fn))
}

// Seal freezes the registry.
func (b *Bus) Seal() {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (b *Bus) Sealed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.sealed
}

// Dispatch routes req to its handler. Handler panics are returned as errors.
func (b *Bus) Dispatch(ctx context.Context, req any) (res any, err error) {
	t := reflect.TypeOf(req)

	b.mu.RLock()
	h, ok := b.handlers[t]
	b.mu.RUnlock()

	if !ok {
		return nil, &stablecoin.ConfigurationError{Component: b.kind + " bus", Err: fmt.Errorf("%w: %v", constant.ErrHandlerNotFound, t)}
	}

	tracer := b.tracer
	if tracer == nil {
		_, tracer, _ = stablecoin.NewTrackingFromContext(ctx)
	}

	name := typeName(t)

	ctx, span := tracer.Start(ctx, b.kind+"."+name)
	defer span.End()

	span.SetAttributes(attribute.String(constant.AttrRequestType, name))

	defer func() {
		if err != nil {
			opentelemetry.HandleSpanError(&span, b.kind+" failed", err)
			b.logger.Log(ctx, log.LevelDebug, b.kind+" failed", log.String("request", name), log.Err(err))
		}
	}()
	defer runtime.RecoverToError(ctx, b.logger, b.kind+"_bus", name, &err)

	return h(ctx, req)
}

// Execute dispatches req and asserts the handler's result type.
func Execute[Res any](ctx context.Context, b *Bus, req any) (Res, error) {
	var zero Res

	res, err := b.Dispatch(ctx, req)
	if err != nil {
		return zero, err
	}

	typed, ok := res.(Res)
	if !ok {
		return zero, &stablecoin.ConfigurationError{
			Component: b.kind + " bus",
			Err:       fmt.Errorf("handler for %T returned %T", req, res),
		}
	}

	return typed, nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}
