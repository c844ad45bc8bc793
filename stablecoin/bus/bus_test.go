//go:build unit

package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type pingQuery struct{ Name string }

type pingResult struct{ Greeting string }

type panicCommand struct{}

type unknownCommand struct{}

func pingHandler() Handler[pingQuery, pingResult] {
	return HandlerFunc[pingQuery, pingResult](func(_ context.Context, q pingQuery) (pingResult, error) {
		return pingResult{Greeting: "hello " + q.Name}, nil
	})
}

func TestExecute(t *testing.T) {
	t.Parallel()

	b := NewQueryBus(WithLogger(log.NewNop()))
	require.NoError(t, Register(b, pingHandler()))
	b.Seal()

	res, err := Execute[pingResult](context.Background(), b, pingQuery{Name: "treasury"})
	require.NoError(t, err)
	assert.Equal(t, "hello treasury", res.Greeting)

	untyped, err := b.Dispatch(context.Background(), pingQuery{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, pingResult{Greeting: "hello x"}, untyped)
}

func TestRegister_Errors(t *testing.T) {
	t.Parallel()

	b := NewCommandBus()
	require.NoError(t, Register(b, pingHandler()))

	err := Register(b, pingHandler())
	assert.ErrorIs(t, err, constant.ErrDuplicateHandler)

	b.Seal()
	assert.True(t, b.Sealed())

	err = Register[panicCommand, struct{}](b, HandlerFunc[panicCommand, struct{}](func(context.Context, panicCommand) (struct{}, error) {
		return struct{}{}, nil
	}))

	var cfgErr *stablecoin.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, constant.ErrRegistrySealed)
}

func TestDispatch_UnknownRequest(t *testing.T) {
	t.Parallel()

	b := NewCommandBus()
	b.Seal()

	_, err := b.Dispatch(context.Background(), unknownCommand{})

	var cfgErr *stablecoin.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, constant.ErrHandlerNotFound)
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	b := NewCommandBus(WithTracer(tp.Tracer("bus-test")))
	require.NoError(t, Register(b, HandlerFunc[panicCommand, struct{}](func(context.Context, panicCommand) (struct{}, error) {
		panic("handler exploded")
	})))
	b.Seal()

	_, err := b.Dispatch(context.Background(), panicCommand{})
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrPanic)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "command.panicCommand", spans[0].Name())
}

func TestExecute_HandlerErrorPassesThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	b := NewCommandBus()
	require.NoError(t, Register(b, HandlerFunc[pingQuery, pingResult](func(context.Context, pingQuery) (pingResult, error) {
		return pingResult{}, boom
	})))

	_, err := Execute[pingResult](context.Background(), b, pingQuery{})
	assert.ErrorIs(t, err, boom)
}

func TestExecute_WrongResultType(t *testing.T) {
	t.Parallel()

	b := NewQueryBus()
	require.NoError(t, Register(b, pingHandler()))

	_, err := Execute[string](context.Background(), b, pingQuery{})

	var cfgErr *stablecoin.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
