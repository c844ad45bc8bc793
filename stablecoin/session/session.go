package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bus"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/command"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/event"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/hold"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/query"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
	"go.opentelemetry.io/otel/trace"
)

// Ledger is every read the pipeline needs. mirror.Client implements it.
type Ledger interface {
	capability.TokenReader
	validation.StateReader
	hold.Reader
	command.HbarReader
	adapter.AddressResolver
}

// Options configure New. Ledger fills every reader left nil; a reader set
// explicitly wins over it.
type Options struct {
	Registry *adapter.Registry
	Ledger   Ledger

	Tokens    capability.TokenReader
	State     validation.StateReader
	Holds     hold.Reader
	Hbar      command.HbarReader
	Addresses adapter.AddressResolver

	Publisher   event.Publisher
	Logger      log.Logger
	Tracer      trace.Tracer
	RetryPolicy *backoff.Policy
	// Concurrency bounds fan-out checks. Zero keeps the validator default.
	Concurrency int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (o *Options) fill() error {
	if o.Ledger != nil {
		if o.Tokens == nil {
			o.Tokens = o.Ledger
		}

		if o.State == nil {
			o.State = o.Ledger
		}

		if o.Holds == nil {
			o.Holds = o.Ledger
		}

		if o.Hbar == nil {
			o.Hbar = o.Ledger
		}

		if o.Addresses == nil {
			o.Addresses = o.Ledger
		}
	}

	var missing string

	switch {
	case o.Registry == nil:
		missing = "Registry"
	case o.Tokens == nil:
		missing = "Tokens"
	case o.State == nil:
		missing = "State"
	case o.Holds == nil:
		missing = "Holds"
	case o.Hbar == nil:
		missing = "Hbar"
	}

	if missing != "" {
		return &stablecoin.ConfigurationError{Component: "session", Err: fmt.Errorf("missing %s", missing)}
	}

	if o.Addresses == nil {
		o.Addresses = adapter.LongZeroAddresses{}
	}

	if o.Clock == nil {
		o.Clock = time.Now
	}

	o.Logger = log.OrNop(o.Logger)

	return nil
}

// Session is an assembled pipeline.
type Session struct {
	registry *adapter.Registry
	operator *adapter.Operator
	commands *bus.Bus
	queries  *bus.Bus
	logger   log.Logger
}

// New wires the pipeline and seals both buses.
func New(opts Options) (*Session, error) {
	if err := opts.fill(); err != nil {
		return nil, err
	}

	var vopts []validation.Option

	if opts.RetryPolicy != nil {
		vopts = append(vopts, validation.WithRetryPolicy(*opts.RetryPolicy))
	}

	if opts.Concurrency > 0 {
		vopts = append(vopts, validation.WithConcurrency(opts.Concurrency))
	}

	resolver := capability.NewResolver(opts.Tokens, opts.Logger)
	validator := validation.NewValidator(opts.State, opts.Logger, vopts...)

	operator := adapter.NewOperator(opts.Registry, tx.NewBuilder(),
		adapter.WithAddressResolver(opts.Addresses),
		adapter.WithPublisher(opts.Publisher),
		adapter.WithLogger(opts.Logger))

	holds := hold.NewManager(opts.Holds, validator, operator,
		hold.WithAddressResolver(opts.Addresses),
		hold.WithClock(opts.Clock),
		hold.WithLogger(opts.Logger))

	commands, err := command.NewHandler(command.Deps{
		Resolver:  resolver,
		Tokens:    opts.Tokens,
		Validator: validator,
		Operator:  operator,
		Holds:     holds,
		Hbar:      opts.Hbar,
		Logger:    opts.Logger,
		Clock:     opts.Clock,
	})
	if err != nil {
		return nil, err
	}

	queries, err := query.NewHandler(query.Deps{
		Resolver: resolver,
		Tokens:   opts.Tokens,
		State:    opts.State,
		Holds:    opts.Holds,
	})
	if err != nil {
		return nil, err
	}

	busOpts := []bus.Option{bus.WithLogger(opts.Logger)}
	if opts.Tracer != nil {
		busOpts = append(busOpts, bus.WithTracer(opts.Tracer))
	}

	s := &Session{
		registry: opts.Registry,
		operator: operator,
		commands: bus.NewCommandBus(busOpts...),
		queries:  bus.NewQueryBus(busOpts...),
		logger:   opts.Logger,
	}

	if err := errors.Join(command.Register(s.commands, commands), query.Register(s.queries, queries)); err != nil {
		return nil, fmt.Errorf("registering handlers: %w", err)
	}

	s.commands.Seal()
	s.queries.Seal()

	return s, nil
}

// Commands is the sealed command bus.
func (s *Session) Commands() *bus.Bus { return s.commands }

// Queries is the sealed query bus.
func (s *Session) Queries() *bus.Bus { return s.queries }

// Registry is the wallet registry commands are signed through.
func (s *Session) Registry() *adapter.Registry { return s.registry }

// Use switches the active wallet.
func (s *Session) Use(ctx context.Context, kind adapter.WalletKind) error {
	if err := s.registry.Use(kind); err != nil {
		return err
	}

	s.logger.Log(ctx, log.LevelInfo, "active wallet changed", log.String("wallet", string(kind)))

	return nil
}

// Command dispatches req on the command bus of s.
func Command[Res any](ctx context.Context, s *Session, req any) (Res, error) {
	return bus.Execute[Res](ctx, s.commands, req)
}

// Query dispatches req on the query bus of s.
func Query[Res any](ctx context.Context, s *Session, req any) (Res, error) {
	return bus.Execute[Res](ctx, s.queries, req)
}
