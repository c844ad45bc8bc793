package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bus"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/hold"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
)

// HbarReader reads native currency balances.
type HbarReader interface {
	HbarBalance(ctx context.Context, account ledger.ID) (bigdecimal.BigDecimal, error)
}

// Deps are the collaborators shared by every handler.
type Deps struct {
	Resolver  *capability.Resolver
	Tokens    capability.TokenReader
	Validator *validation.Validator
	Operator  *adapter.Operator
	Holds     *hold.Manager
	Hbar      HbarReader
	Logger    log.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (d Deps) validate() error {
	missing := ""

	switch {
	case d.Resolver == nil:
		missing = "Resolver"
	case d.Tokens == nil:
		missing = "Tokens"
	case d.Validator == nil:
		missing = "Validator"
	case d.Operator == nil:
		missing = "Operator"
	case d.Holds == nil:
		missing = "Holds"
	case d.Hbar == nil:
		missing = "Hbar"
	}

	if missing != "" {
		return &stablecoin.ConfigurationError{Component: "command handlers", Err: fmt.Errorf("missing %s", missing)}
	}

	return nil
}

// Result is the outcome of a command. A transaction parked outside the
// ledger reports Pending with its Reference and no network result yet.
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Pending       bool   `json:"pending,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

// HoldResult is the outcome of a hold creation.
type HoldResult struct {
	Result
	HoldID int64 `json:"holdId"`
}

func resultOf(res response.TransactionResponse) Result {
	return Result{
		Success:       true,
		TransactionID: res.TransactionID,
		Pending:       res.Status == tx.StatusPending,
		Reference:     res.Reference,
	}
}

// Handler implements every command against Deps.
type Handler struct {
	deps   Deps
	logger log.Logger
	now    func() time.Time
}

// NewHandler returns a Handler.
func NewHandler(deps Deps) (*Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Handler{deps: deps, logger: log.OrNop(deps.Logger), now: now}, nil
}

// capabilities resolves what the active wallet's account may do on token.
func (h *Handler) capabilities(ctx context.Context, token ledger.ID) (capability.TokenCapabilities, error) {
	wallet, err := h.deps.Operator.Registry().Active()
	if err != nil {
		return capability.TokenCapabilities{}, err
	}

	return h.deps.Resolver.Resolve(ctx, wallet.Account(), token)
}

// prepare validates the request shape, resolves capabilities and fails
// fast when op is not allowed.
func (h *Handler) prepare(ctx context.Context, token ledger.ID, op capability.Operation, shape error) (capability.TokenCapabilities, error) {
	if shape != nil {
		return capability.TokenCapabilities{}, shape
	}

	tc, err := h.capabilities(ctx, token)
	if err != nil {
		return tc, err
	}

	if _, err := capability.Decide(tc, op); err != nil {
		return tc, err
	}

	return tc, nil
}

func (h *Handler) balance(ctx context.Context, account, token ledger.ID) (bigdecimal.BigDecimal, error) {
	b, err := h.deps.Validator.Reader().Balance(ctx, account, token)
	if err != nil {
		return bigdecimal.BigDecimal{}, fmt.Errorf("reading balance of %s: %w", account, err)
	}

	return b, nil
}

// associated looks up the relationship of account with retry and fails
// when it is missing.
func (h *Handler) associated(ctx context.Context, token, account ledger.ID, field string) (*ledger.Relationship, error) {
	rel, err := h.deps.Validator.Relationship(ctx, account, token)
	if err != nil {
		return nil, err
	}

	return rel, validation.Associated(rel, field, account, token)
}

func sent(res response.TransactionResponse, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}

	return resultOf(res), nil
}

// Register binds every command to b.
func Register(b *bus.Bus, h *Handler) error {
	regs := []error{
		bus.RegisterFunc(b, h.CashIn),
		bus.RegisterFunc(b, h.Burn),
		bus.RegisterFunc(b, h.Wipe),
		bus.RegisterFunc(b, h.Rescue),
		bus.RegisterFunc(b, h.RescueHBAR),
		bus.RegisterFunc(b, h.Freeze),
		bus.RegisterFunc(b, h.Unfreeze),
		bus.RegisterFunc(b, h.GrantKyc),
		bus.RegisterFunc(b, h.RevokeKyc),
		bus.RegisterFunc(b, h.Pause),
		bus.RegisterFunc(b, h.Unpause),
		bus.RegisterFunc(b, h.Delete),
		bus.RegisterFunc(b, h.Transfers),
		bus.RegisterFunc(b, h.GrantRole),
		bus.RegisterFunc(b, h.RevokeRole),
		bus.RegisterFunc(b, h.AddFixedFee),
		bus.RegisterFunc(b, h.AddFractionalFee),
		bus.RegisterFunc(b, h.UpdateCustomFees),
		bus.RegisterFunc(b, h.CreateHold),
		bus.RegisterFunc(b, h.CreateHoldByController),
		bus.RegisterFunc(b, h.ExecuteHold),
		bus.RegisterFunc(b, h.ReleaseHold),
		bus.RegisterFunc(b, h.ReclaimHold),
	}

	return errors.Join(regs...)
}
