package hold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reader reads holds from the ledger.
type Reader interface {
	// Hold returns constant.ErrNotFound when source has no hold id.
	Hold(ctx context.Context, token ledger.Token, source ledger.ID, id int64) (ledger.Hold, error)
	HoldIDs(ctx context.Context, token ledger.Token, source ledger.ID) ([]int64, error)
}

// CreateRequest describes a new hold. A nil Target lets the escrow choose
// the destination when executing.
type CreateRequest struct {
	Amount     bigdecimal.BigDecimal
	Escrow     ledger.ID
	Target     *ledger.ID
	Expiration time.Time
	Data       []byte
}

// Created is the outcome of a hold creation. HoldID is zero while the
// transaction is pending outside the ledger.
type Created struct {
	Response response.TransactionResponse
	HoldID   int64
}

// Manager checks and performs hold operations.
type Manager struct {
	reader    Reader
	validator *validation.Validator
	operator  *adapter.Operator
	addresses adapter.AddressResolver
	now       func() time.Time
	logger    log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAddressResolver sets how escrow, target and acting accounts become
// EVM addresses. It should match the Operator's resolver.
func WithAddressResolver(r adapter.AddressResolver) Option {
	return func(m *Manager) {
		if r != nil {
			m.addresses = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = log.OrNop(l) }
}

// NewManager returns a Manager.
func NewManager(reader Reader, validator *validation.Validator, operator *adapter.Operator, opts ...Option) *Manager {
	m := &Manager{
		reader:    reader,
		validator: validator,
		operator:  operator,
		addresses: adapter.LongZeroAddresses{},
		now:       time.Now,
		logger:    log.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Reader returns the hold reader.
func (m *Manager) Reader() Reader { return m.reader }

// Create escrows req.Amount from the acting account.
func (m *Manager) Create(ctx context.Context, tc capability.TokenCapabilities, req CreateRequest) (Created, error) {
	ctx, span := m.start(ctx, "hold.create", tc)
	defer span.End()

	if _, err := capability.Decide(tc, capability.CreateHold); err != nil {
		return Created{}, err
	}

	if err := m.checkHolder(ctx, tc, tc.Account.ID, "account", req.Amount); err != nil {
		return Created{}, err
	}

	params, err := m.params(ctx, req)
	if err != nil {
		return Created{}, err
	}

	res, err := m.operator.CreateHold(ctx, tc, params)
	if err != nil {
		return Created{}, err
	}

	return created(res)
}

// CreateByController escrows req.Amount from source on behalf of the
// acting controller.
func (m *Manager) CreateByController(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, req CreateRequest, operatorData []byte) (Created, error) {
	ctx, span := m.start(ctx, "hold.create_by_controller", tc)
	defer span.End()

	if _, err := capability.Decide(tc, capability.ControllerCreateHold); err != nil {
		return Created{}, err
	}

	if err := m.checkHolder(ctx, tc, source, "sourceId", req.Amount); err != nil {
		return Created{}, err
	}

	params, err := m.params(ctx, req)
	if err != nil {
		return Created{}, err
	}

	res, err := m.operator.CreateHoldByController(ctx, tc, source, params, operatorData)
	if err != nil {
		return Created{}, err
	}

	return created(res)
}

// Execute moves amount of hold id to its destination. target is required
// when the hold names no destination and must match it otherwise.
func (m *Manager) Execute(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, id int64, target *ledger.ID, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	ctx, span := m.start(ctx, "hold.execute", tc)
	defer span.End()

	if _, err := capability.Decide(tc, capability.ExecuteHold); err != nil {
		return response.TransactionResponse{}, err
	}

	token := tc.Token

	var (
		h  ledger.Hold
		to common.Address
	)

	p := validation.NewPipeline("execute_hold", m.logger).
		Add("source", func(ctx context.Context) error {
			_, err := m.validator.Account(ctx, token.ID, source, "sourceId")
			return err
		})

	if target != nil {
		p.Add("target", func(ctx context.Context) error {
			_, err := m.validator.Account(ctx, token.ID, *target, "targetId")
			return err
		})
	}

	err := p.
		Add("decimals", func(context.Context) error { return validation.Decimals(amount, token.Decimals, "amount") }).
		Add("hold", func(ctx context.Context) (err error) {
			h, err = m.apply(ctx, token, source, id, Execute, amount)
			return err
		}).
		Add("escrow", func(ctx context.Context) error { return m.checkEscrow(ctx, tc.Account, h) }).
		Add("destination", func(ctx context.Context) (err error) {
			to, err = m.destination(ctx, h, target)
			return err
		}).
		Add("expiration", func(context.Context) error { return m.checkNotExpired(h) }).
		Run(ctx)
	if err != nil {
		return response.TransactionResponse{}, err
	}

	return m.operator.ExecuteHold(ctx, tc, source, id, to, amount)
}

// Release returns amount of hold id to its source.
func (m *Manager) Release(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, id int64, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	ctx, span := m.start(ctx, "hold.release", tc)
	defer span.End()

	if _, err := capability.Decide(tc, capability.ReleaseHold); err != nil {
		return response.TransactionResponse{}, err
	}

	token := tc.Token

	var h ledger.Hold

	err := validation.NewPipeline("release_hold", m.logger).
		Add("account", func(ctx context.Context) error { return m.checkActing(ctx, tc) }).
		Add("decimals", func(context.Context) error { return validation.Decimals(amount, token.Decimals, "amount") }).
		Add("hold", func(ctx context.Context) (err error) {
			h, err = m.apply(ctx, token, source, id, Release, amount)
			return err
		}).
		Add("escrow", func(ctx context.Context) error { return m.checkEscrow(ctx, tc.Account, h) }).
		Add("expiration", func(context.Context) error { return m.checkNotExpired(h) }).
		Run(ctx)
	if err != nil {
		return response.TransactionResponse{}, err
	}

	return m.operator.ReleaseHold(ctx, tc, source, id, amount)
}

// Reclaim returns the whole of an expired hold to its source.
func (m *Manager) Reclaim(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, id int64) (response.TransactionResponse, error) {
	ctx, span := m.start(ctx, "hold.reclaim", tc)
	defer span.End()

	if _, err := capability.Decide(tc, capability.ReclaimHold); err != nil {
		return response.TransactionResponse{}, err
	}

	token := tc.Token

	var h ledger.Hold

	err := validation.NewPipeline("reclaim_hold", m.logger).
		Add("account", func(ctx context.Context) error {
			_, err := m.validator.Account(ctx, token.ID, tc.Account.ID, "account")
			return err
		}).
		Add("hold", func(ctx context.Context) (err error) {
			h, err = m.apply(ctx, token, source, id, Reclaim, bigdecimal.Zero(token.Decimals))
			return err
		}).
		Add("expiration", func(context.Context) error {
			if h.Expired(m.now()) {
				return nil
			}

			return stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "holdId",
				fmt.Sprintf("hold %d expires at %s", id, h.Expiration.UTC().Format(time.RFC3339))).
				WithReason(constant.ErrHoldNotExpired)
		}).
		Run(ctx)
	if err != nil {
		return response.TransactionResponse{}, err
	}

	return m.operator.ReclaimHold(ctx, tc, source, id)
}

// Current reads hold id and returns it with its lifecycle state. A hold the
// ledger no longer reports, or reports with nothing left in it, is Closed.
func (m *Manager) Current(ctx context.Context, token ledger.Token, source ledger.ID, id int64) (ledger.Hold, State, error) {
	h, err := m.reader.Hold(ctx, token, source, id)

	switch {
	case errors.Is(err, constant.ErrNotFound):
		return ledger.Hold{}, State{Phase: Closed, Remaining: bigdecimal.Zero(token.Decimals)}, nil
	case err != nil:
		return ledger.Hold{}, State{}, fmt.Errorf("reading hold %d of %s: %w", id, source, err)
	}

	if !h.Amount.IsPositive() {
		return h, State{Phase: Closed, Remaining: bigdecimal.Zero(token.Decimals)}, nil
	}

	return h, State{Phase: Active, Remaining: h.Amount}, nil
}

func (m *Manager) apply(ctx context.Context, token ledger.Token, source ledger.ID, id int64, e Event, amount bigdecimal.BigDecimal) (ledger.Hold, error) {
	h, state, err := m.Current(ctx, token, source, id)
	if err != nil {
		return h, err
	}

	next, err := Apply(state, e, amount)
	if err != nil {
		return h, err
	}

	m.logger.Log(ctx, log.LevelDebug, "hold transition checked",
		log.Int64("hold_id", id),
		log.String("event", string(e)),
		log.String("phase", string(next.Phase)),
		log.String("remaining", next.Remaining.String()))

	return h, nil
}

// checkHolder runs the creation checks against the account the tokens are
// escrowed from. field names holder in the errors.
func (m *Manager) checkHolder(ctx context.Context, tc capability.TokenCapabilities, holder ledger.ID, field string, amount bigdecimal.BigDecimal) error {
	token := tc.Token

	var rel *ledger.Relationship

	return validation.NewPipeline("create_hold", m.logger).
		Add("relationship", func(ctx context.Context) (err error) {
			rel, err = m.validator.Relationship(ctx, holder, token.ID)
			return err
		}).
		Add("freeze", func(context.Context) error { return validation.NotFrozen(rel, field) }).
		Add("kyc", func(context.Context) error { return validation.KycNotRevoked(rel, field) }).
		Add("decimals", func(context.Context) error { return validation.Decimals(amount, token.Decimals, "amount") }).
		Add("balance", func(ctx context.Context) error {
			balance, err := m.validator.Reader().Balance(ctx, holder, token.ID)
			if err != nil {
				return fmt.Errorf("reading balance of %s: %w", holder, err)
			}

			return validation.Sufficient(amount, balance, "amount")
		}).
		Run(ctx)
}

// checkActing rejects an acting account that is frozen or KYC revoked, in
// that order.
// Missing relationships pass; the contract enforces them.
func (m *Manager) checkActing(ctx context.Context, tc capability.TokenCapabilities) error {
	rel, err := m.validator.Relationship(ctx, tc.Account.ID, tc.Token.ID)
	if err != nil {
		return err
	}

	if err := validation.NotFrozen(rel, "account"); err != nil {
		return err
	}

	return validation.KycNotRevoked(rel, "account")
}

func (m *Manager) checkEscrow(ctx context.Context, account ledger.Account, h ledger.Hold) error {
	addr, err := m.accountAddress(ctx, account)
	if err != nil {
		return err
	}

	if addr != h.Escrow {
		return stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "account",
			fmt.Sprintf("account %s is not the escrow of hold %d", account.ID, h.ID)).
			WithReason(constant.ErrNotEscrow)
	}

	return nil
}

// destination returns where an execution sends the tokens.
func (m *Manager) destination(ctx context.Context, h ledger.Hold, target *ledger.ID) (common.Address, error) {
	if target == nil {
		if !h.HasTarget() {
			return common.Address{}, stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "targetId",
				fmt.Sprintf("hold %d has no destination and no target was given", h.ID)).
				WithReason(constant.ErrHoldTargetMismatch)
		}

		return h.Target, nil
	}

	addr, err := m.addresses.EVMAddress(ctx, *target)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolving address of %s: %w", target, err)
	}

	if h.HasTarget() && addr != h.Target {
		return common.Address{}, stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "targetId",
			fmt.Sprintf("target %s is not the destination of hold %d", target, h.ID)).
			WithReason(constant.ErrHoldTargetMismatch)
	}

	return addr, nil
}

func (m *Manager) checkNotExpired(h ledger.Hold) error {
	if !h.Expired(m.now()) {
		return nil
	}

	return stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "holdId",
		fmt.Sprintf("hold %d expired at %s", h.ID, h.Expiration.UTC().Format(time.RFC3339))).
		WithReason(constant.ErrHoldExpired)
}

func (m *Manager) params(ctx context.Context, req CreateRequest) (adapter.HoldParams, error) {
	escrow, err := m.addresses.EVMAddress(ctx, req.Escrow)
	if err != nil {
		return adapter.HoldParams{}, fmt.Errorf("resolving escrow %s: %w", req.Escrow, err)
	}

	params := adapter.HoldParams{
		Amount:     req.Amount,
		Escrow:     escrow,
		Expiration: req.Expiration,
		Data:       req.Data,
	}

	if req.Target != nil {
		if params.Target, err = m.addresses.EVMAddress(ctx, *req.Target); err != nil {
			return adapter.HoldParams{}, fmt.Errorf("resolving target %s: %w", req.Target, err)
		}
	}

	return params, nil
}

func (m *Manager) accountAddress(ctx context.Context, account ledger.Account) (common.Address, error) {
	if account.EVMAddress != nil {
		return *account.EVMAddress, nil
	}

	addr, err := m.addresses.EVMAddress(ctx, account.ID)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolving address of %s: %w", account.ID, err)
	}

	return addr, nil
}

func (m *Manager) start(ctx context.Context, name string, tc capability.TokenCapabilities) (context.Context, trace.Span) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String(constant.AttrTokenID, tc.Token.ID.String()),
		attribute.String(constant.AttrAccountID, tc.Account.ID.String()),
	)

	return ctx, span
}

func created(res response.TransactionResponse) (Created, error) {
	if res.Status == tx.StatusPending {
		return Created{Response: res}, nil
	}

	id, ok := res.BigInt(1)
	if !ok || !id.IsInt64() {
		return Created{}, &stablecoin.TransactionResponseError{
			Message:       "createHold result carries no hold id",
			TransactionID: res.TransactionID,
			Network:       res.Network,
			Operation:     string(capability.CreateHold),
			Err:           response.ErrInvalidResponse,
		}
	}

	return Created{Response: res, HoldID: id.Int64()}, nil
}
