// Package query holds the read-only requests of a stable coin. Queries
// never reach a wallet and never send a transaction.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bus"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/hold"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
)

// GetCapabilities asks what Account may do on TokenID.
type GetCapabilities struct {
	Account ledger.Account
	TokenID ledger.ID
}

// GetBalance asks for the token balance of AccountID.
type GetBalance struct {
	TokenID   ledger.ID
	AccountID ledger.ID
}

// GetRelationship asks for the association of AccountID with TokenID. The
// answer is nil when the account is not associated.
type GetRelationship struct {
	TokenID   ledger.ID
	AccountID ledger.ID
}

// GetHold asks for a single hold of SourceID.
type GetHold struct {
	TokenID  ledger.ID
	SourceID ledger.ID
	HoldID   int64
}

// GetHoldsFor lists the hold ids of SourceID.
type GetHoldsFor struct {
	TokenID  ledger.ID
	SourceID ledger.ID
}

// Deps are the readers behind the queries.
type Deps struct {
	Resolver *capability.Resolver
	Tokens   capability.TokenReader
	State    validation.StateReader
	Holds    hold.Reader
}

func (d Deps) validate() error {
	var missing string

	switch {
	case d.Resolver == nil:
		missing = "Resolver"
	case d.Tokens == nil:
		missing = "Tokens"
	case d.State == nil:
		missing = "State"
	case d.Holds == nil:
		missing = "Holds"
	}

	if missing != "" {
		return &stablecoin.ConfigurationError{Component: "query handlers", Err: fmt.Errorf("missing %s", missing)}
	}

	return nil
}

// Handler implements every query against Deps.
type Handler struct {
	deps Deps
}

// NewHandler returns a Handler.
func NewHandler(deps Deps) (*Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &Handler{deps: deps}, nil
}

// GetCapabilities resolves the capabilities of the requested account.
func (h *Handler) GetCapabilities(ctx context.Context, req GetCapabilities) (capability.TokenCapabilities, error) {
	if err := validation.Fields("GetCapabilities",
		validation.On("tokenId", req.TokenID, validation.ID),
		validation.On("account.id", req.Account.ID, validation.ID)); err != nil {
		return capability.TokenCapabilities{}, err
	}

	return h.deps.Resolver.Resolve(ctx, req.Account, req.TokenID)
}

// GetBalance reads the current balance. An account that is not associated
// holds nothing.
func (h *Handler) GetBalance(ctx context.Context, req GetBalance) (bigdecimal.BigDecimal, error) {
	if err := accountShape("GetBalance", req.TokenID, req.AccountID); err != nil {
		return bigdecimal.BigDecimal{}, err
	}

	b, err := h.deps.State.Balance(ctx, req.AccountID, req.TokenID)
	if err != nil {
		return bigdecimal.BigDecimal{}, fmt.Errorf("reading balance of %s: %w", req.AccountID, err)
	}

	return b, nil
}

// GetRelationship reads the association without retrying.
func (h *Handler) GetRelationship(ctx context.Context, req GetRelationship) (*ledger.Relationship, error) {
	if err := accountShape("GetRelationship", req.TokenID, req.AccountID); err != nil {
		return nil, err
	}

	rel, err := h.deps.State.Relationship(ctx, req.AccountID, req.TokenID)
	if err != nil {
		return nil, fmt.Errorf("reading relationship of %s: %w", req.AccountID, err)
	}

	return rel, nil
}

// GetHold reads a hold through the token's proxy.
func (h *Handler) GetHold(ctx context.Context, req GetHold) (ledger.Hold, error) {
	if err := validation.Fields("GetHold",
		validation.On("tokenId", req.TokenID, validation.ID),
		validation.On("sourceId", req.SourceID, validation.ID),
		validation.On("holdId", req.HoldID, validation.Tag("gte=0", "must not be negative"))); err != nil {
		return ledger.Hold{}, err
	}

	token, err := h.token(ctx, req.TokenID)
	if err != nil {
		return ledger.Hold{}, err
	}

	return h.deps.Holds.Hold(ctx, token, req.SourceID, req.HoldID)
}

// GetHoldsFor lists the active hold ids of the source.
func (h *Handler) GetHoldsFor(ctx context.Context, req GetHoldsFor) ([]int64, error) {
	if err := validation.Fields("GetHoldsFor",
		validation.On("tokenId", req.TokenID, validation.ID),
		validation.On("sourceId", req.SourceID, validation.ID)); err != nil {
		return nil, err
	}

	token, err := h.token(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}

	return h.deps.Holds.HoldIDs(ctx, token, req.SourceID)
}

// token reads the token, which must be managed through a proxy to carry
// holds.
func (h *Handler) token(ctx context.Context, id ledger.ID) (ledger.Token, error) {
	token, err := h.deps.Tokens.Token(ctx, id)
	if err != nil {
		return ledger.Token{}, fmt.Errorf("reading token %s: %w", id, err)
	}

	if token.ProxyAddress == nil {
		return ledger.Token{}, errNoProxy(id)
	}

	return token, nil
}

func errNoProxy(id ledger.ID) error {
	return &stablecoin.ValidationError{
		Request: "holds",
		Fields: []stablecoin.FieldError{{
			Field:   "tokenId",
			Rule:    "proxy",
			Message: fmt.Sprintf("token %s is not managed through a proxy contract", id),
		}},
	}
}

func accountShape(request string, token, account ledger.ID) error {
	return validation.Fields(request,
		validation.On("tokenId", token, validation.ID),
		validation.On("accountId", account, validation.ID))
}

// Register binds every query to b.
func Register(b *bus.Bus, h *Handler) error {
	return errors.Join(
		bus.RegisterFunc(b, h.GetCapabilities),
		bus.RegisterFunc(b, h.GetBalance),
		bus.RegisterFunc(b, h.GetRelationship),
		bus.RegisterFunc(b, h.GetHold),
		bus.RegisterFunc(b, h.GetHoldsFor),
	)
}
