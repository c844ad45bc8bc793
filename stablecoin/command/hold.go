package command

import (
	"context"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/hold"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
)

// CreateHold escrows Amount from the acting account until Expiration.
// A nil TargetID lets the escrow choose the destination on execution.
type CreateHold struct {
	TokenID    ledger.ID
	Amount     bigdecimal.BigDecimal
	EscrowID   ledger.ID
	TargetID   *ledger.ID
	Expiration time.Time
	Data       []byte
}

// CreateHoldByController escrows Amount from SourceID on behalf of the
// acting controller.
type CreateHoldByController struct {
	CreateHold
	SourceID     ledger.ID
	OperatorData []byte
}

// ExecuteHold sends Amount of a hold to its destination, or to TargetID
// when the hold names none.
type ExecuteHold struct {
	TokenID  ledger.ID
	SourceID ledger.ID
	HoldID   int64
	TargetID *ledger.ID
	Amount   bigdecimal.BigDecimal
}

// ReleaseHold returns Amount of a hold to its source.
type ReleaseHold struct {
	TokenID  ledger.ID
	SourceID ledger.ID
	HoldID   int64
	Amount   bigdecimal.BigDecimal
}

// ReclaimHold returns an expired hold to its source.
type ReclaimHold struct {
	TokenID  ledger.ID
	SourceID ledger.ID
	HoldID   int64
}

var holdIDRule = validation.Tag("gte=0", "must not be negative")

func createShape(request string, req CreateHold, now time.Time, extra ...[]validation.Check) error {
	groups := append([][]validation.Check{
		validation.On("tokenId", req.TokenID, validation.ID),
		validation.On("amount", req.Amount, validation.Positive),
		validation.On("escrowId", req.EscrowID, validation.ID),
		validation.On("expiration", req.Expiration, validation.NewRule("future", "must be in the future", func(value any) bool {
			t, ok := value.(time.Time)
			return ok && t.After(now)
		})),
	}, extra...)

	if req.TargetID != nil {
		groups = append(groups, validation.On("targetId", *req.TargetID, validation.ID))
	}

	return validation.Fields(request, groups...)
}

func holdRequest(req CreateHold) hold.CreateRequest {
	return hold.CreateRequest{
		Amount:     req.Amount,
		Escrow:     req.EscrowID,
		Target:     req.TargetID,
		Expiration: req.Expiration,
		Data:       req.Data,
	}
}

func holdResultOf(c hold.Created) HoldResult {
	return HoldResult{Result: resultOf(c.Response), HoldID: c.HoldID}
}

// CreateHold escrows from the acting account.
func (h *Handler) CreateHold(ctx context.Context, req CreateHold) (HoldResult, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.CreateHold, createShape("CreateHold", req, h.now()))
	if err != nil {
		return HoldResult{}, err
	}

	created, err := h.deps.Holds.Create(ctx, tc, holdRequest(req))
	if err != nil {
		return HoldResult{}, err
	}

	return holdResultOf(created), nil
}

// CreateHoldByController escrows from SourceID.
func (h *Handler) CreateHoldByController(ctx context.Context, req CreateHoldByController) (HoldResult, error) {
	shape := createShape("CreateHoldByController", req.CreateHold, h.now(), validation.On("sourceId", req.SourceID, validation.ID))

	tc, err := h.prepare(ctx, req.TokenID, capability.ControllerCreateHold, shape)
	if err != nil {
		return HoldResult{}, err
	}

	created, err := h.deps.Holds.CreateByController(ctx, tc, req.SourceID, holdRequest(req.CreateHold), req.OperatorData)
	if err != nil {
		return HoldResult{}, err
	}

	return holdResultOf(created), nil
}

func lifecycleShape(request string, token, source ledger.ID, id int64, amount *bigdecimal.BigDecimal) error {
	groups := [][]validation.Check{
		validation.On("tokenId", token, validation.ID),
		validation.On("sourceId", source, validation.ID),
		validation.On("holdId", id, holdIDRule),
	}

	if amount != nil {
		groups = append(groups, validation.On("amount", *amount, validation.Positive))
	}

	return validation.Fields(request, groups...)
}

// ExecuteHold runs the hold execution checks and sends the transaction.
func (h *Handler) ExecuteHold(ctx context.Context, req ExecuteHold) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.ExecuteHold,
		lifecycleShape("ExecuteHold", req.TokenID, req.SourceID, req.HoldID, &req.Amount))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Holds.Execute(ctx, tc, req.SourceID, req.HoldID, req.TargetID, req.Amount))
}

// ReleaseHold runs the hold release checks and sends the transaction.
func (h *Handler) ReleaseHold(ctx context.Context, req ReleaseHold) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.ReleaseHold,
		lifecycleShape("ReleaseHold", req.TokenID, req.SourceID, req.HoldID, &req.Amount))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Holds.Release(ctx, tc, req.SourceID, req.HoldID, req.Amount))
}

// ReclaimHold runs the hold reclaim checks and sends the transaction.
func (h *Handler) ReclaimHold(ctx context.Context, req ReclaimHold) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.ReclaimHold,
		lifecycleShape("ReclaimHold", req.TokenID, req.SourceID, req.HoldID, nil))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Holds.Reclaim(ctx, tc, req.SourceID, req.HoldID))
}
