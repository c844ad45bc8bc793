package command

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
)

// CashIn mints Amount to TargetID.
type CashIn struct {
	TokenID  ledger.ID
	TargetID ledger.ID
	Amount   bigdecimal.BigDecimal
}

// Burn destroys Amount from the treasury.
type Burn struct {
	TokenID ledger.ID
	Amount  bigdecimal.BigDecimal
}

// Wipe destroys Amount from TargetID.
type Wipe struct {
	TokenID  ledger.ID
	TargetID ledger.ID
	Amount   bigdecimal.BigDecimal
}

// Rescue moves Amount of the token from the treasury to the acting account.
type Rescue struct {
	TokenID ledger.ID
	Amount  bigdecimal.BigDecimal
}

// RescueHBAR moves Amount of the native currency from the treasury to the
// acting account.
type RescueHBAR struct {
	TokenID ledger.ID
	Amount  bigdecimal.BigDecimal
}

// Pause stops every transfer of the token.
type Pause struct{ TokenID ledger.ID }

// Unpause resumes a paused token.
type Unpause struct{ TokenID ledger.ID }

// Delete marks the token deleted.
type Delete struct{ TokenID ledger.ID }

func amountShape(request string, token ledger.ID, amount bigdecimal.BigDecimal, extra ...[]validation.Check) error {
	groups := append([][]validation.Check{
		validation.On("tokenId", token, validation.ID),
		validation.On("amount", amount, validation.Positive),
	}, extra...)

	return validation.Fields(request, groups...)
}

// CashIn checks the target account, the decimals and the max supply.
func (h *Handler) CashIn(ctx context.Context, req CashIn) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.CashIn,
		amountShape("CashIn", req.TokenID, req.Amount, validation.On("targetId", req.TargetID, validation.ID)))
	if err != nil {
		return Result{}, err
	}

	token := tc.Token

	err = validation.NewPipeline("cash_in", h.logger).
		Add("target", func(ctx context.Context) error {
			_, err := h.deps.Validator.Account(ctx, token.ID, req.TargetID, "targetId")
			return err
		}).
		Add("decimals", func(context.Context) error { return validation.Decimals(req.Amount, token.Decimals, "amount") }).
		Add("max_supply", func(context.Context) error { return validation.WithinMaxSupply(token, req.Amount, "amount") }).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.CashIn(ctx, tc, req.TargetID, req.Amount))
}

// Burn checks the decimals and the treasury balance.
func (h *Handler) Burn(ctx context.Context, req Burn) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Burn, amountShape("Burn", req.TokenID, req.Amount))
	if err != nil {
		return Result{}, err
	}

	token := tc.Token

	err = validation.NewPipeline("burn", h.logger).
		Add("decimals", func(context.Context) error { return validation.Decimals(req.Amount, token.Decimals, "amount") }).
		Add("treasury_balance", func(ctx context.Context) error {
			balance, err := h.balance(ctx, token.Treasury, token.ID)
			if err != nil {
				return err
			}

			return validation.Sufficient(req.Amount, balance, "amount")
		}).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Burn(ctx, tc, req.Amount))
}

// Wipe checks the target association, the decimals and the target balance.
func (h *Handler) Wipe(ctx context.Context, req Wipe) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Wipe,
		amountShape("Wipe", req.TokenID, req.Amount, validation.On("targetId", req.TargetID, validation.ID)))
	if err != nil {
		return Result{}, err
	}

	token := tc.Token

	var rel *ledger.Relationship

	err = validation.NewPipeline("wipe", h.logger).
		Add("association", func(ctx context.Context) (err error) {
			rel, err = h.associated(ctx, token.ID, req.TargetID, "targetId")
			return err
		}).
		Add("decimals", func(context.Context) error { return validation.Decimals(req.Amount, token.Decimals, "amount") }).
		Add("balance", func(context.Context) error { return validation.Sufficient(req.Amount, rel.Balance, "amount") }).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Wipe(ctx, tc, req.TargetID, req.Amount))
}

// Rescue checks the treasury association, the decimals and the treasury
// balance.
func (h *Handler) Rescue(ctx context.Context, req Rescue) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Rescue, amountShape("Rescue", req.TokenID, req.Amount))
	if err != nil {
		return Result{}, err
	}

	token := tc.Token

	var rel *ledger.Relationship

	err = validation.NewPipeline("rescue", h.logger).
		Add("association", func(ctx context.Context) (err error) {
			rel, err = h.associated(ctx, token.ID, token.Treasury, "treasury")
			return err
		}).
		Add("decimals", func(context.Context) error { return validation.Decimals(req.Amount, token.Decimals, "amount") }).
		Add("treasury_balance", func(context.Context) error { return validation.Sufficient(req.Amount, rel.Balance, "amount") }).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Rescue(ctx, tc, req.Amount))
}

// RescueHBAR checks the native decimals and the treasury native balance.
func (h *Handler) RescueHBAR(ctx context.Context, req RescueHBAR) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.RescueHBAR, amountShape("RescueHBAR", req.TokenID, req.Amount))
	if err != nil {
		return Result{}, err
	}

	token := tc.Token

	err = validation.NewPipeline("rescue_hbar", h.logger).
		Add("decimals", func(context.Context) error {
			return validation.Decimals(req.Amount, constant.HbarDecimals, "amount")
		}).
		Add("treasury_balance", func(ctx context.Context) error {
			balance, err := h.deps.Hbar.HbarBalance(ctx, token.Treasury)
			if err != nil {
				return fmt.Errorf("reading native balance of %s: %w", token.Treasury, err)
			}

			return validation.Sufficient(req.Amount, balance, "amount")
		}).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.RescueHBAR(ctx, tc, req.Amount))
}

// Pause requires the PAUSE capability only.
func (h *Handler) Pause(ctx context.Context, req Pause) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Pause, tokenShape("Pause", req.TokenID))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Pause(ctx, tc))
}

// Unpause requires the UNPAUSE capability only.
func (h *Handler) Unpause(ctx context.Context, req Unpause) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Unpause, tokenShape("Unpause", req.TokenID))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Unpause(ctx, tc))
}

// Delete requires the DELETE capability only.
func (h *Handler) Delete(ctx context.Context, req Delete) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Delete, tokenShape("Delete", req.TokenID))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Delete(ctx, tc))
}

func tokenShape(request string, token ledger.ID) error {
	return validation.Fields(request, validation.On("tokenId", token, validation.ID))
}
