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

// AddFixedFee appends a fixed fee to the token's fee schedule. A nil
// DenominatingTokenID charges the native currency.
type AddFixedFee struct {
	TokenID             ledger.ID
	CollectorID         ledger.ID
	Amount              bigdecimal.BigDecimal
	DenominatingTokenID *ledger.ID
	CollectorsExempt    bool
}

// AddFractionalFee appends a fractional fee to the token's fee schedule.
type AddFractionalFee struct {
	TokenID          ledger.ID
	CollectorID      ledger.ID
	Numerator        int64
	Denominator      int64
	Min              bigdecimal.BigDecimal
	Max              bigdecimal.BigDecimal
	Net              bool
	CollectorsExempt bool
}

// UpdateCustomFees replaces the token's fee schedule.
type UpdateCustomFees struct {
	TokenID ledger.ID
	Fees    []ledger.CustomFee
}

var positiveInt = validation.Tag("gt=0", "must be greater than zero")

var feeType = validation.NewRule("fee_type", "must be a fixed or fractional fee", func(any) bool { return false })

func feeShape(field string, fee ledger.CustomFee) []validation.Check {
	switch f := fee.(type) {
	case *ledger.FixedFee:
		if f == nil {
			break
		}

		return append(validation.On(field+".collectorId", f.CollectorID, validation.ID),
			validation.On(field+".amount", f.Amount, validation.Positive)...)
	case *ledger.FractionalFee:
		if f == nil {
			break
		}

		checks := validation.On(field+".collectorId", f.CollectorID, validation.ID)
		checks = append(checks, validation.On(field+".numerator", f.Numerator, positiveInt, below(f.Denominator))...)
		checks = append(checks, validation.On(field+".denominator", f.Denominator, positiveInt)...)
		checks = append(checks, validation.On(field+".min", f.Min, validation.NotNegative)...)

		return append(checks, validation.On(field+".max", f.Max, validation.NotNegative, atLeast(f.Min))...)
	}

	return validation.On(field, fee, feeType)
}

// below keeps a fractional fee under 100%.
func below(denominator int64) validation.Rule {
	return validation.Tag(fmt.Sprintf("lt=%d", denominator), "must be lower than the denominator")
}

// atLeast accepts a zero maximum, meaning unbounded, or one not below lower.
func atLeast(lower bigdecimal.BigDecimal) validation.Rule {
	return validation.NewRule("gte_min", "must not be lower than min", func(value any) bool {
		upper, ok := value.(bigdecimal.BigDecimal)
		return ok && (upper.IsZero() || upper.GreaterThanOrEqual(lower))
	})
}

// AddFixedFee validates the collector and the amount against the currency
// the fee is charged in.
func (h *Handler) AddFixedFee(ctx context.Context, req AddFixedFee) (Result, error) {
	fee := &ledger.FixedFee{
		CollectorID:         req.CollectorID,
		CollectorsExempt:    req.CollectorsExempt,
		Amount:              req.Amount,
		DenominatingTokenID: req.DenominatingTokenID,
	}

	return h.addFee(ctx, "AddFixedFee", req.TokenID, fee)
}

// AddFractionalFee validates the collector and the bounds against the
// token decimals.
func (h *Handler) AddFractionalFee(ctx context.Context, req AddFractionalFee) (Result, error) {
	fee := &ledger.FractionalFee{
		CollectorID:      req.CollectorID,
		CollectorsExempt: req.CollectorsExempt,
		Numerator:        req.Numerator,
		Denominator:      req.Denominator,
		Min:              req.Min,
		Max:              req.Max,
		Net:              req.Net,
	}

	return h.addFee(ctx, "AddFractionalFee", req.TokenID, fee)
}

func (h *Handler) addFee(ctx context.Context, request string, tokenID ledger.ID, fee ledger.CustomFee) (Result, error) {
	shape := validation.Fields(request, validation.On("tokenId", tokenID, validation.ID), feeShape("fee", fee))

	tc, err := h.prepare(ctx, tokenID, capability.UpdateCustomFees, shape)
	if err != nil {
		return Result{}, err
	}

	token := tc.Token
	fees := append(append(make([]ledger.CustomFee, 0, len(token.CustomFees)+1), token.CustomFees...), fee)

	err = validation.NewPipeline("add_fee", h.logger).
		Add("collector", func(ctx context.Context) error { return h.checkFee(ctx, token, fee, "fee") }).
		Add("max_fees", func(context.Context) error { return validation.MaxCustomFees(len(fees), "fees") }).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.UpdateCustomFees(ctx, tc, fees))
}

// UpdateCustomFees validates every fee, accumulating per-fee failures.
// An empty list clears the schedule.
func (h *Handler) UpdateCustomFees(ctx context.Context, req UpdateCustomFees) (Result, error) {
	checks := [][]validation.Check{validation.On("tokenId", req.TokenID, validation.ID)}
	for i, fee := range req.Fees {
		checks = append(checks, feeShape(fmt.Sprintf("fees[%d]", i), fee))
	}

	tc, err := h.prepare(ctx, req.TokenID, capability.UpdateCustomFees, validation.Fields("UpdateCustomFees", checks...))
	if err != nil {
		return Result{}, err
	}

	token := tc.Token

	err = validation.NewPipeline("update_custom_fees", h.logger).
		Add("max_fees", func(context.Context) error { return validation.MaxCustomFees(len(req.Fees), "fees") }).
		Add("fees", func(ctx context.Context) error {
			return h.deps.Validator.ForEach(ctx, len(req.Fees), func(ctx context.Context, i int) error {
				return h.checkFee(ctx, token, req.Fees[i], fmt.Sprintf("fees[%d]", i))
			})
		}).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.UpdateCustomFees(ctx, tc, req.Fees))
}

// checkFee checks the fee amounts against the decimals of the currency it
// is charged in, and the collector against the token it collects. Native
// currency collectors have no token relationship to check.
func (h *Handler) checkFee(ctx context.Context, token ledger.Token, fee ledger.CustomFee, field string) error {
	collected, decimals, native, err := h.feeCurrency(ctx, token, fee)
	if err != nil {
		return err
	}

	switch f := fee.(type) {
	case *ledger.FixedFee:
		if err := validation.Decimals(f.Amount, decimals, field+".amount"); err != nil {
			return err
		}
	case *ledger.FractionalFee:
		if err := validation.Decimals(f.Min, decimals, field+".min"); err != nil {
			return err
		}

		if err := validation.Decimals(f.Max, decimals, field+".max"); err != nil {
			return err
		}
	}

	if native {
		return nil
	}

	_, err = h.deps.Validator.Account(ctx, collected, fee.Collector(), field+".collectorId")

	return err
}

func (h *Handler) feeCurrency(ctx context.Context, token ledger.Token, fee ledger.CustomFee) (ledger.ID, int32, bool, error) {
	fixed, ok := fee.(*ledger.FixedFee)
	if !ok || (fixed.DenominatingTokenID != nil && *fixed.DenominatingTokenID == token.ID) {
		return token.ID, token.Decimals, false, nil
	}

	if fixed.DenominatingTokenID == nil {
		return ledger.ID{}, constant.HbarDecimals, true, nil
	}

	other, err := h.deps.Tokens.Token(ctx, *fixed.DenominatingTokenID)
	if err != nil {
		return ledger.ID{}, 0, false, fmt.Errorf("reading fee token %s: %w", fixed.DenominatingTokenID, err)
	}

	return other.ID, other.Decimals, false, nil
}
