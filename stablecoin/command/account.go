package command

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
)

// Freeze freezes TargetID for the token.
type Freeze struct {
	TokenID  ledger.ID
	TargetID ledger.ID
}

// Unfreeze unfreezes TargetID for the token.
type Unfreeze struct {
	TokenID  ledger.ID
	TargetID ledger.ID
}

// GrantKyc grants KYC to TargetID.
type GrantKyc struct {
	TokenID  ledger.ID
	TargetID ledger.ID
}

// RevokeKyc revokes the KYC of TargetID.
type RevokeKyc struct {
	TokenID  ledger.ID
	TargetID ledger.ID
}

// Transfers sends Amounts[i] to TargetIDs[i] from the acting account.
type Transfers struct {
	TokenID   ledger.ID
	TargetIDs []ledger.ID
	Amounts   []bigdecimal.BigDecimal
}

// GrantRole grants Role on the contract to TargetID.
type GrantRole struct {
	TokenID  ledger.ID
	TargetID ledger.ID
	Role     ledger.Role
}

// RevokeRole revokes Role on the contract from TargetID.
type RevokeRole struct {
	TokenID  ledger.ID
	TargetID ledger.ID
	Role     ledger.Role
}

func targetShape(request string, token, target ledger.ID) error {
	return validation.Fields(request,
		validation.On("tokenId", token, validation.ID),
		validation.On("targetId", target, validation.ID))
}

// Freeze requires the target to be associated.
func (h *Handler) Freeze(ctx context.Context, req Freeze) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Freeze, targetShape("Freeze", req.TokenID, req.TargetID))
	if err != nil {
		return Result{}, err
	}

	if _, err := h.associated(ctx, req.TokenID, req.TargetID, "targetId"); err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Freeze(ctx, tc, req.TargetID))
}

// Unfreeze requires the target to be associated.
func (h *Handler) Unfreeze(ctx context.Context, req Unfreeze) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.Unfreeze, targetShape("Unfreeze", req.TokenID, req.TargetID))
	if err != nil {
		return Result{}, err
	}

	if _, err := h.associated(ctx, req.TokenID, req.TargetID, "targetId"); err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Unfreeze(ctx, tc, req.TargetID))
}

// GrantKyc requires a KYC key and a target whose KYC is revoked.
func (h *Handler) GrantKyc(ctx context.Context, req GrantKyc) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.GrantKyc, targetShape("GrantKyc", req.TokenID, req.TargetID))
	if err != nil {
		return Result{}, err
	}

	if err := h.checkKyc(ctx, tc, req.TargetID, ledger.KycRevoked); err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.GrantKyc(ctx, tc, req.TargetID))
}

// RevokeKyc requires a KYC key and a target whose KYC is granted.
func (h *Handler) RevokeKyc(ctx context.Context, req RevokeKyc) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.RevokeKyc, targetShape("RevokeKyc", req.TokenID, req.TargetID))
	if err != nil {
		return Result{}, err
	}

	if err := h.checkKyc(ctx, tc, req.TargetID, ledger.KycGranted); err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.RevokeKyc(ctx, tc, req.TargetID))
}

// checkKyc requires the token's KYC key, an association and the status the
// operation flips.
func (h *Handler) checkKyc(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID, want ledger.KycStatus) error {
	token := tc.Token

	var rel *ledger.Relationship

	return validation.NewPipeline("kyc", h.logger).
		Add("kyc_key", func(context.Context) error {
			if token.Keys.Kyc == nil {
				return stablecoin.NewBusinessRuleViolation(constant.ErrKycKeyMissing, "tokenId",
					fmt.Sprintf("token %s has no KYC key", token.ID))
			}

			return nil
		}).
		Add("association", func(ctx context.Context) (err error) {
			rel, err = h.associated(ctx, token.ID, target, "targetId")
			return err
		}).
		Add("status", func(context.Context) error {
			if rel.KycStatus != want {
				return stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "targetId",
					fmt.Sprintf("account %s KYC status is %s, expected %s", target, rel.KycStatus, want))
			}

			return nil
		}).
		Run(ctx)
}

func sameLength(n int) validation.Rule {
	return validation.NewRule("same_length", "must have one entry per target", func(value any) bool {
		amounts, ok := value.([]bigdecimal.BigDecimal)
		return ok && len(amounts) == n
	})
}

// Transfers checks every amount and target, accumulating per-target
// failures, then the sender balance against the total.
func (h *Handler) Transfers(ctx context.Context, req Transfers) (Result, error) {
	checks := [][]validation.Check{
		validation.On("tokenId", req.TokenID, validation.ID),
		validation.On("targetIds", req.TargetIDs, validation.Tag("min=1", "must not be empty")),
		validation.On("amounts", req.Amounts, sameLength(len(req.TargetIDs))),
	}

	for i, amount := range req.Amounts {
		checks = append(checks, validation.On(fmt.Sprintf("amounts[%d]", i), amount, validation.Positive))
	}

	shape := validation.Fields("Transfers", checks...)

	tc, err := h.prepare(ctx, req.TokenID, capability.Transfers, shape)
	if err != nil {
		return Result{}, err
	}

	token := tc.Token

	err = validation.NewPipeline("transfers", h.logger).
		Add("decimals", func(context.Context) error {
			for i, amount := range req.Amounts {
				if err := validation.Decimals(amount, token.Decimals, fmt.Sprintf("amounts[%d]", i)); err != nil {
					return err
				}
			}

			return nil
		}).
		Add("targets", func(ctx context.Context) error {
			return h.deps.Validator.ForEach(ctx, len(req.TargetIDs), func(ctx context.Context, i int) error {
				_, err := h.deps.Validator.Account(ctx, token.ID, req.TargetIDs[i], fmt.Sprintf("targetIds[%d]", i))
				return err
			})
		}).
		Add("balance", func(ctx context.Context) error {
			balance, err := h.balance(ctx, tc.Account.ID, token.ID)
			if err != nil {
				return err
			}

			return validation.Sufficient(bigdecimal.Sum(token.Decimals, req.Amounts...), balance, "amounts")
		}).
		Run(ctx)
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.Transfers(ctx, tc, req.TargetIDs, req.Amounts))
}

func roleShape(request string, token, target ledger.ID, role ledger.Role) error {
	return validation.Fields(request,
		validation.On("tokenId", token, validation.ID),
		validation.On("targetId", target, validation.ID),
		validation.On("role", role, knownRole))
}

var knownRole = validation.NewRule("role", "must be a known role", func(value any) bool {
	role, ok := value.(ledger.Role)
	if !ok {
		return false
	}

	_, err := ledger.ParseRole(string(role))

	return err == nil
})

// GrantRole requires a known role and contract access.
func (h *Handler) GrantRole(ctx context.Context, req GrantRole) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.RoleManagement, roleShape("GrantRole", req.TokenID, req.TargetID, req.Role))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.GrantRole(ctx, tc, req.TargetID, req.Role))
}

// RevokeRole requires a known role and contract access.
func (h *Handler) RevokeRole(ctx context.Context, req RevokeRole) (Result, error) {
	tc, err := h.prepare(ctx, req.TokenID, capability.RoleManagement, roleShape("RevokeRole", req.TokenID, req.TargetID, req.Role))
	if err != nil {
		return Result{}, err
	}

	return sent(h.deps.Operator.RevokeRole(ctx, tc, req.TargetID, req.Role))
}
