package validation

import (
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
)

// Associated fails with StableCoinNotAssociated when rel is nil.
func Associated(rel *ledger.Relationship, field string, account, token ledger.ID) error {
	if rel == nil {
		return stablecoin.NewBusinessRuleViolation(constant.ErrStableCoinNotAssociated, field,
			fmt.Sprintf("account %s is not associated to token %s", account, token))
	}

	return nil
}

// NotFrozen fails with AccountFreeze when rel is frozen.
func NotFrozen(rel *ledger.Relationship, field string) error {
	if rel.IsFrozen() {
		return stablecoin.NewBusinessRuleViolation(constant.ErrAccountFreeze, field,
			fmt.Sprintf("account %s is frozen for token %s", rel.AccountID, rel.TokenID))
	}

	return nil
}

// KycNotRevoked fails with AccountNotKyc when rel has its KYC revoked.
func KycNotRevoked(rel *ledger.Relationship, field string) error {
	if rel.IsKycRevoked() {
		return stablecoin.NewBusinessRuleViolation(constant.ErrAccountNotKyc, field,
			fmt.Sprintf("account %s is not KYC granted for token %s", rel.AccountID, rel.TokenID))
	}

	return nil
}

// Decimals fails with DecimalsOverRange when amount has more fractional
// digits than decimals.
func Decimals(amount bigdecimal.BigDecimal, decimals int32, field string) error {
	if !amount.FitsDecimals(decimals) {
		return stablecoin.NewBusinessRuleViolation(constant.ErrDecimalsOverRange, field,
			fmt.Sprintf("amount %s has more than %d decimals", amount, decimals))
	}

	return nil
}

// Sufficient fails with OperationNotAllowed when amount exceeds available.
func Sufficient(amount, available bigdecimal.BigDecimal, field string) error {
	if amount.GreaterThan(available) {
		return stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, field,
			fmt.Sprintf("amount %s exceeds available balance %s", amount, available))
	}

	return nil
}

// WithinMaxSupply fails with MaxSupplyExceeded when minting amount would push
// a finite supply over its maximum.
func WithinMaxSupply(token ledger.Token, amount bigdecimal.BigDecimal, field string) error {
	if token.InfiniteSupply {
		return nil
	}

	if token.TotalSupply.Add(amount).GreaterThan(token.MaxSupply) {
		return stablecoin.NewBusinessRuleViolation(constant.ErrMaxSupplyExceeded, field,
			fmt.Sprintf("amount %s over total supply %s exceeds max supply %s", amount, token.TotalSupply, token.MaxSupply))
	}

	return nil
}

// MaxCustomFees fails with MaxCustomFeesExceeded when count is over the limit.
func MaxCustomFees(count int, field string) error {
	if count > constant.MaxCustomFees {
		return stablecoin.NewBusinessRuleViolation(constant.ErrMaxCustomFeesExceeded, field,
			fmt.Sprintf("%d custom fees exceed the limit of %d", count, constant.MaxCustomFees))
	}

	return nil
}
