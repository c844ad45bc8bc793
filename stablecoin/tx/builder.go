package tx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
)

// Gas limits of the stable coin contract calls.
const (
	GasCashIn           uint64 = 120_000
	GasBurn             uint64 = 70_000
	GasWipe             uint64 = 70_000
	GasFreeze           uint64 = 65_000
	GasUnfreeze         uint64 = 65_000
	GasGrantKyc         uint64 = 70_000
	GasRevokeKyc        uint64 = 70_000
	GasPause            uint64 = 65_000
	GasUnpause          uint64 = 65_000
	GasDelete           uint64 = 65_000
	GasRescue           uint64 = 70_000
	GasRescueHBAR       uint64 = 70_000
	GasGrantRole        uint64 = 150_000
	GasRevokeRole       uint64 = 85_000
	GasUpdateCustomFees uint64 = 65_000
	GasCreateHold       uint64 = 150_000
	GasExecuteHold      uint64 = 120_000
	GasReleaseHold      uint64 = 100_000
	GasReclaimHold      uint64 = 100_000
)

var (
	// ErrAmountOutOfRange is returned for amounts that do not fit int64 units.
	ErrAmountOutOfRange = errors.New("amount out of int64 range")
	// ErrLengthMismatch is returned when transfer targets and amounts differ in length.
	ErrLengthMismatch = errors.New("targets and amounts differ in length")
	// ErrEmptyTransfer is returned for a transfer without targets.
	ErrEmptyTransfer = errors.New("transfer has no targets")
)

// Builder assembles unsigned transactions.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder { return &Builder{} }

func buildErr(operation string, err error) error {
	return &stablecoin.TransactionBuildingError{Operation: operation, Err: err}
}

// Units converts amount to int64 smallest units at decimals.
func Units(amount bigdecimal.BigDecimal, decimals int32) (int64, error) {
	scaled, err := amount.SetDecimals(decimals)
	if err != nil {
		return 0, err
	}

	units := scaled.ToUnits()
	if !units.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, amount)
	}

	return units.Int64(), nil
}

// BigUnits converts amount to smallest units at decimals without a range limit.
func BigUnits(amount bigdecimal.BigDecimal, decimals int32) (*big.Int, error) {
	scaled, err := amount.SetDecimals(decimals)
	if err != nil {
		return nil, err
	}

	return scaled.ToUnits(), nil
}

// Mint builds a native mint to the treasury.
func (b *Builder) Mint(token ledger.Token, amount bigdecimal.BigDecimal) (*Transaction, error) {
	units, err := Units(amount, token.Decimals)
	if err != nil {
		return nil, buildErr("mint", err)
	}

	return New(KindTokenMint, "mint", &MintBody{Token: token.ID, Amount: units}), nil
}

// Burn builds a native burn from the treasury.
func (b *Builder) Burn(token ledger.Token, amount bigdecimal.BigDecimal) (*Transaction, error) {
	units, err := Units(amount, token.Decimals)
	if err != nil {
		return nil, buildErr("burn", err)
	}

	return New(KindTokenBurn, "burn", &BurnBody{Token: token.ID, Amount: units}), nil
}

// Wipe builds a native wipe of account.
func (b *Builder) Wipe(token ledger.Token, account ledger.ID, amount bigdecimal.BigDecimal) (*Transaction, error) {
	units, err := Units(amount, token.Decimals)
	if err != nil {
		return nil, buildErr("wipe", err)
	}

	return New(KindTokenWipe, "wipe", &WipeBody{Token: token.ID, Account: account, Amount: units}), nil
}

// Freeze builds a native freeze of account.
func (b *Builder) Freeze(token ledger.Token, account ledger.ID) *Transaction {
	return New(KindTokenFreeze, "freeze", &AccountTokenBody{Token: token.ID, Account: account})
}

// Unfreeze builds a native unfreeze of account.
func (b *Builder) Unfreeze(token ledger.Token, account ledger.ID) *Transaction {
	return New(KindTokenUnfreeze, "unfreeze", &AccountTokenBody{Token: token.ID, Account: account})
}

// GrantKyc builds a native KYC grant.
func (b *Builder) GrantKyc(token ledger.Token, account ledger.ID) *Transaction {
	return New(KindTokenGrantKyc, "grantKyc", &AccountTokenBody{Token: token.ID, Account: account})
}

// RevokeKyc builds a native KYC revocation.
func (b *Builder) RevokeKyc(token ledger.Token, account ledger.ID) *Transaction {
	return New(KindTokenRevokeKyc, "revokeKyc", &AccountTokenBody{Token: token.ID, Account: account})
}

// Pause builds a native pause.
func (b *Builder) Pause(token ledger.Token) *Transaction {
	return New(KindTokenPause, "pause", &TokenBody{Token: token.ID})
}

// Unpause builds a native unpause.
func (b *Builder) Unpause(token ledger.Token) *Transaction {
	return New(KindTokenUnpause, "unpause", &TokenBody{Token: token.ID})
}

// Delete builds a native token deletion.
func (b *Builder) Delete(token ledger.Token) *Transaction {
	return New(KindTokenDelete, "deleteToken", &TokenBody{Token: token.ID})
}

// Transfer moves amount from source to target. An approved transfer spends
// an allowance granted by source.
func (b *Builder) Transfer(token ledger.Token, source, target ledger.ID, amount bigdecimal.BigDecimal, approved bool) (*Transaction, error) {
	units, err := Units(amount, token.Decimals)
	if err != nil {
		return nil, buildErr("transfer", err)
	}

	return New(KindTransfer, "transfer", &TransferBody{
		Token: token.ID,
		Transfers: []AccountAmount{
			{Account: source, Amount: -units, IsApproval: approved},
			{Account: target, Amount: units},
		},
	}), nil
}

// Transfers moves amounts[i] from source to targets[i] in one transaction.
func (b *Builder) Transfers(token ledger.Token, source ledger.ID, targets []ledger.ID, amounts []bigdecimal.BigDecimal) (*Transaction, error) {
	if len(targets) != len(amounts) {
		return nil, buildErr("transfers", ErrLengthMismatch)
	}

	if len(targets) == 0 {
		return nil, buildErr("transfers", ErrEmptyTransfer)
	}

	legs := make([]AccountAmount, 0, len(targets)+1)
	total := new(big.Int)

	for i, target := range targets {
		units, err := Units(amounts[i], token.Decimals)
		if err != nil {
			return nil, buildErr("transfers", fmt.Errorf("amounts[%d]: %w", i, err))
		}

		total.Add(total, big.NewInt(units))
		legs = append(legs, AccountAmount{Account: target, Amount: units})
	}

	if !total.IsInt64() {
		return nil, buildErr("transfers", ErrAmountOutOfRange)
	}

	legs = append([]AccountAmount{{Account: source, Amount: -total.Int64()}}, legs...)

	return New(KindTransfer, "transfers", &TransferBody{Token: token.ID, Transfers: legs}), nil
}

// FeeSchedule replaces the custom fees of token.
func (b *Builder) FeeSchedule(token ledger.Token, fees []ledger.CustomFee) (*Transaction, error) {
	bodies := make([]FeeBody, 0, len(fees))

	for i, fee := range fees {
		body, err := feeBody(token, fee)
		if err != nil {
			return nil, buildErr("updateCustomFees", fmt.Errorf("fees[%d]: %w", i, err))
		}

		bodies = append(bodies, body)
	}

	return New(KindTokenFeeScheduleUpdate, "updateCustomFees", &FeeScheduleBody{Token: token.ID, Fees: bodies}), nil
}

func feeBody(token ledger.Token, fee ledger.CustomFee) (FeeBody, error) {
	body := FeeBody{Collector: fee.Collector(), CollectorsExempt: fee.Exempt()}

	switch f := fee.(type) {
	case *ledger.FixedFee:
		units, err := Units(f.Amount, f.Amount.Decimals())
		if err != nil {
			return FeeBody{}, err
		}

		body.Fixed = &FixedFeeBody{Amount: units, DenominatingToken: f.DenominatingTokenID}
	case *ledger.FractionalFee:
		if f.Denominator == 0 {
			return FeeBody{}, errors.New("fractional fee denominator is zero")
		}

		minUnits, err := Units(f.Min, token.Decimals)
		if err != nil {
			return FeeBody{}, err
		}

		maxUnits, err := Units(f.Max, token.Decimals)
		if err != nil {
			return FeeBody{}, err
		}

		body.Fractional = &FractionalFeeBody{
			Numerator:   f.Numerator,
			Denominator: f.Denominator,
			Min:         minUnits,
			Max:         maxUnits,
			Net:         f.Net,
		}
	default:
		return FeeBody{}, fmt.Errorf("unsupported custom fee %T", fee)
	}

	return body, nil
}

// ContractCall packs function with args against the stable coin ABI.
func (b *Builder) ContractCall(contract ledger.ID, function string, gas uint64, args ...any) (*Transaction, error) {
	data, err := Pack(function, args...)
	if err != nil {
		return nil, buildErr(function, err)
	}

	return New(KindContractCall, function, &ContractCallBody{
		Contract: contract,
		Gas:      gas,
		Function: function,
		Data:     data,
	}), nil
}

// FeeArgs splits fees into the fixed and fractional tuples of
// updateCustomFees.
func FeeArgs(token ledger.Token, fees []ledger.CustomFee) ([]FixedFeeArg, []FractionalFeeArg, error) {
	fixed := make([]FixedFeeArg, 0, len(fees))
	fractional := make([]FractionalFeeArg, 0, len(fees))

	for i, fee := range fees {
		body, err := feeBody(token, fee)
		if err != nil {
			return nil, nil, buildErr("updateCustomFees", fmt.Errorf("fees[%d]: %w", i, err))
		}

		collector := body.Collector.ToEVMAddress()

		switch {
		case body.Fixed != nil:
			arg := FixedFeeArg{Amount: body.Fixed.Amount, FeeCollector: collector}

			switch {
			case body.Fixed.DenominatingToken == nil:
				arg.UseHbarsForPayment = true
			case *body.Fixed.DenominatingToken == token.ID:
				arg.UseCurrentTokenForPayment = true
			default:
				arg.TokenId = body.Fixed.DenominatingToken.ToEVMAddress()
			}

			fixed = append(fixed, arg)
		case body.Fractional != nil:
			fractional = append(fractional, FractionalFeeArg{
				Numerator:      body.Fractional.Numerator,
				Denominator:    body.Fractional.Denominator,
				MinimumAmount:  body.Fractional.Min,
				MaximumAmount:  body.Fractional.Max,
				NetOfTransfers: body.Fractional.Net,
				FeeCollector:   collector,
			})
		}
	}

	return fixed, fractional, nil
}
