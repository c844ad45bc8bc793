package adapter

import (
	"context"
	"math/big"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/ethereum/go-ethereum/common"
)

// CashIn mints amount to target. Natively this is a mint to the treasury
// followed by a transfer to target, skipped when target is the treasury.
func (o *Operator) CashIn(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	token := tc.Token

	return o.perform(ctx, tc, operation{
		op:   capability.CashIn,
		kind: response.Receipt,
		native: func(context.Context) ([]*tx.Transaction, error) {
			mint, err := o.builder.Mint(token, amount)
			if err != nil {
				return nil, err
			}

			if target == token.Treasury {
				return []*tx.Transaction{mint}, nil
			}

			// A treasury other than the acting account pays through an allowance.
			transfer, err := o.builder.Transfer(token, token.Treasury, target, amount, token.Treasury != tc.Account.ID)
			if err != nil {
				return nil, err
			}

			return []*tx.Transaction{mint, transfer}, nil
		},
		contract: &contractCall{function: "mint", gas: tx.GasCashIn, args: o.accountAmountArgs("mint", target, amount, token.Decimals)},
	})
}

// Burn destroys amount from the treasury.
func (o *Operator) Burn(ctx context.Context, tc capability.TokenCapabilities, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.Burn,
		kind: response.Receipt,
		native: func(context.Context) ([]*tx.Transaction, error) {
			return single(o.builder.Burn(tc.Token, amount))
		},
		contract: &contractCall{function: "burn", gas: tx.GasBurn, args: amountArgs("burn", amount, tc.Token.Decimals)},
	})
}

// Wipe destroys amount held by target.
func (o *Operator) Wipe(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.Wipe,
		kind: response.Receipt,
		native: func(context.Context) ([]*tx.Transaction, error) {
			return single(o.builder.Wipe(tc.Token, target, amount))
		},
		contract: &contractCall{function: "wipe", gas: tx.GasWipe, args: o.accountAmountArgs("wipe", target, amount, tc.Token.Decimals)},
	})
}

// Rescue moves amount of the token from the treasury contract to the caller.
func (o *Operator) Rescue(ctx context.Context, tc capability.TokenCapabilities, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:       capability.Rescue,
		kind:     response.Receipt,
		contract: &contractCall{function: "rescue", gas: tx.GasRescue, args: amountArgs("rescue", amount, tc.Token.Decimals)},
	})
}

// RescueHBAR moves amount of the native currency from the treasury contract
// to the caller.
func (o *Operator) RescueHBAR(ctx context.Context, tc capability.TokenCapabilities, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.RescueHBAR,
		kind: response.Receipt,
		contract: &contractCall{function: "rescueHBAR", gas: tx.GasRescueHBAR, args: func(context.Context) ([]any, error) {
			u, err := bigUnits("rescueHBAR", amount, constant.HbarDecimals)
			if err != nil {
				return nil, err
			}

			return []any{u}, nil
		}},
	})
}

// Freeze freezes target for the token.
func (o *Operator) Freeze(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID) (response.TransactionResponse, error) {
	return o.accountOperation(ctx, tc, capability.Freeze, "freeze", tx.GasFreeze, target, o.builder.Freeze)
}

// Unfreeze unfreezes target for the token.
func (o *Operator) Unfreeze(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID) (response.TransactionResponse, error) {
	return o.accountOperation(ctx, tc, capability.Unfreeze, "unfreeze", tx.GasUnfreeze, target, o.builder.Unfreeze)
}

// GrantKyc grants KYC to target.
func (o *Operator) GrantKyc(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID) (response.TransactionResponse, error) {
	return o.accountOperation(ctx, tc, capability.GrantKyc, "grantKyc", tx.GasGrantKyc, target, o.builder.GrantKyc)
}

// RevokeKyc revokes KYC from target.
func (o *Operator) RevokeKyc(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID) (response.TransactionResponse, error) {
	return o.accountOperation(ctx, tc, capability.RevokeKyc, "revokeKyc", tx.GasRevokeKyc, target, o.builder.RevokeKyc)
}

// Pause pauses the token.
func (o *Operator) Pause(ctx context.Context, tc capability.TokenCapabilities) (response.TransactionResponse, error) {
	return o.tokenOperation(ctx, tc, capability.Pause, "pause", tx.GasPause, o.builder.Pause)
}

// Unpause unpauses the token.
func (o *Operator) Unpause(ctx context.Context, tc capability.TokenCapabilities) (response.TransactionResponse, error) {
	return o.tokenOperation(ctx, tc, capability.Unpause, "unpause", tx.GasUnpause, o.builder.Unpause)
}

// Delete deletes the token.
func (o *Operator) Delete(ctx context.Context, tc capability.TokenCapabilities) (response.TransactionResponse, error) {
	return o.tokenOperation(ctx, tc, capability.Delete, "deleteToken", tx.GasDelete, o.builder.Delete)
}

// Transfers sends amounts[i] from the acting account to targets[i] in one
// native transfer.
func (o *Operator) Transfers(ctx context.Context, tc capability.TokenCapabilities, targets []ledger.ID, amounts []bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.Transfers,
		kind: response.Receipt,
		native: func(context.Context) ([]*tx.Transaction, error) {
			return single(o.builder.Transfers(tc.Token, tc.Account.ID, targets, amounts))
		},
	})
}

// GrantRole grants role to target on the proxy.
func (o *Operator) GrantRole(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID, role ledger.Role) (response.TransactionResponse, error) {
	return o.roleOperation(ctx, tc, "grantRole", tx.GasGrantRole, target, role)
}

// RevokeRole revokes role from target on the proxy.
func (o *Operator) RevokeRole(ctx context.Context, tc capability.TokenCapabilities, target ledger.ID, role ledger.Role) (response.TransactionResponse, error) {
	return o.roleOperation(ctx, tc, "revokeRole", tx.GasRevokeRole, target, role)
}

// UpdateCustomFees replaces the custom fee schedule of the token.
func (o *Operator) UpdateCustomFees(ctx context.Context, tc capability.TokenCapabilities, fees []ledger.CustomFee) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.UpdateCustomFees,
		kind: response.Receipt,
		native: func(context.Context) ([]*tx.Transaction, error) {
			return single(o.builder.FeeSchedule(tc.Token, fees))
		},
		contract: &contractCall{function: "updateCustomFees", gas: tx.GasUpdateCustomFees, args: func(context.Context) ([]any, error) {
			fixed, fractional, err := tx.FeeArgs(tc.Token, fees)
			if err != nil {
				return nil, err
			}

			return []any{fixed, fractional}, nil
		}},
	})
}

// CreateHold escrows amount from the acting account. The response outputs
// carry the success flag and the new hold id.
func (o *Operator) CreateHold(ctx context.Context, tc capability.TokenCapabilities, params HoldParams) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.CreateHold,
		kind: response.Record,
		spec: &response.DecodeSpec{Function: "createHold"},
		contract: &contractCall{function: "createHold", gas: tx.GasCreateHold, args: func(context.Context) ([]any, error) {
			arg, err := holdArg("createHold", params, tc.Token.Decimals)
			if err != nil {
				return nil, err
			}

			return []any{arg}, nil
		}},
	})
}

// CreateHoldByController escrows amount from source on behalf of a
// controller.
func (o *Operator) CreateHoldByController(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, params HoldParams, operatorData []byte) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.ControllerCreateHold,
		kind: response.Record,
		spec: &response.DecodeSpec{Function: "createHoldByController"},
		contract: &contractCall{function: "createHoldByController", gas: tx.GasCreateHold, args: func(ctx context.Context) ([]any, error) {
			from, err := o.address(ctx, source)
			if err != nil {
				return nil, err
			}

			arg, err := holdArg("createHoldByController", params, tc.Token.Decimals)
			if err != nil {
				return nil, err
			}

			if operatorData == nil {
				operatorData = []byte{}
			}

			return []any{from, arg, operatorData}, nil
		}},
	})
}

// ExecuteHold releases amount of a hold to the to address.
func (o *Operator) ExecuteHold(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, holdID int64, to common.Address, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.ExecuteHold,
		kind: response.Receipt,
		contract: &contractCall{function: "executeHold", gas: tx.GasExecuteHold, args: func(ctx context.Context) ([]any, error) {
			hid, err := o.holdIdentifier(ctx, source, holdID)
			if err != nil {
				return nil, err
			}

			u, err := bigUnits("executeHold", amount, tc.Token.Decimals)
			if err != nil {
				return nil, err
			}

			return []any{hid, to, u}, nil
		}},
	})
}

// ReleaseHold returns amount of a hold to its source.
func (o *Operator) ReleaseHold(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, holdID int64, amount bigdecimal.BigDecimal) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.ReleaseHold,
		kind: response.Receipt,
		contract: &contractCall{function: "releaseHold", gas: tx.GasReleaseHold, args: func(ctx context.Context) ([]any, error) {
			hid, err := o.holdIdentifier(ctx, source, holdID)
			if err != nil {
				return nil, err
			}

			u, err := bigUnits("releaseHold", amount, tc.Token.Decimals)
			if err != nil {
				return nil, err
			}

			return []any{hid, u}, nil
		}},
	})
}

// ReclaimHold returns the whole of an expired hold to its source.
func (o *Operator) ReclaimHold(ctx context.Context, tc capability.TokenCapabilities, source ledger.ID, holdID int64) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.ReclaimHold,
		kind: response.Receipt,
		contract: &contractCall{function: "reclaimHold", gas: tx.GasReclaimHold, args: func(ctx context.Context) ([]any, error) {
			hid, err := o.holdIdentifier(ctx, source, holdID)
			if err != nil {
				return nil, err
			}

			return []any{hid}, nil
		}},
	})
}

func (o *Operator) accountOperation(ctx context.Context, tc capability.TokenCapabilities, op capability.Operation, function string, gas uint64,
	target ledger.ID, build func(ledger.Token, ledger.ID) *tx.Transaction,
) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   op,
		kind: response.Receipt,
		native: func(context.Context) ([]*tx.Transaction, error) {
			return []*tx.Transaction{build(tc.Token, target)}, nil
		},
		contract: &contractCall{function: function, gas: gas, args: func(ctx context.Context) ([]any, error) {
			addr, err := o.address(ctx, target)
			if err != nil {
				return nil, err
			}

			return []any{addr}, nil
		}},
	})
}

func (o *Operator) tokenOperation(ctx context.Context, tc capability.TokenCapabilities, op capability.Operation, function string, gas uint64,
	build func(ledger.Token) *tx.Transaction,
) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   op,
		kind: response.Receipt,
		native: func(context.Context) ([]*tx.Transaction, error) {
			return []*tx.Transaction{build(tc.Token)}, nil
		},
		contract: &contractCall{function: function, gas: gas},
	})
}

func (o *Operator) roleOperation(ctx context.Context, tc capability.TokenCapabilities, function string, gas uint64, target ledger.ID, role ledger.Role) (response.TransactionResponse, error) {
	return o.perform(ctx, tc, operation{
		op:   capability.RoleManagement,
		kind: response.Receipt,
		contract: &contractCall{function: function, gas: gas, args: func(ctx context.Context) ([]any, error) {
			addr, err := o.address(ctx, target)
			if err != nil {
				return nil, err
			}

			return []any{role.Hash(), addr}, nil
		}},
	})
}

func (o *Operator) accountAmountArgs(function string, account ledger.ID, amount bigdecimal.BigDecimal, decimals int32) func(context.Context) ([]any, error) {
	return func(ctx context.Context) ([]any, error) {
		addr, err := o.address(ctx, account)
		if err != nil {
			return nil, err
		}

		u, err := units(function, amount, decimals)
		if err != nil {
			return nil, err
		}

		return []any{addr, u}, nil
	}
}

func amountArgs(function string, amount bigdecimal.BigDecimal, decimals int32) func(context.Context) ([]any, error) {
	return func(context.Context) ([]any, error) {
		u, err := units(function, amount, decimals)
		if err != nil {
			return nil, err
		}

		return []any{u}, nil
	}
}

func (o *Operator) holdIdentifier(ctx context.Context, source ledger.ID, holdID int64) (tx.HoldIdentifierArg, error) {
	holder, err := o.address(ctx, source)
	if err != nil {
		return tx.HoldIdentifierArg{}, err
	}

	return tx.HoldIdentifierArg{TokenHolder: holder, HoldId: big.NewInt(holdID)}, nil
}

func holdArg(function string, params HoldParams, decimals int32) (tx.HoldArg, error) {
	u, err := bigUnits(function, params.Amount, decimals)
	if err != nil {
		return tx.HoldArg{}, err
	}

	data := params.Data
	if data == nil {
		data = []byte{}
	}

	return tx.HoldArg{
		Amount:              u,
		ExpirationTimestamp: big.NewInt(params.Expiration.Unix()),
		Escrow:              params.Escrow,
		To:                  params.Target,
		Data:                data,
	}, nil
}

