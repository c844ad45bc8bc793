//go:build unit

package adapter_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter/direct"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/event"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx/txtest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenID   = ledger.MustParseID("0.0.7001")
	proxyID   = ledger.MustParseID("0.0.7000")
	treasury  = ledger.MustParseID("0.0.7002")
	accountID = ledger.MustParseID("0.0.1001")
	targetID  = ledger.MustParseID("0.0.1002")
)

type fixture struct {
	client   *txtest.Client
	operator *adapter.Operator
	events   *event.Recorder
	account  ledger.Account
	registry *adapter.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	priv, pub, err := crypto.GenerateKey(ledger.KeyTypeED25519)
	require.NoError(t, err)

	account := ledger.Account{ID: accountID, PublicKey: &pub, PrivateKey: &priv}
	client := txtest.NewClient("testnet")

	wallet, err := direct.New(account, client, direct.WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}))
	require.NoError(t, err)

	registry := adapter.NewRegistry()
	registry.Register(wallet)
	require.NoError(t, registry.Use(adapter.Direct))

	events := &event.Recorder{}

	return &fixture{
		client:   client,
		operator: adapter.NewOperator(registry, tx.NewBuilder(), adapter.WithPublisher(events)),
		events:   events,
		account:  wallet.Account(),
		registry: registry,
	}
}

func (f *fixture) nativeCaps(treasuryID ledger.ID) capability.TokenCapabilities {
	own := ledger.PublicKeyOf(*f.account.PublicKey)

	token := ledger.Token{
		ID:       tokenID,
		Decimals: 2,
		Treasury: treasuryID,
		Keys:     ledger.TokenKeys{Supply: own, Wipe: own, Freeze: own, Kyc: own, Pause: own, Admin: own, FeeSchedule: own},
	}

	return capability.Compute(token, f.account)
}

func (f *fixture) contractCaps() capability.TokenCapabilities {
	proxy := proxyID
	key := ledger.ContractKeyOf(proxy)

	token := ledger.Token{
		ID:           tokenID,
		Decimals:     2,
		ProxyAddress: &proxy,
		Treasury:     proxy,
		Keys:         ledger.TokenKeys{Supply: key, Wipe: key, Freeze: key, Kyc: key, Pause: key, Admin: key, FeeSchedule: key},
	}

	return capability.Compute(token, f.account)
}

func decodeInputs(t *testing.T, call *tx.ContractCallBody) []any {
	t.Helper()

	parsed, err := tx.StableCoinABI()
	require.NoError(t, err)

	method, ok := parsed.Methods[call.Function]
	require.True(t, ok)

	values, err := method.Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)

	return values
}

func TestOperator_CashInNative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		treasury     ledger.ID
		target       ledger.ID
		wantKinds    []tx.Kind
		wantApproval bool
	}{
		{name: "target is treasury", treasury: accountID, target: accountID, wantKinds: []tx.Kind{tx.KindTokenMint}},
		{name: "treasury is the account", treasury: accountID, target: targetID, wantKinds: []tx.Kind{tx.KindTokenMint, tx.KindTransfer}},
		{name: "treasury spends allowance", treasury: treasury, target: targetID, wantKinds: []tx.Kind{tx.KindTokenMint, tx.KindTransfer}, wantApproval: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)

			res, err := f.operator.CashIn(context.Background(), f.nativeCaps(tt.treasury), tt.target, bigdecimal.MustParse("10.5"))
			require.NoError(t, err)
			assert.Equal(t, tx.StatusSuccess, res.Status)

			submitted := f.client.Submitted()
			require.Len(t, submitted, len(tt.wantKinds))

			for i, kind := range tt.wantKinds {
				assert.Equal(t, kind, submitted[i].Kind)
			}

			assert.Equal(t, int64(1050), submitted[0].Body.(*tx.MintBody).Amount)

			if len(submitted) == 2 {
				legs := submitted[1].Body.(*tx.TransferBody).Transfers
				require.Len(t, legs, 2)
				assert.Equal(t, tt.treasury, legs[0].Account)
				assert.Equal(t, int64(-1050), legs[0].Amount)
				assert.Equal(t, tt.wantApproval, legs[0].IsApproval)
				assert.Equal(t, tt.target, legs[1].Account)
				assert.NotEqual(t, submitted[0].TransactionID(), submitted[1].TransactionID())
			}

			assert.Len(t, f.events.Events(), len(tt.wantKinds))
		})
	}
}

func TestOperator_CashInContract(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.operator.CashIn(context.Background(), f.contractCaps(), targetID, bigdecimal.MustParse("3"))
	require.NoError(t, err)

	submitted := f.client.Submitted()
	require.Len(t, submitted, 1)

	call := submitted[0].Body.(*tx.ContractCallBody)
	assert.Equal(t, proxyID, call.Contract)
	assert.Equal(t, "mint", call.Function)
	assert.Equal(t, tx.GasCashIn, call.Gas)

	inputs := decodeInputs(t, call)
	assert.Equal(t, targetID.ToEVMAddress(), inputs[0].(common.Address))
	assert.Equal(t, int64(300), inputs[1].(int64))
}

func TestOperator_NotAllowedNeverSubmits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tc := f.nativeCaps(accountID)

	_, err := f.operator.Rescue(context.Background(), tc, bigdecimal.MustParse("1"))
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)

	_, err = f.operator.GrantRole(context.Background(), tc, targetID, ledger.RoleCashIn)
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)

	var violation *stablecoin.BusinessRuleViolation
	require.ErrorAs(t, err, &violation)

	assert.Empty(t, f.client.Submitted())
	assert.Empty(t, f.events.Events())
}

func TestOperator_LedgerFailureCarriesContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.client.FailWith("freeze", "ACCOUNT_FROZEN_FOR_TOKEN")

	_, err := f.operator.Freeze(context.Background(), f.contractCaps(), targetID)
	require.ErrorIs(t, err, constant.ErrReceiptNotSuccess)

	var respErr *stablecoin.TransactionResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "FREEZE", respErr.Operation)
	assert.Equal(t, "testnet", respErr.Network)
	assert.Equal(t, "ACCOUNT_FROZEN_FOR_TOKEN", respErr.Status)
	assert.NotEmpty(t, respErr.TransactionID)
}

func TestOperator_SubmitFailureIsWrapped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.client.ReturnOnSubmit(assert.AnError)

	_, err := f.operator.Pause(context.Background(), f.nativeCaps(accountID))
	require.ErrorIs(t, err, assert.AnError)

	var respErr *stablecoin.TransactionResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "PAUSE", respErr.Operation)
}

func TestOperator_NoActiveWallet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.Unregister(adapter.Direct)

	_, err := f.operator.Delete(context.Background(), f.nativeCaps(accountID))
	require.ErrorIs(t, err, constant.ErrNoActiveWallet)
}

func TestOperator_CreateHoldDecodesHoldID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	result, err := tx.PackOutputs("createHold", true, big.NewInt(42))
	require.NoError(t, err)
	f.client.SetResult("createHold", result)

	escrow := common.HexToAddress("0x00000000000000000000000000000000000003e9")

	res, err := f.operator.CreateHold(context.Background(), f.contractCaps(), adapter.HoldParams{
		Amount:     bigdecimal.MustParse("5"),
		Escrow:     escrow,
		Expiration: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, response.Record, res.Kind)

	id, ok := res.BigInt(1)
	require.True(t, ok)
	assert.Equal(t, int64(42), id.Int64())

	call := f.client.Submitted()[0].Body.(*tx.ContractCallBody)
	assert.Equal(t, "createHold", call.Function)
}

func TestOperator_CreateHoldWithoutResultIsInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.operator.CreateHold(context.Background(), f.contractCaps(), adapter.HoldParams{
		Amount:     bigdecimal.MustParse("5"),
		Expiration: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, response.ErrInvalidResponse)
}

func TestOperator_TransfersAndFees(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tc := f.nativeCaps(accountID)

	_, err := f.operator.Transfers(context.Background(), tc,
		[]ledger.ID{targetID, treasury},
		[]bigdecimal.BigDecimal{bigdecimal.MustParse("1"), bigdecimal.MustParse("2.5")})
	require.NoError(t, err)

	_, err = f.operator.UpdateCustomFees(context.Background(), tc, []ledger.CustomFee{
		&ledger.FixedFee{CollectorID: targetID, Amount: bigdecimal.MustParse("1")},
	})
	require.NoError(t, err)

	submitted := f.client.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, tx.KindTransfer, submitted[0].Kind)
	assert.Equal(t, tx.KindTokenFeeScheduleUpdate, submitted[1].Kind)

	_, err = f.operator.Transfers(context.Background(), tc, []ledger.ID{targetID}, nil)
	require.ErrorIs(t, err, tx.ErrLengthMismatch)

	var buildErr *stablecoin.TransactionBuildingError
	require.ErrorAs(t, err, &buildErr)
}

func TestOperator_RolesAndHoldsUseProxy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tc := f.contractCaps()
	ctx := context.Background()

	_, err := f.operator.GrantRole(ctx, tc, targetID, ledger.RoleBurn)
	require.NoError(t, err)

	_, err = f.operator.ExecuteHold(ctx, tc, accountID, 3, targetID.ToEVMAddress(), bigdecimal.MustParse("1"))
	require.NoError(t, err)

	_, err = f.operator.ReclaimHold(ctx, tc, accountID, 3)
	require.NoError(t, err)

	submitted := f.client.Submitted()
	require.Len(t, submitted, 3)

	role := decodeInputs(t, submitted[0].Body.(*tx.ContractCallBody))
	assert.Equal(t, ledger.RoleBurn.Hash(), role[0].([32]byte))

	functions := []string{submitted[0].Function(), submitted[1].Function(), submitted[2].Function()}
	assert.Equal(t, []string{"grantRole", "executeHold", "reclaimHold"}, functions)
	assert.Equal(t, []event.Type{event.TransactionSubmitted, event.TransactionSubmitted, event.TransactionSubmitted}, f.events.Types())
}
