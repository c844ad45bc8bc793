//go:build unit

package tx

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	payer = ledger.MustParseID("0.0.1234")
	token = ledger.Token{ID: ledger.MustParseID("0.0.5001"), Decimals: 2}
	start = time.Unix(1_700_000_000, 123)
)

func TestFreeze(t *testing.T) {
	t.Parallel()

	txn, err := NewBuilder().Mint(token, bigdecimal.MustParse("12.5"))
	require.NoError(t, err)
	assert.False(t, txn.Frozen())
	assert.ErrorIs(t, txn.AddSignature(ledger.PublicKey{Key: "aa"}, []byte{1}), ErrNotFrozen)

	require.NoError(t, txn.Freeze(payer, start))
	assert.True(t, txn.Frozen())
	assert.Equal(t, "0.0.1234@1700000000.000000123", txn.TransactionID())
	assert.NotEmpty(t, txn.BodyBytes())
	assert.ErrorIs(t, txn.Freeze(payer, start), ErrFrozen)

	again, err := NewBuilder().Mint(token, bigdecimal.MustParse("12.50"))
	require.NoError(t, err)
	require.NoError(t, again.Freeze(payer, start))
	assert.Equal(t, txn.BodyBytes(), again.BodyBytes(), "body bytes are canonical")
}

func TestFromBodyBytes(t *testing.T) {
	t.Parallel()

	txn, err := NewBuilder().Wipe(token, ledger.MustParseID("0.0.77"), bigdecimal.MustParse("3"))
	require.NoError(t, err)
	require.NoError(t, txn.Freeze(payer, start))

	restored, err := FromBodyBytes(txn.BodyBytes())
	require.NoError(t, err)

	assert.Equal(t, KindTokenWipe, restored.Kind)
	assert.Equal(t, txn.TransactionID(), restored.TransactionID())
	assert.Equal(t, payer, restored.Payer())
	assert.Equal(t, &WipeBody{Token: token.ID, Account: ledger.MustParseID("0.0.77"), Amount: 300}, restored.Body)

	_, err = FromBodyBytes([]byte{0xff})
	assert.Error(t, err)
}

func TestMarshalBinary_KeepsSignatures(t *testing.T) {
	t.Parallel()

	txn := NewBuilder().Pause(token)
	_, err := txn.MarshalBinary()
	require.ErrorIs(t, err, ErrNotFrozen)

	require.NoError(t, txn.Freeze(payer, start))

	pk := ledger.PublicKey{Key: "0xAABB", Type: ledger.KeyTypeED25519}
	require.NoError(t, txn.AddSignature(pk, []byte{1, 2}))
	require.NoError(t, txn.AddSignature(ledger.PublicKey{Key: "aabb"}, []byte{3, 4}))

	raw, err := txn.MarshalBinary()
	require.NoError(t, err)

	var decoded Transaction
	require.NoError(t, decoded.UnmarshalBinary(raw))

	assert.Equal(t, "pause", decoded.Operation)
	assert.Equal(t, txn.BodyBytes(), decoded.BodyBytes())
	require.Len(t, decoded.Signatures(), 1)
	assert.Equal(t, []byte{3, 4}, decoded.Signatures()[0].Bytes)
}

func TestUnits(t *testing.T) {
	t.Parallel()

	units, err := Units(bigdecimal.MustParse("1.23"), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(123), units)

	_, err = Units(bigdecimal.MustParse("1.234"), 2)
	assert.ErrorIs(t, err, bigdecimal.ErrTooManyDecimals)

	_, err = Units(bigdecimal.MustParse("92233720368547758.08"), 2)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)

	wide, err := BigUnits(bigdecimal.MustParse("92233720368547758.08"), 2)
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", wide.String())
}

func TestBuilder_BuildingErrors(t *testing.T) {
	t.Parallel()

	b := NewBuilder()

	_, err := b.Burn(token, bigdecimal.MustParse("0.001"))

	var buildErr *stablecoin.TransactionBuildingError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "burn", buildErr.Operation)

	_, err = b.Transfers(token, payer, []ledger.ID{payer}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = b.Transfers(token, payer, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyTransfer)

	_, err = b.ContractCall(token.ID, "mint", GasCashIn, "not-an-address")
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "mint", buildErr.Operation)

	_, err = b.FeeSchedule(token, []ledger.CustomFee{&ledger.FractionalFee{Numerator: 1}})
	require.ErrorAs(t, err, &buildErr)
}

func TestBuilder_Transfers(t *testing.T) {
	t.Parallel()

	a, b := ledger.MustParseID("0.0.10"), ledger.MustParseID("0.0.11")

	txn, err := NewBuilder().Transfers(token, payer, []ledger.ID{a, b},
		[]bigdecimal.BigDecimal{bigdecimal.MustParse("1"), bigdecimal.MustParse("0.5")})
	require.NoError(t, err)

	body := txn.Body.(*TransferBody)
	assert.Equal(t, []AccountAmount{
		{Account: payer, Amount: -150},
		{Account: a, Amount: 100},
		{Account: b, Amount: 50},
	}, body.Transfers)

	approved, err := NewBuilder().Transfer(token, payer, a, bigdecimal.MustParse("2"), true)
	require.NoError(t, err)
	assert.True(t, approved.Body.(*TransferBody).Transfers[0].IsApproval)
}

func TestContractCall_PackAndUnpack(t *testing.T) {
	t.Parallel()

	escrow := common.HexToAddress("0x00000000000000000000000000000000000004d2")
	hold := HoldArg{
		Amount:              big.NewInt(500),
		ExpirationTimestamp: big.NewInt(1_800_000_000),
		Escrow:              escrow,
		Data:                []byte{},
	}

	txn, err := NewBuilder().ContractCall(ledger.MustParseID("0.0.5000"), "createHold", GasCreateHold, hold)
	require.NoError(t, err)
	assert.Equal(t, "createHold", txn.Function())
	assert.Equal(t, KindContractCall, txn.Kind)

	call := txn.Body.(*ContractCallBody)
	assert.Equal(t, GasCreateHold, call.Gas)
	assert.Len(t, call.Data[:4], 4)

	out, err := PackOutputs("createHold", true, big.NewInt(7))
	require.NoError(t, err)

	values, err := Unpack("createHold", out)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, true, values[0])
	assert.Equal(t, int64(7), values[1].(*big.Int).Int64())

	_, err = PackOutputs("doesNotExist")
	assert.Error(t, err)
}

func TestFeeArgs(t *testing.T) {
	t.Parallel()

	collector := ledger.MustParseID("0.0.900")
	other := ledger.MustParseID("0.0.6000")

	fixed, fractional, err := FeeArgs(token, []ledger.CustomFee{
		&ledger.FixedFee{CollectorID: collector, Amount: bigdecimal.MustParse("1.5")},
		&ledger.FixedFee{CollectorID: collector, Amount: bigdecimal.MustParse("1"), DenominatingTokenID: &token.ID},
		&ledger.FixedFee{CollectorID: collector, Amount: bigdecimal.MustParse("2"), DenominatingTokenID: &other},
		&ledger.FractionalFee{CollectorID: collector, Numerator: 1, Denominator: 100, Min: bigdecimal.MustParse("0.1"), Max: bigdecimal.MustParse("10")},
	})
	require.NoError(t, err)

	require.Len(t, fixed, 3)
	assert.True(t, fixed[0].UseHbarsForPayment)
	assert.True(t, fixed[1].UseCurrentTokenForPayment)
	assert.Equal(t, other.ToEVMAddress(), fixed[2].TokenId)
	assert.Equal(t, collector.ToEVMAddress(), fixed[0].FeeCollector)

	require.Len(t, fractional, 1)
	assert.Equal(t, int64(10), fractional[0].MinimumAmount)
	assert.Equal(t, int64(1000), fractional[0].MaximumAmount)

	_, err = Pack("updateCustomFees", fixed, fractional)
	assert.NoError(t, err)
}

func TestTransaction_Function(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewBuilder().Delete(token).Function())
	assert.True(t, errors.Is(&stablecoin.TransactionBuildingError{Err: ErrEmptyTransfer}, ErrEmptyTransfer))
}
