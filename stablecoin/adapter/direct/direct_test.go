//go:build unit

package direct

import (
	"context"
	"testing"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresKeyAndClient(t *testing.T) {
	t.Parallel()

	_, err := New(ledger.Account{ID: ledger.NewID(5)}, txtest.NewClient("testnet"))

	var cfgErr *stablecoin.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, errMissingKey)

	priv, _, err := crypto.GenerateKey(ledger.KeyTypeSECP256K1)
	require.NoError(t, err)

	_, err = New(ledger.Account{ID: ledger.NewID(5), PrivateKey: &priv}, nil)
	require.ErrorIs(t, err, errMissingClient)
}

func TestAdapter_SignAndSend(t *testing.T) {
	t.Parallel()

	for _, keyType := range []ledger.KeyType{ledger.KeyTypeED25519, ledger.KeyTypeSECP256K1} {
		t.Run(string(keyType), func(t *testing.T) {
			t.Parallel()

			priv, pub, err := crypto.GenerateKey(keyType)
			require.NoError(t, err)

			client := txtest.NewClient("testnet")
			start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			a, err := New(ledger.Account{ID: ledger.NewID(77), PrivateKey: &priv}, client, WithClock(func() time.Time { return start }))
			require.NoError(t, err)

			assert.Nil(t, a.Account().PrivateKey)
			require.NotNil(t, a.Account().PublicKey)
			assert.True(t, pub.Equal(*a.Account().PublicKey))

			token := ledger.Token{ID: ledger.NewID(900)}
			builder := tx.NewBuilder()

			first := builder.Pause(token)
			second := builder.Unpause(token)

			res, err := a.SignAndSend(context.Background(), first, response.Receipt, nil)
			require.NoError(t, err)
			assert.Equal(t, tx.StatusSuccess, res.Status)
			assert.Equal(t, "testnet", res.Network)

			_, err = a.SignAndSend(context.Background(), second, response.Receipt, nil)
			require.NoError(t, err)

			assert.Equal(t, "0.0.77@1777593600.000000000", first.TransactionID())
			assert.Equal(t, "0.0.77@1777593600.000000001", second.TransactionID())

			sigs := first.Signatures()
			require.Len(t, sigs, 1)
			require.NoError(t, crypto.Verify(sigs[0].PublicKey, first.BodyBytes(), sigs[0].Bytes))
		})
	}
}

func TestAdapter_SubmitFailure(t *testing.T) {
	t.Parallel()

	priv, _, err := crypto.GenerateKey(ledger.KeyTypeED25519)
	require.NoError(t, err)

	client := txtest.NewClient("mainnet")
	client.ReturnOnSubmit(assert.AnError)

	a, err := New(ledger.Account{ID: ledger.NewID(1), PrivateKey: &priv}, client)
	require.NoError(t, err)

	_, err = a.SignAndSend(context.Background(), tx.NewBuilder().Delete(ledger.Token{ID: ledger.NewID(2)}), response.Receipt, nil)

	var respErr *stablecoin.TransactionResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "mainnet", respErr.Network)
	require.ErrorIs(t, err, assert.AnError)
}
