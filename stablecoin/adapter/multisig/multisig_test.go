//go:build unit

package multisig

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	backend "github.com/LerianStudio/lib-stablecoin/stablecoin/multisig"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, in backend.CreateInput) (backend.Transaction, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(backend.Transaction), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (backend.Transaction, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(backend.Transaction), args.Error(1)
}

type holder struct {
	priv ledger.PrivateKey
	pub  ledger.PublicKey
}

func newHolders(t *testing.T, n int) []holder {
	t.Helper()

	out := make([]holder, n)
	for i := range out {
		priv, pub, err := crypto.GenerateKey(ledger.KeyTypeED25519)
		require.NoError(t, err)

		out[i] = holder{priv: priv, pub: pub}
	}

	return out
}

func multiKeyAccount(holders []holder, threshold int) ledger.Account {
	keys := make([]ledger.PublicKey, len(holders))
	for i, h := range holders {
		keys[i] = h.pub
	}

	return ledger.Account{ID: ledger.NewID(4242), MultiKey: &ledger.MultiKey{Keys: keys, Threshold: threshold}}
}

var start = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(ledger.Account{ID: ledger.NewID(1)}, "testnet", &mockStore{})

	var cfgErr *stablecoin.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, errMissingKeyList)

	_, err = New(multiKeyAccount(newHolders(t, 1), 1), "testnet", nil)
	require.ErrorIs(t, err, errMissingStore)
}

func TestAdapter_ParksAndAutoSubmits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	holders := newHolders(t, 3)

	repo := backend.NewMemoryRepository()
	svc := backend.NewService(repo, nil)

	a, err := New(multiKeyAccount(holders, 2), "testnet", svc, WithClock(func() time.Time { return start }))
	require.NoError(t, err)
	assert.Equal(t, adapter.Multisig, a.Kind())
	assert.Equal(t, "testnet", adapter.NetworkOf(a))

	pause := tx.NewBuilder().Pause(ledger.Token{ID: ledger.NewID(900)})

	res, err := a.SignAndSend(ctx, pause, response.Receipt, nil)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusPending, res.Status)
	assert.Equal(t, "0.0.4242@1777636800.000000000", res.TransactionID)
	require.NotEmpty(t, res.Reference)

	stored, err := svc.Get(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Threshold)
	assert.Len(t, stored.KeyList, 3)
	assert.Equal(t, "pause", stored.Description)
	assert.Equal(t, hex.EncodeToString(pause.BodyBytes()), stored.Message)
	assert.True(t, stored.StartDate.Equal(start))

	for _, h := range holders[:2] {
		sig, err := crypto.Sign(h.priv, pause.BodyBytes())
		require.NoError(t, err)

		_, err = svc.Sign(ctx, res.Reference, backend.SignInput{PublicKey: h.pub.Key, Signature: hex.EncodeToString(sig)})
		require.NoError(t, err)
	}

	client := txtest.NewClient("testnet")
	submitter := backend.NewAutoSubmitter(repo,
		func(string) (tx.Client, error) { return client, nil },
		backend.WithAutoSubmitClock(func() time.Time { return start.Add(time.Second) }))

	report, err := submitter.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)

	submitted := client.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, res.TransactionID, submitted[0].TransactionID())
	assert.Len(t, submitted[0].Signatures(), 2)
}

func TestAdapter_DistinctIDsForBackToBackTransactions(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything).Return(backend.Transaction{ID: "ref"}, nil)

	a, err := New(multiKeyAccount(newHolders(t, 2), 1), "testnet", store,
		WithClock(func() time.Time { return start }), WithStartDelay(time.Minute))
	require.NoError(t, err)

	builder := tx.NewBuilder()
	token := ledger.Token{ID: ledger.NewID(900)}

	first, err := a.SignAndSend(context.Background(), builder.Pause(token), response.Receipt, nil)
	require.NoError(t, err)

	second, err := a.SignAndSend(context.Background(), builder.Unpause(token), response.Receipt, nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.4242@1777636860.000000000", first.TransactionID)
	assert.Equal(t, "0.0.4242@1777636860.000000001", second.TransactionID)
	store.AssertNumberOfCalls(t, "Create", 2)
}

func TestAdapter_StoreFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything).Return(backend.Transaction{}, errors.New("backend down"))

	a, err := New(multiKeyAccount(newHolders(t, 2), 2), "testnet", store)
	require.NoError(t, err)

	_, err = a.SignAndSend(context.Background(), tx.NewBuilder().Pause(ledger.Token{ID: ledger.NewID(1)}), response.Receipt, nil)

	var signing *stablecoin.SigningError
	require.ErrorAs(t, err, &signing)
	assert.Equal(t, "MULTISIG", signing.Wallet)
}
