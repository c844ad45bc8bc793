//go:build unit

package custodial

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/circuitbreaker"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) RequestSignature(ctx context.Context, walletID string, message []byte) (string, error) {
	args := m.Called(ctx, walletID, message)
	return args.String(0), args.Error(1)
}

func (m *mockService) Signature(ctx context.Context, requestID string) (SignatureResult, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).(SignatureResult), args.Error(1)
}

// custody signs with a real key after a number of pending polls.
type custody struct {
	key     ledger.PrivateKey
	pending int

	mu      sync.Mutex
	message []byte
	polls   int
}

func (c *custody) RequestSignature(_ context.Context, _ string, message []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.message = message

	return "sig-1", nil
}

func (c *custody) Signature(context.Context, string) (SignatureResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.polls++
	if c.polls <= c.pending {
		return SignatureResult{Status: StatusPending}, nil
	}

	sig, err := crypto.Sign(c.key, c.message)
	if err != nil {
		return SignatureResult{}, err
	}

	return SignatureResult{Status: StatusCompleted, Signature: sig}, nil
}

func noSleep(attempts int) backoff.Policy {
	return backoff.Policy{
		MaxAttempts: attempts,
		Backoff:     backoff.Constant(time.Second),
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func newAccount(t *testing.T) (ledger.Account, ledger.PrivateKey) {
	t.Helper()

	priv, pub, err := crypto.GenerateKey(ledger.KeyTypeSECP256K1)
	require.NoError(t, err)

	return ledger.Account{ID: ledger.NewID(700), PublicKey: &pub}, priv
}

func pauseTx() *tx.Transaction {
	return tx.NewBuilder().Pause(ledger.Token{ID: ledger.NewID(55)})
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	account, _ := newAccount(t)
	client := txtest.NewClient("testnet")
	svc := &mockService{}

	tests := []struct {
		name     string
		account  ledger.Account
		walletID string
		service  SigningService
		client   tx.Client
	}{
		{"missing public key", ledger.Account{ID: ledger.NewID(1)}, "w", svc, client},
		{"missing wallet", account, "", svc, client},
		{"missing service", account, "w", nil, client},
		{"missing client", account, "w", svc, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.account, tt.walletID, tt.service, tt.client)

			var cfg *stablecoin.ConfigurationError
			require.ErrorAs(t, err, &cfg)
		})
	}
}

func TestAdapter_SignsAfterPendingPolls(t *testing.T) {
	t.Parallel()

	account, priv := newAccount(t)
	client := txtest.NewClient("testnet")
	svc := &custody{key: priv, pending: 2}

	a, err := New(account, "wallet-1", svc, client, WithPollPolicy(noSleep(3)))
	require.NoError(t, err)

	tr := pauseTx()
	res, err := a.SignAndSend(context.Background(), tr, response.Receipt, nil)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusSuccess, res.Status)
	assert.Equal(t, 3, svc.polls)

	require.Len(t, client.Submitted(), 1)

	sigs := tr.Signatures()
	require.Len(t, sigs, 1)
	require.NoError(t, crypto.Verify(*account.PublicKey, tr.BodyBytes(), sigs[0].Bytes))
}

func TestAdapter_PollExhausted(t *testing.T) {
	t.Parallel()

	account, priv := newAccount(t)
	client := txtest.NewClient("testnet")
	svc := &custody{key: priv, pending: 10}

	a, err := New(account, "wallet-1", svc, client, WithPollPolicy(noSleep(3)))
	require.NoError(t, err)

	_, err = a.SignAndSend(context.Background(), pauseTx(), response.Receipt, nil)
	require.ErrorIs(t, err, constant.ErrSignatureTimeout)

	var signing *stablecoin.SigningError
	require.ErrorAs(t, err, &signing)
	assert.Equal(t, "CUSTODIAL", signing.Wallet)
	assert.Equal(t, 3, svc.polls)
	assert.Empty(t, client.Submitted())
}

func TestAdapter_TotalTimeout(t *testing.T) {
	t.Parallel()

	account, priv := newAccount(t)
	svc := &custody{key: priv, pending: 100}

	a, err := New(account, "wallet-1", svc, txtest.NewClient("testnet"),
		WithPollPolicy(backoff.Fixed(100, 20*time.Millisecond)),
		WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = a.SignAndSend(context.Background(), pauseTx(), response.Receipt, nil)
	require.ErrorIs(t, err, constant.ErrSignatureTimeout)
}

func TestAdapter_Rejected(t *testing.T) {
	t.Parallel()

	account, _ := newAccount(t)
	svc := &mockService{}
	svc.On("RequestSignature", mock.Anything, "wallet-1", mock.Anything).Return("sig-9", nil).Once()
	svc.On("Signature", mock.Anything, "sig-9").Return(SignatureResult{Status: StatusRejected, Reason: "policy"}, nil).Once()

	a, err := New(account, "wallet-1", svc, txtest.NewClient("testnet"), WithPollPolicy(noSleep(3)))
	require.NoError(t, err)

	_, err = a.SignAndSend(context.Background(), pauseTx(), response.Receipt, nil)
	require.ErrorIs(t, err, constant.ErrSignatureRejected)
	assert.Contains(t, err.Error(), "policy")

	svc.AssertExpectations(t)
}

func TestAdapter_WrongKeyIsRejected(t *testing.T) {
	t.Parallel()

	account, _ := newAccount(t)
	other, _, err := crypto.GenerateKey(ledger.KeyTypeSECP256K1)
	require.NoError(t, err)

	client := txtest.NewClient("testnet")

	a, err := New(account, "wallet-1", &custody{key: other}, client, WithPollPolicy(noSleep(1)))
	require.NoError(t, err)

	_, err = a.SignAndSend(context.Background(), pauseTx(), response.Receipt, nil)

	var signing *stablecoin.SigningError
	require.ErrorAs(t, err, &signing)
	assert.Empty(t, client.Submitted())
}

func TestAdapter_BreakerOpens(t *testing.T) {
	t.Parallel()

	account, _ := newAccount(t)
	svc := &mockService{}
	svc.On("RequestSignature", mock.Anything, "wallet-1", mock.Anything).Return("", assert.AnError)

	breakers := circuitbreaker.NewManager(nil)

	a, err := New(account, "wallet-1", svc, txtest.NewClient("testnet"), WithBreakers(breakers), WithPollPolicy(noSleep(1)))
	require.NoError(t, err)

	for range 3 {
		_, err = a.SignAndSend(context.Background(), pauseTx(), response.Receipt, nil)
		require.ErrorIs(t, err, assert.AnError)
	}

	_, err = a.SignAndSend(context.Background(), pauseTx(), response.Receipt, nil)
	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, breakers.IsHealthy(BreakerName))
	svc.AssertNumberOfCalls(t, "RequestSignature", 3)
}

func TestHTTPService(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/wallets/wallet-1/signatures":
			var body signatureRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, hex.EncodeToString([]byte("body")), body.Message)

			_ = json.NewEncoder(w).Encode(signatureCreated{ID: "sig-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/signatures/sig-1":
			_ = json.NewEncoder(w).Encode(signatureStatus{Status: StatusCompleted, Signature: "0xabcd"})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	svc := NewHTTPService(srv.URL+"/", "secret", srv.Client())

	id, err := svc.RequestSignature(context.Background(), "wallet-1", []byte("body"))
	require.NoError(t, err)
	assert.Equal(t, "sig-1", id)

	res, err := svc.Signature(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []byte{0xab, 0xcd}, res.Signature)

	_, err = svc.Signature(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
