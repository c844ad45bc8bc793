//go:build unit

package adapter

import (
	"context"
	"sync"
	"testing"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	kind WalletKind
	tag  string
}

func (s *stubAdapter) Kind() WalletKind        { return s.kind }
func (s *stubAdapter) Account() ledger.Account { return ledger.Account{} }
func (s *stubAdapter) SignAndSend(context.Context, *tx.Transaction, response.Kind, *response.DecodeSpec) (response.TransactionResponse, error) {
	return response.TransactionResponse{TransactionID: s.tag}, nil
}

func TestParseWalletKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    WalletKind
		wantErr bool
	}{
		{in: "direct", want: Direct},
		{in: " Relay ", want: Relay},
		{in: "CUSTODIAL", want: Custodial},
		{in: "multisig", want: Multisig},
		{in: "extension", want: Extension},
		{in: "ledger", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseWalletKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalletKind_Traits(t *testing.T) {
	t.Parallel()

	assert.False(t, Direct.Interactive())
	assert.True(t, Extension.Interactive())
	assert.True(t, Direct.Submits())
	assert.False(t, Multisig.Submits())
}

func TestRegistry_ActiveRequiresSelection(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	_, err := r.Active()
	require.ErrorIs(t, err, constant.ErrNoActiveWallet)

	var cfgErr *stablecoin.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	err = r.Use(Relay)
	require.ErrorIs(t, err, constant.ErrWalletNotRegistered)
}

func TestRegistry_UseAndReplace(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&stubAdapter{kind: Direct, tag: "first"})
	r.Register(&stubAdapter{kind: Custodial, tag: "custodial"})

	require.NoError(t, r.Use(Direct))

	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, "first", active.(*stubAdapter).tag)

	r.Register(&stubAdapter{kind: Direct, tag: "second"})

	active, err = r.Active()
	require.NoError(t, err)
	assert.Equal(t, "second", active.(*stubAdapter).tag)

	assert.Equal(t, []WalletKind{Custodial, Direct}, r.Kinds())

	r.Unregister(Direct)

	_, err = r.Active()
	require.ErrorIs(t, err, constant.ErrNoActiveWallet)

	_, ok := r.Get(Custodial)
	assert.True(t, ok)
}

func TestRegistry_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	kinds := []WalletKind{Direct, Extension, Relay, Custodial, Multisig}

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			r.Register(&stubAdapter{kind: kinds[i%len(kinds)]})
		}()
	}

	wg.Wait()

	assert.Len(t, r.Kinds(), len(kinds))
}
