//go:build unit

package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bus"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	tokenID   = ledger.MustParseID("0.0.7001")
	proxyID   = ledger.MustParseID("0.0.7000")
	nativeID  = ledger.MustParseID("0.0.7002")
	accountID = ledger.MustParseID("0.0.1001")
)

type tokens map[ledger.ID]ledger.Token

func (s tokens) Token(_ context.Context, id ledger.ID) (ledger.Token, error) {
	t, ok := s[id]
	if !ok {
		return ledger.Token{}, constant.ErrNotFound
	}

	return t, nil
}

type stateMock struct{ mock.Mock }

func (m *stateMock) Relationship(_ context.Context, account, token ledger.ID) (*ledger.Relationship, error) {
	args := m.Called(account, token)
	rel, _ := args.Get(0).(*ledger.Relationship)

	return rel, args.Error(1)
}

func (m *stateMock) Balance(_ context.Context, account, token ledger.ID) (bigdecimal.BigDecimal, error) {
	args := m.Called(account, token)
	return args.Get(0).(bigdecimal.BigDecimal), args.Error(1)
}

type holdsMock struct{ mock.Mock }

func (m *holdsMock) Hold(_ context.Context, token ledger.Token, source ledger.ID, id int64) (ledger.Hold, error) {
	args := m.Called(token.ID, source, id)
	return args.Get(0).(ledger.Hold), args.Error(1)
}

func (m *holdsMock) HoldIDs(_ context.Context, token ledger.Token, source ledger.ID) ([]int64, error) {
	args := m.Called(token.ID, source)
	return args.Get(0).([]int64), args.Error(1)
}

func newHandler(t *testing.T) (*query.Handler, *stateMock, *holdsMock) {
	t.Helper()

	proxy := proxyID
	key := ledger.ContractKeyOf(proxy)
	reader := tokens{
		tokenID:  {ID: tokenID, Decimals: 2, ProxyAddress: &proxy, Treasury: proxy, Keys: ledger.TokenKeys{Supply: key, Wipe: key}},
		nativeID: {ID: nativeID, Decimals: 2, Treasury: accountID},
	}

	state := &stateMock{}
	holds := &holdsMock{}

	h, err := query.NewHandler(query.Deps{
		Resolver: capability.NewResolver(reader, nil),
		Tokens:   reader,
		State:    state,
		Holds:    holds,
	})
	require.NoError(t, err)

	return h, state, holds
}

func TestNewHandler_RequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := query.NewHandler(query.Deps{Resolver: capability.NewResolver(tokens{}, nil)})

	var cfgErr *stablecoin.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "Tokens")
}

func TestGetCapabilities(t *testing.T) {
	t.Parallel()

	h, _, _ := newHandler(t)

	tc, err := h.GetCapabilities(context.Background(), query.GetCapabilities{Account: ledger.Account{ID: accountID}, TokenID: tokenID})
	require.NoError(t, err)

	access, ok := tc.Access(capability.CashIn)
	require.True(t, ok)
	assert.Equal(t, capability.Contract, access)
	assert.True(t, tc.Has(capability.CreateHold))

	_, err = h.GetCapabilities(context.Background(), query.GetCapabilities{Account: ledger.Account{ID: accountID}, TokenID: ledger.MustParseID("0.0.9999")})
	require.ErrorIs(t, err, constant.ErrNotFound)

	_, err = h.GetCapabilities(context.Background(), query.GetCapabilities{TokenID: tokenID})
	require.ErrorIs(t, err, constant.ErrInvalidRequest)
}

func TestGetBalanceAndRelationship(t *testing.T) {
	t.Parallel()

	h, state, _ := newHandler(t)

	rel := &ledger.Relationship{TokenID: tokenID, AccountID: accountID, Balance: bigdecimal.MustParse("12.5"), KycStatus: ledger.KycGranted}
	other := ledger.MustParseID("0.0.1002")
	failing := ledger.MustParseID("0.0.1003")
	boom := errors.New("mirror down")

	state.On("Balance", accountID, tokenID).Return(bigdecimal.MustParse("12.5"), nil)
	state.On("Relationship", accountID, tokenID).Return(rel, nil)
	state.On("Relationship", other, tokenID).Return(nil, nil)
	state.On("Relationship", failing, tokenID).Return(nil, boom)

	balance, err := h.GetBalance(context.Background(), query.GetBalance{TokenID: tokenID, AccountID: accountID})
	require.NoError(t, err)
	assert.Equal(t, "12.5", balance.String())

	got, err := h.GetRelationship(context.Background(), query.GetRelationship{TokenID: tokenID, AccountID: accountID})
	require.NoError(t, err)
	assert.Equal(t, rel, got)

	got, err = h.GetRelationship(context.Background(), query.GetRelationship{TokenID: tokenID, AccountID: other})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = h.GetRelationship(context.Background(), query.GetRelationship{TokenID: tokenID, AccountID: failing})
	require.ErrorIs(t, err, boom)

	_, err = h.GetBalance(context.Background(), query.GetBalance{TokenID: tokenID})
	require.ErrorIs(t, err, constant.ErrInvalidRequest)

	state.AssertExpectations(t)
}

func TestHolds(t *testing.T) {
	t.Parallel()

	h, _, holds := newHandler(t)

	want := ledger.Hold{ID: 3, Source: accountID, Amount: bigdecimal.MustParse("4")}
	holds.On("Hold", tokenID, accountID, int64(3)).Return(want, nil)
	holds.On("Hold", tokenID, accountID, int64(4)).Return(ledger.Hold{}, constant.ErrNotFound)
	holds.On("HoldIDs", tokenID, accountID).Return([]int64{1, 3}, nil)

	got, err := h.GetHold(context.Background(), query.GetHold{TokenID: tokenID, SourceID: accountID, HoldID: 3})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = h.GetHold(context.Background(), query.GetHold{TokenID: tokenID, SourceID: accountID, HoldID: 4})
	require.ErrorIs(t, err, constant.ErrNotFound)

	ids, err := h.GetHoldsFor(context.Background(), query.GetHoldsFor{TokenID: tokenID, SourceID: accountID})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	_, err = h.GetHoldsFor(context.Background(), query.GetHoldsFor{TokenID: nativeID, SourceID: accountID})

	var vErr *stablecoin.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "proxy", vErr.Fields[0].Rule)

	_, err = h.GetHold(context.Background(), query.GetHold{TokenID: tokenID, SourceID: accountID, HoldID: -2})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "holdId", vErr.Fields[0].Field)

	holds.AssertNumberOfCalls(t, "HoldIDs", 1)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	h, state, _ := newHandler(t)
	state.On("Balance", accountID, tokenID).Return(bigdecimal.MustParse("1"), nil)

	b := bus.NewQueryBus()
	require.NoError(t, query.Register(b, h))
	b.Seal()

	balance, err := bus.Execute[bigdecimal.BigDecimal](context.Background(), b, query.GetBalance{TokenID: tokenID, AccountID: accountID})
	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())

	ids, err := bus.Execute[[]int64](context.Background(), b, query.GetHoldsFor{TokenID: nativeID, SourceID: accountID})
	require.ErrorIs(t, err, constant.ErrInvalidRequest)
	assert.Nil(t, ids)
}
