//go:build unit

package hold_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter/direct"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/hold"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx/txtest"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	tokenID   = ledger.MustParseID("0.0.7001")
	proxyID   = ledger.MustParseID("0.0.7000")
	accountID = ledger.MustParseID("0.0.1001")
	sourceID  = ledger.MustParseID("0.0.1002")
	targetID  = ledger.MustParseID("0.0.1003")

	now    = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	future = now.Add(30 * 24 * time.Hour)
	past   = now.Add(-30 * 24 * time.Hour)
)

func TestApply(t *testing.T) {
	t.Parallel()

	active := hold.State{Phase: hold.Active, Remaining: bigdecimal.MustParse("10.00")}

	tests := []struct {
		name          string
		state         hold.State
		event         hold.Event
		amount        string
		wantPhase     hold.Phase
		wantRemaining string
		wantErr       error
	}{
		{name: "partial execute stays active", state: active, event: hold.Execute, amount: "4", wantPhase: hold.Active, wantRemaining: "6"},
		{name: "full execute", state: active, event: hold.Execute, amount: "10", wantPhase: hold.Executed, wantRemaining: "0"},
		{name: "partial release stays active", state: active, event: hold.Release, amount: "0.5", wantPhase: hold.Active, wantRemaining: "9.5"},
		{name: "full release", state: active, event: hold.Release, amount: "10", wantPhase: hold.Released, wantRemaining: "0"},
		{name: "reclaim takes everything", state: active, event: hold.Reclaim, amount: "0", wantPhase: hold.Reclaimed, wantRemaining: "0"},
		{name: "over the held amount", state: active, event: hold.Execute, amount: "10.01", wantErr: constant.ErrOperationNotAllowed},
		{name: "zero amount", state: active, event: hold.Release, amount: "0", wantErr: constant.ErrOperationNotAllowed},
		{name: "executed is absorbing", state: hold.State{Phase: hold.Executed}, event: hold.Release, amount: "1", wantErr: constant.ErrOperationNotAllowed},
		{name: "released is absorbing", state: hold.State{Phase: hold.Released}, event: hold.Reclaim, amount: "0", wantErr: constant.ErrOperationNotAllowed},
		{name: "reclaimed is absorbing", state: hold.State{Phase: hold.Reclaimed}, event: hold.Execute, amount: "1", wantErr: constant.ErrOperationNotAllowed},
		{name: "reclaim of an emptied hold", state: hold.State{Phase: hold.Active, Remaining: bigdecimal.Zero(2)}, event: hold.Reclaim, amount: "0", wantErr: constant.ErrOperationNotAllowed},
		{name: "closed hold is not found", state: hold.State{Phase: hold.Closed}, event: hold.Execute, amount: "1", wantErr: constant.ErrHoldNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next, err := hold.Apply(tt.state, tt.event, bigdecimal.MustParse(tt.amount))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.state, next)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPhase, next.Phase)
			assert.True(t, bigdecimal.MustParse(tt.wantRemaining).Equal(next.Remaining), "remaining %s", next.Remaining)
		})
	}
}

func TestPhase_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, hold.Active.Terminal())

	for _, p := range []hold.Phase{hold.Executed, hold.Released, hold.Reclaimed, hold.Closed} {
		assert.True(t, p.Terminal(), p)
	}
}

type readerMock struct{ mock.Mock }

func (r *readerMock) Hold(_ context.Context, _ ledger.Token, source ledger.ID, id int64) (ledger.Hold, error) {
	args := r.Called(source, id)
	return args.Get(0).(ledger.Hold), args.Error(1)
}

func (r *readerMock) HoldIDs(_ context.Context, _ ledger.Token, source ledger.ID) ([]int64, error) {
	args := r.Called(source)
	return args.Get(0).([]int64), args.Error(1)
}

type stateStub map[ledger.ID]*ledger.Relationship

func (s stateStub) Relationship(_ context.Context, account, _ ledger.ID) (*ledger.Relationship, error) {
	return s[account], nil
}

func (s stateStub) Balance(_ context.Context, account, _ ledger.ID) (bigdecimal.BigDecimal, error) {
	if rel, ok := s[account]; ok {
		return rel.Balance, nil
	}

	return bigdecimal.Zero(2), nil
}

func associated(account ledger.ID, balance string) *ledger.Relationship {
	return &ledger.Relationship{
		TokenID:      tokenID,
		AccountID:    account,
		Balance:      bigdecimal.MustParse(balance),
		KycStatus:    ledger.KycGranted,
		FreezeStatus: ledger.Unfrozen,
	}
}

type fixture struct {
	client  *txtest.Client
	reader  *readerMock
	state   stateStub
	manager *hold.Manager
	caps    capability.TokenCapabilities
}

func newFixture(t *testing.T, rels ...*ledger.Relationship) *fixture {
	t.Helper()

	priv, pub, err := crypto.GenerateKey(ledger.KeyTypeED25519)
	require.NoError(t, err)

	client := txtest.NewClient("testnet")

	wallet, err := direct.New(ledger.Account{ID: accountID, PublicKey: &pub, PrivateKey: &priv}, client,
		direct.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	registry := adapter.NewRegistry()
	registry.Register(wallet)
	require.NoError(t, registry.Use(adapter.Direct))

	state := stateStub{}
	for _, r := range rels {
		state[r.AccountID] = r
	}

	policy := backoff.Fixed(1, time.Second)
	policy.Sleep = func(context.Context, time.Duration) error { return nil }

	reader := &readerMock{}
	validator := validation.NewValidator(state, nil, validation.WithRetryPolicy(policy))
	operator := adapter.NewOperator(registry, tx.NewBuilder())

	proxy := proxyID
	key := ledger.ContractKeyOf(proxy)
	token := ledger.Token{
		ID:           tokenID,
		Decimals:     2,
		ProxyAddress: &proxy,
		Treasury:     proxy,
		Keys:         ledger.TokenKeys{Supply: key, Wipe: key, Freeze: key, Kyc: key, Pause: key, Admin: key},
	}

	return &fixture{
		client:  client,
		reader:  reader,
		state:   state,
		manager: hold.NewManager(reader, validator, operator, hold.WithClock(func() time.Time { return now })),
		caps:    capability.Compute(token, wallet.Account()),
	}
}

func (f *fixture) held(id int64, amount string, target common.Address, expiration time.Time) {
	f.reader.On("Hold", sourceID, id).Return(ledger.Hold{
		ID:         id,
		Source:     sourceID,
		Amount:     bigdecimal.MustParse(amount),
		Escrow:     accountID.ToEVMAddress(),
		Target:     target,
		Expiration: expiration,
	}, nil)
}

func executeArgs(t *testing.T, call *tx.ContractCallBody) []any {
	t.Helper()

	parsed, err := tx.StableCoinABI()
	require.NoError(t, err)

	values, err := parsed.Methods[call.Function].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)

	return values
}

func TestManager_CreateChecksBalance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		balance string
		wantErr error
	}{
		{name: "balance below amount", balance: "5", wantErr: constant.ErrOperationNotAllowed},
		{name: "balance covers amount", balance: "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, associated(accountID, tt.balance))

			result, err := tx.PackOutputs("createHold", true, big.NewInt(42))
			require.NoError(t, err)
			f.client.SetResult("createHold", result)

			created, err := f.manager.Create(context.Background(), f.caps, hold.CreateRequest{
				Amount:     bigdecimal.MustParse("10"),
				Escrow:     accountID,
				Expiration: future,
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.client.Submitted())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(42), created.HoldID)
			require.Len(t, f.client.Submitted(), 1)
			assert.Equal(t, "createHold", f.client.Submitted()[0].Function())
		})
	}
}

func TestManager_CreateRejectsBeforeSubmitting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rel     *ledger.Relationship
		amount  string
		wantErr error
	}{
		{name: "too many decimals", rel: associated(accountID, "20"), amount: "1.001", wantErr: constant.ErrDecimalsOverRange},
		{
			name:    "frozen holder",
			rel:     &ledger.Relationship{TokenID: tokenID, AccountID: accountID, Balance: bigdecimal.MustParse("20"), FreezeStatus: ledger.Frozen},
			amount:  "1",
			wantErr: constant.ErrAccountFreeze,
		},
		{
			name:    "kyc revoked holder",
			rel:     &ledger.Relationship{TokenID: tokenID, AccountID: accountID, Balance: bigdecimal.MustParse("20"), KycStatus: ledger.KycRevoked},
			amount:  "1",
			wantErr: constant.ErrAccountNotKyc,
		},
		{
			name:    "frozen and kyc revoked holder fails on freeze",
			rel:     &ledger.Relationship{TokenID: tokenID, AccountID: accountID, Balance: bigdecimal.MustParse("20"), KycStatus: ledger.KycRevoked, FreezeStatus: ledger.Frozen},
			amount:  "1",
			wantErr: constant.ErrAccountFreeze,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.rel)

			_, err := f.manager.Create(context.Background(), f.caps, hold.CreateRequest{
				Amount:     bigdecimal.MustParse(tt.amount),
				Escrow:     accountID,
				Expiration: future,
			})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.client.Submitted())

			var violation *stablecoin.BusinessRuleViolation
			if errors.As(err, &violation) && !errors.Is(err, constant.ErrDecimalsOverRange) {
				assert.Equal(t, "account", violation.Field)
			}
		})
	}
}

func TestManager_CreateByControllerNamesSource(t *testing.T) {
	t.Parallel()

	frozen := &ledger.Relationship{
		TokenID:      tokenID,
		AccountID:    sourceID,
		Balance:      bigdecimal.MustParse("20"),
		KycStatus:    ledger.KycRevoked,
		FreezeStatus: ledger.Frozen,
	}
	f := newFixture(t, associated(accountID, "0"), frozen)

	_, err := f.manager.CreateByController(context.Background(), f.caps, sourceID, hold.CreateRequest{
		Amount:     bigdecimal.MustParse("1"),
		Escrow:     accountID,
		Expiration: future,
	}, nil)
	require.ErrorIs(t, err, constant.ErrAccountFreeze)

	var violation *stablecoin.BusinessRuleViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "sourceId", violation.Field)
	assert.Empty(t, f.client.Submitted())
}

func TestManager_CreateByControllerChecksSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, associated(accountID, "0"), associated(sourceID, "3"))

	_, err := f.manager.CreateByController(context.Background(), f.caps, sourceID, hold.CreateRequest{
		Amount:     bigdecimal.MustParse("4"),
		Escrow:     accountID,
		Target:     &targetID,
		Expiration: future,
	}, nil)
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)
	assert.Empty(t, f.client.Submitted())
}

func TestManager_Reclaim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		expiration time.Time
		wantErr    error
	}{
		{name: "before expiry", expiration: future, wantErr: constant.ErrHoldNotExpired},
		{name: "after expiry", expiration: past},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, associated(accountID, "0"))
			f.held(3, "10", common.Address{}, tt.expiration)

			_, err := f.manager.Reclaim(context.Background(), f.caps, sourceID, 3)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, constant.ErrOperationNotAllowed)
				assert.Empty(t, f.client.Submitted())

				return
			}

			require.NoError(t, err)
			require.Len(t, f.client.Submitted(), 1)
			assert.Equal(t, "reclaimHold", f.client.Submitted()[0].Function())
		})
	}
}

func TestManager_EmptiedHoldIsTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, associated(accountID, "0"), associated(sourceID, "0"))
	f.held(4, "0", common.Address{}, past)

	_, err := f.manager.Reclaim(context.Background(), f.caps, sourceID, 4)
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)

	_, err = f.manager.Release(context.Background(), f.caps, sourceID, 4, bigdecimal.MustParse("1"))
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)

	_, err = f.manager.Execute(context.Background(), f.caps, sourceID, 4, nil, bigdecimal.MustParse("1"))
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)

	assert.Empty(t, f.client.Submitted())
}

func TestManager_MissingHoldIsTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, associated(accountID, "0"), associated(sourceID, "0"))
	f.reader.On("Hold", sourceID, int64(9)).Return(ledger.Hold{}, constant.ErrNotFound)

	_, err := f.manager.Release(context.Background(), f.caps, sourceID, 9, bigdecimal.MustParse("1"))
	require.ErrorIs(t, err, constant.ErrHoldNotFound)

	_, err = f.manager.Reclaim(context.Background(), f.caps, sourceID, 9)
	require.ErrorIs(t, err, constant.ErrHoldNotFound)

	assert.Empty(t, f.client.Submitted())
}

func TestManager_ExecuteChecks(t *testing.T) {
	t.Parallel()

	other := ledger.MustParseID("0.0.1004")

	tests := []struct {
		name       string
		target     *ledger.ID
		holdTarget common.Address
		escrow     *common.Address
		expiration time.Time
		amount     string
		wantErr    error
		wantTo     common.Address
	}{
		{name: "hold destination is used", holdTarget: targetID.ToEVMAddress(), expiration: future, amount: "4", wantTo: targetID.ToEVMAddress()},
		{name: "open hold takes the request target", target: &targetID, expiration: future, amount: "10", wantTo: targetID.ToEVMAddress()},
		{name: "matching target", target: &targetID, holdTarget: targetID.ToEVMAddress(), expiration: future, amount: "1", wantTo: targetID.ToEVMAddress()},
		{name: "open hold without target", expiration: future, amount: "1", wantErr: constant.ErrHoldTargetMismatch},
		{name: "target mismatch", target: &other, holdTarget: targetID.ToEVMAddress(), expiration: future, amount: "1", wantErr: constant.ErrHoldTargetMismatch},
		{name: "expired", holdTarget: targetID.ToEVMAddress(), expiration: past, amount: "1", wantErr: constant.ErrHoldExpired},
		{name: "over the hold", holdTarget: targetID.ToEVMAddress(), expiration: future, amount: "11", wantErr: constant.ErrOperationNotAllowed},
		{name: "not the escrow", holdTarget: targetID.ToEVMAddress(), escrow: &common.Address{0x01}, expiration: future, amount: "1", wantErr: constant.ErrNotEscrow},
		{name: "decimals", holdTarget: targetID.ToEVMAddress(), expiration: future, amount: "0.001", wantErr: constant.ErrDecimalsOverRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, associated(sourceID, "0"), associated(targetID, "0"), associated(other, "0"))

			h := ledger.Hold{
				ID:         5,
				Source:     sourceID,
				Amount:     bigdecimal.MustParse("10"),
				Escrow:     accountID.ToEVMAddress(),
				Target:     tt.holdTarget,
				Expiration: tt.expiration,
			}
			if tt.escrow != nil {
				h.Escrow = *tt.escrow
			}

			f.reader.On("Hold", sourceID, int64(5)).Return(h, nil)

			_, err := f.manager.Execute(context.Background(), f.caps, sourceID, 5, tt.target, bigdecimal.MustParse(tt.amount))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.client.Submitted())

				return
			}

			require.NoError(t, err)
			require.Len(t, f.client.Submitted(), 1)

			args := executeArgs(t, f.client.Submitted()[0].Body.(*tx.ContractCallBody))
			assert.Equal(t, tt.wantTo, args[1].(common.Address))
		})
	}
}

func TestManager_ReleaseChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		acting     *ledger.Relationship
		escrow     *common.Address
		held       string
		expiration time.Time
		amount     string
		wantErr    error
		wantUnits  int64
	}{
		{name: "partial release", held: "10", expiration: future, amount: "4", wantUnits: 400},
		{name: "full release", held: "10", expiration: future, amount: "10", wantUnits: 1000},
		{name: "expired", held: "10", expiration: past, amount: "1", wantErr: constant.ErrHoldExpired},
		{name: "not the escrow", escrow: &common.Address{0x01}, held: "10", expiration: future, amount: "1", wantErr: constant.ErrNotEscrow},
		{name: "over the hold", held: "10", expiration: future, amount: "10.01", wantErr: constant.ErrOperationNotAllowed},
		{name: "decimals", held: "10", expiration: future, amount: "0.001", wantErr: constant.ErrDecimalsOverRange},
		{name: "emptied hold", held: "0", expiration: future, amount: "1", wantErr: constant.ErrOperationNotAllowed},
		{
			name:       "frozen acting account",
			acting:     &ledger.Relationship{TokenID: tokenID, AccountID: accountID, KycStatus: ledger.KycRevoked, FreezeStatus: ledger.Frozen},
			held:       "10",
			expiration: future,
			amount:     "1",
			wantErr:    constant.ErrAccountFreeze,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			acting := associated(accountID, "0")
			if tt.acting != nil {
				acting = tt.acting
			}

			f := newFixture(t, acting, associated(sourceID, "0"))

			h := ledger.Hold{
				ID:         6,
				Source:     sourceID,
				Amount:     bigdecimal.MustParse(tt.held),
				Escrow:     accountID.ToEVMAddress(),
				Expiration: tt.expiration,
			}
			if tt.escrow != nil {
				h.Escrow = *tt.escrow
			}

			f.reader.On("Hold", sourceID, int64(6)).Return(h, nil)

			_, err := f.manager.Release(context.Background(), f.caps, sourceID, 6, bigdecimal.MustParse(tt.amount))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.client.Submitted())

				return
			}

			require.NoError(t, err)
			require.Len(t, f.client.Submitted(), 1)
			assert.Equal(t, "releaseHold", f.client.Submitted()[0].Function())

			args := executeArgs(t, f.client.Submitted()[0].Body.(*tx.ContractCallBody))
			require.Len(t, args, 2)
			assert.Equal(t, tt.wantUnits, args[1].(*big.Int).Int64())
		})
	}
}

func TestManager_ExecuteRequiresAssociatedSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, associated(targetID, "0"))
	f.held(5, "10", targetID.ToEVMAddress(), future)

	_, err := f.manager.Execute(context.Background(), f.caps, sourceID, 5, nil, bigdecimal.MustParse("1"))
	require.ErrorIs(t, err, constant.ErrStableCoinNotAssociated)

	f.reader.AssertNotCalled(t, "Hold", sourceID, int64(5))
}

func TestManager_RequiresCapability(t *testing.T) {
	t.Parallel()

	f := newFixture(t, associated(accountID, "20"))
	f.caps.Capabilities = nil

	_, err := f.manager.Create(context.Background(), f.caps, hold.CreateRequest{Amount: bigdecimal.MustParse("1"), Escrow: accountID, Expiration: future})
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)

	_, err = f.manager.Release(context.Background(), f.caps, sourceID, 1, bigdecimal.MustParse("1"))
	require.ErrorIs(t, err, constant.ErrOperationNotAllowed)

	f.reader.AssertNotCalled(t, "Hold", mock.Anything, mock.Anything)
}
