//go:build unit

package validation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token   = ledger.MustParseID("0.0.5001")
	alice   = ledger.MustParseID("0.0.1001")
	bob     = ledger.MustParseID("0.0.1002")
	charlie = ledger.MustParseID("0.0.1003")
)

// stateStub serves relationships from a map and counts lookups. Entries in
// visibleAfter become visible once that many lookups were made for them.
type stateStub struct {
	rels         map[ledger.ID]*ledger.Relationship
	visibleAfter map[ledger.ID]int
	err          error
	calls        atomic.Int64
	perAccount   map[ledger.ID]*atomic.Int64
}

func newStateStub(rels ...*ledger.Relationship) *stateStub {
	s := &stateStub{
		rels:         map[ledger.ID]*ledger.Relationship{},
		visibleAfter: map[ledger.ID]int{},
		perAccount:   map[ledger.ID]*atomic.Int64{},
	}

	for _, r := range rels {
		s.rels[r.AccountID] = r
		s.perAccount[r.AccountID] = &atomic.Int64{}
	}

	return s
}

func (s *stateStub) Relationship(_ context.Context, account, _ ledger.ID) (*ledger.Relationship, error) {
	s.calls.Add(1)

	if s.err != nil {
		return nil, s.err
	}

	rel, ok := s.rels[account]
	if !ok {
		return nil, nil
	}

	n := s.perAccount[account].Add(1)
	if after, delayed := s.visibleAfter[account]; delayed && int(n) < after {
		return nil, nil
	}

	return rel, nil
}

func (s *stateStub) Balance(_ context.Context, account, _ ledger.ID) (bigdecimal.BigDecimal, error) {
	if rel, ok := s.rels[account]; ok {
		return rel.Balance, nil
	}

	return bigdecimal.Zero(0), nil
}

func rel(account ledger.ID, balance string, kyc ledger.KycStatus, freeze ledger.FreezeStatus) *ledger.Relationship {
	return &ledger.Relationship{
		TokenID:      token,
		AccountID:    account,
		Balance:      bigdecimal.MustParse(balance),
		KycStatus:    kyc,
		FreezeStatus: freeze,
	}
}

func noWait() backoff.Policy {
	p := backoff.Fixed(constant.RelationshipRetryAttempts, time.Second)
	p.Sleep = func(context.Context, time.Duration) error { return nil }

	return p
}

func TestFields(t *testing.T) {
	t.Parallel()

	err := Fields("CashIn",
		On("tokenId", "0.0.5001", AccountID),
		On("targetId", "not-an-id", AccountID),
		On("amount", bigdecimal.MustParse("0"), Positive),
		On("memo", "", Required),
	)

	var verr *stablecoin.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, constant.ErrInvalidRequest)
	assert.Equal(t, "CashIn", verr.Request)
	require.Len(t, verr.Fields, 3)
	assert.Equal(t, "targetId", verr.Fields[0].Field)
	assert.Equal(t, "amount", verr.Fields[1].Field)
	assert.Equal(t, "positive", verr.Fields[1].Rule)
	assert.Equal(t, "memo", verr.Fields[2].Field)
}

func TestFields_AllValid(t *testing.T) {
	t.Parallel()

	err := Fields("Transfers",
		On("tokenId", token, ID),
		On("amounts", 2, Max(10)),
		On("amount", bigdecimal.MustParse("1.5"), Positive, NotNegative),
	)

	assert.NoError(t, err)
}

func TestPipeline_ShortCircuits(t *testing.T) {
	t.Parallel()

	var ran []string

	step := func(name string, err error) CheckFunc {
		return func(context.Context) error {
			ran = append(ran, name)
			return err
		}
	}

	frozen := stablecoin.NewBusinessRuleViolation(constant.ErrAccountFreeze, "targetId", "frozen")

	p := NewPipeline("cash_in", log.NewNop()).
		Add("association", step("association", nil)).
		Add("freeze", step("freeze", frozen)).
		Add("kyc", step("kyc", nil))

	err := p.Run(context.Background())

	assert.ErrorIs(t, err, constant.ErrAccountFreeze)
	assert.Equal(t, []string{"association", "freeze"}, ran)
	assert.Equal(t, []string{"association", "freeze", "kyc"}, p.Steps())
}

func TestChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not associated", Associated(nil, "targetId", alice, token), constant.ErrStableCoinNotAssociated},
		{"associated", Associated(rel(alice, "1", ledger.KycGranted, ledger.Unfrozen), "targetId", alice, token), nil},
		{"frozen", NotFrozen(rel(alice, "1", ledger.KycGranted, ledger.Frozen), "targetId"), constant.ErrAccountFreeze},
		{"freeze not applicable", NotFrozen(rel(alice, "1", ledger.KycGranted, ledger.FreezeNotApplicable), "targetId"), nil},
		{"kyc revoked", KycNotRevoked(rel(alice, "1", ledger.KycRevoked, ledger.Unfrozen), "targetId"), constant.ErrAccountNotKyc},
		{"kyc not applicable", KycNotRevoked(rel(alice, "1", ledger.KycNotApplicable, ledger.Unfrozen), "targetId"), nil},
		{"too many decimals", Decimals(bigdecimal.MustParse("1.001"), 2, "amount"), constant.ErrDecimalsOverRange},
		{"decimals in range", Decimals(bigdecimal.MustParse("1.01"), 2, "amount"), nil},
		{"over balance", Sufficient(bigdecimal.MustParse("20"), bigdecimal.MustParse("5"), "amount"), constant.ErrOperationNotAllowed},
		{"equal balance", Sufficient(bigdecimal.MustParse("5.00"), bigdecimal.MustParse("5"), "amount"), nil},
		{"too many fees", MaxCustomFees(11, "fees"), constant.ErrMaxCustomFeesExceeded},
		{"fee limit", MaxCustomFees(10, "fees"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.want == nil {
				assert.NoError(t, tt.err)
				return
			}

			assert.ErrorIs(t, tt.err, tt.want)
		})
	}
}

func TestWithinMaxSupply(t *testing.T) {
	t.Parallel()

	finite := ledger.Token{TotalSupply: bigdecimal.MustParse("90"), MaxSupply: bigdecimal.MustParse("100")}

	assert.NoError(t, WithinMaxSupply(finite, bigdecimal.MustParse("10"), "amount"))
	assert.ErrorIs(t, WithinMaxSupply(finite, bigdecimal.MustParse("10.01"), "amount"), constant.ErrMaxSupplyExceeded)

	finite.InfiniteSupply = true
	assert.NoError(t, WithinMaxSupply(finite, bigdecimal.MustParse("1000"), "amount"))
}

func TestValidator_RelationshipRetriesUntilVisible(t *testing.T) {
	t.Parallel()

	state := newStateStub(rel(alice, "10", ledger.KycGranted, ledger.Unfrozen))
	state.visibleAfter[alice] = 3

	v := NewValidator(state, log.NewNop(), WithRetryPolicy(noWait()))

	got, err := v.Relationship(context.Background(), alice, token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), state.calls.Load())
}

func TestValidator_RelationshipExhaustedMeansNotAssociated(t *testing.T) {
	t.Parallel()

	state := newStateStub()
	v := NewValidator(state, log.NewNop(), WithRetryPolicy(noWait()))

	got, err := v.Relationship(context.Background(), bob, token)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(constant.RelationshipRetryAttempts), state.calls.Load())
}

func TestValidator_RelationshipReaderError(t *testing.T) {
	t.Parallel()

	state := newStateStub()
	state.err = errors.New("mirror down")

	v := NewValidator(state, log.NewNop(), WithRetryPolicy(noWait()))

	_, err := v.Relationship(context.Background(), bob, token)
	require.Error(t, err)
	assert.ErrorIs(t, err, state.err)
}

func TestValidator_Account(t *testing.T) {
	t.Parallel()

	state := newStateStub(
		rel(alice, "10", ledger.KycGranted, ledger.Unfrozen),
		rel(bob, "10", ledger.KycGranted, ledger.Frozen),
		rel(charlie, "10", ledger.KycRevoked, ledger.Unfrozen),
	)
	v := NewValidator(state, log.NewNop(), WithRetryPolicy(noWait()))
	ctx := context.Background()

	got, err := v.Account(ctx, token, alice, "targetId")
	require.NoError(t, err)
	assert.Equal(t, alice, got.AccountID)

	_, err = v.Account(ctx, token, bob, "targetId")
	assert.ErrorIs(t, err, constant.ErrAccountFreeze)

	_, err = v.Account(ctx, token, charlie, "targetId")
	assert.ErrorIs(t, err, constant.ErrAccountNotKyc)

	_, err = v.Account(ctx, token, ledger.MustParseID("0.0.9999"), "targetId")
	assert.ErrorIs(t, err, constant.ErrStableCoinNotAssociated)
}

func TestValidator_ForEachAggregatesInOrder(t *testing.T) {
	t.Parallel()

	missing := ledger.MustParseID("0.0.9999")
	targets := []ledger.ID{alice, missing, bob}

	state := newStateStub(
		rel(alice, "10", ledger.KycGranted, ledger.Unfrozen),
		rel(bob, "10", ledger.KycGranted, ledger.Unfrozen),
	)
	v := NewValidator(state, log.NewNop(), WithRetryPolicy(noWait()), WithConcurrency(2))

	err := v.ForEach(context.Background(), len(targets), func(ctx context.Context, i int) error {
		_, err := v.Account(ctx, token, targets[i], "targetIds")
		return err
	})

	var agg *stablecoin.AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errs, 1)
	assert.ErrorIs(t, agg.Errs[0], constant.ErrStableCoinNotAssociated)
}

func TestForEach_RecoversPanics(t *testing.T) {
	t.Parallel()

	err := ForEach(context.Background(), log.NewNop(), 0, 3, func(_ context.Context, i int) error {
		if i == 1 {
			panic("boom")
		}

		if i == 2 {
			return stablecoin.NewBusinessRuleViolation(constant.ErrAccountFreeze, "targetIds", "frozen")
		}

		return nil
	})

	var agg *stablecoin.AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errs, 2)
	assert.ErrorIs(t, agg.Errs[1], constant.ErrAccountFreeze)
	assert.NoError(t, ForEach(context.Background(), nil, 0, 0, nil))
}
