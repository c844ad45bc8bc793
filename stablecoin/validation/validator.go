package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/errgroup"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
)

// StateReader reads account state for a token.
type StateReader interface {
	// Relationship returns nil when account is not associated to token.
	Relationship(ctx context.Context, account, token ledger.ID) (*ledger.Relationship, error)
	Balance(ctx context.Context, account, token ledger.ID) (bigdecimal.BigDecimal, error)
}

// DefaultConcurrency bounds ForEach.
const DefaultConcurrency = 8

var errNotYetVisible = errors.New("relationship not yet visible")

// Validator runs pre-flight checks against a StateReader.
type Validator struct {
	reader      StateReader
	policy      backoff.Policy
	logger      log.Logger
	concurrency int
}

// Option configures a Validator.
type Option func(*Validator)

// WithRetryPolicy overrides the relationship lookup policy.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(v *Validator) { v.policy = p }
}

// WithConcurrency bounds the per-target checks of ForEach.
func WithConcurrency(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// NewValidator returns a Validator reading through reader.
func NewValidator(reader StateReader, logger log.Logger, opts ...Option) *Validator {
	v := &Validator{
		reader:      reader,
		policy:      backoff.Fixed(constant.RelationshipRetryAttempts, constant.RelationshipRetryInterval),
		logger:      log.OrNop(logger),
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Reader exposes the underlying StateReader.
func (v *Validator) Reader() StateReader { return v.reader }

// Relationship looks up the relationship, retrying while it is not yet
// visible. Once the policy is exhausted a missing relationship is returned
// as nil, meaning not associated.
func (v *Validator) Relationship(ctx context.Context, account, token ledger.ID) (*ledger.Relationship, error) {
	rel, err := backoff.Retry(ctx, v.policy, func(ctx context.Context, attempt int) (*ledger.Relationship, error) {
		rel, err := v.reader.Relationship(ctx, account, token)
		if err != nil {
			return nil, err
		}

		if rel == nil {
			v.logger.Log(ctx, log.LevelDebug, "relationship not visible yet",
				log.String("account_id", account.String()), log.Int("attempt", attempt))

			return nil, errNotYetVisible
		}

		return rel, nil
	})

	if err == nil {
		return rel, nil
	}

	if errors.Is(err, errNotYetVisible) {
		return nil, nil
	}

	return nil, fmt.Errorf("reading relationship of %s for %s: %w", account, token, err)
}

// Account runs the association, freeze and KYC checks for account and
// returns its relationship.
func (v *Validator) Account(ctx context.Context, token, account ledger.ID, field string) (*ledger.Relationship, error) {
	var rel *ledger.Relationship

	err := NewPipeline("account", v.logger).
		Add("association", func(ctx context.Context) error {
			var err error
			if rel, err = v.Relationship(ctx, account, token); err != nil {
				return err
			}

			return Associated(rel, field, account, token)
		}).
		Add("freeze", func(context.Context) error { return NotFrozen(rel, field) }).
		Add("kyc", func(context.Context) error { return KycNotRevoked(rel, field) }).
		Run(ctx)
	if err != nil {
		return nil, err
	}

	return rel, nil
}

// ForEach runs check for every index in [0, n) concurrently and aggregates
// the failures in index order.
func (v *Validator) ForEach(ctx context.Context, n int, check func(ctx context.Context, i int) error) error {
	return ForEach(ctx, v.logger, v.concurrency, n, check)
}

// ForEach runs check for every index in [0, n) with at most limit running
// at once. Panics become errors. Every failure is kept and returned as a
// *stablecoin.AggregateError ordered by index.
func ForEach(ctx context.Context, logger log.Logger, limit, n int, check func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	errs := errgroup.NewCollector(logger, limit).Run(ctx, n, check)

	return stablecoin.NewAggregateError(errs)
}
