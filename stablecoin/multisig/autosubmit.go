package multisig

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/errgroup"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	libRedis "github.com/LerianStudio/lib-stablecoin/stablecoin/redis"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultSchedule runs the auto-submit job twice a minute.
const DefaultSchedule = "@every 30s"

const scanPageSize = 100

// ClientFor returns the ledger client for a network.
type ClientFor func(network string) (tx.Client, error)

// Report counts what one pass did.
type Report struct {
	Submitted int
	Failed    int
	Expired   int
	Skipped   int
}

// AutoSubmitter submits SIGNED transactions inside their validity window and
// expires the ones that missed it.
type AutoSubmitter struct {
	repo        Repository
	clients     ClientFor
	locks       libRedis.LockManager
	logger      log.Logger
	window      time.Duration
	concurrency int
	now         func() time.Time
}

// AutoSubmitOption configures an AutoSubmitter.
type AutoSubmitOption func(*AutoSubmitter)

// WithLocks takes a distributed lock per transaction so that only one
// replica submits it.
func WithLocks(l libRedis.LockManager) AutoSubmitOption {
	return func(a *AutoSubmitter) { a.locks = l }
}

// WithConcurrency bounds parallel submissions.
func WithConcurrency(n int) AutoSubmitOption {
	return func(a *AutoSubmitter) { a.concurrency = n }
}

// WithAutoSubmitLogger sets the logger.
func WithAutoSubmitLogger(l log.Logger) AutoSubmitOption {
	return func(a *AutoSubmitter) { a.logger = log.OrNop(l) }
}

// WithAutoSubmitClock replaces time.Now.
func WithAutoSubmitClock(now func() time.Time) AutoSubmitOption {
	return func(a *AutoSubmitter) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAutoSubmitter returns an AutoSubmitter over repo.
func NewAutoSubmitter(repo Repository, clients ClientFor, opts ...AutoSubmitOption) *AutoSubmitter {
	a := &AutoSubmitter{
		repo:        repo,
		clients:     clients,
		logger:      log.NewNop(),
		window:      constant.TransactionValidDuration,
		concurrency: 4,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Run performs one pass. It matches cron.Job.
func (a *AutoSubmitter) Run(ctx context.Context) error {
	_, err := a.RunOnce(ctx)
	return err
}

// RunOnce performs one pass and reports what it did.
func (a *AutoSubmitter) RunOnce(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer(constant.TelemetrySDKName).Start(ctx, "multisig.auto_submit")
	defer span.End()

	now := a.now().UTC()
	cutoff := now.Add(-a.window)

	var toSubmit, toExpire []Transaction

	for page := 1; ; page++ {
		items, total, err := a.repo.List(ctx, Filter{Page: page, Limit: scanPageSize})
		if err != nil {
			return Report{}, fmt.Errorf("scan transactions: %w", err)
		}

		for _, t := range items {
			switch {
			case t.Status == StatusSigned && !t.StartDate.After(now) && t.StartDate.After(cutoff):
				toSubmit = append(toSubmit, t)
			case t.Status != StatusExpired && t.Status != StatusError && !t.StartDate.After(cutoff):
				toExpire = append(toExpire, t)
			}
		}

		if page*scanPageSize >= total || len(items) == 0 {
			break
		}
	}

	a.logger.Log(ctx, log.LevelInfo, "auto submit pass",
		log.Int("to_submit", len(toSubmit)), log.Int("to_expire", len(toExpire)))

	var report Report

	for _, t := range toExpire {
		if err := a.repo.UpdateStatus(ctx, t.ID, StatusExpired); err != nil && !errors.Is(err, constant.ErrNotFound) {
			a.logger.Log(ctx, log.LevelWarn, "failed to expire transaction", log.String("id", t.ID), log.Err(err))
			continue
		}

		report.Expired++
	}

	outcomes := make([]outcome, len(toSubmit))

	errs := errgroup.NewCollector(a.logger, a.concurrency).Run(ctx, len(toSubmit), func(ctx context.Context, i int) error {
		o, err := a.submitLocked(ctx, toSubmit[i])
		outcomes[i] = o

		return err
	})

	for i, o := range outcomes {
		switch {
		case errs[i] != nil:
			report.Failed++
		case o == outcomeSubmitted:
			report.Submitted++
		case o == outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("multisig.submitted", report.Submitted),
		attribute.Int("multisig.failed", report.Failed),
		attribute.Int("multisig.expired", report.Expired),
	)

	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSubmitted
	outcomeFailed
)

func (a *AutoSubmitter) submitLocked(ctx context.Context, t Transaction) (outcome, error) {
	if a.locks == nil {
		return a.submit(ctx, t.ID)
	}

	handle, ok, err := a.locks.TryLock(ctx, "multisig:submit:"+t.ID)
	if err != nil {
		return outcomeSkipped, err
	}

	if !ok {
		return outcomeSkipped, nil
	}

	defer func() {
		if err := handle.Unlock(context.WithoutCancel(ctx)); err != nil {
			a.logger.Log(ctx, log.LevelWarn, "failed to release submit lock", log.String("id", t.ID), log.Err(err))
		}
	}()

	return a.submit(ctx, t.ID)
}

// submit re-reads the transaction so that a pass racing another replica
// never submits twice.
func (a *AutoSubmitter) submit(ctx context.Context, id string) (outcome, error) {
	t, err := a.repo.Get(ctx, id)
	if errors.Is(err, constant.ErrNotFound) {
		return outcomeSkipped, nil
	}

	if err != nil {
		return outcomeSkipped, err
	}

	if t.Status != StatusSigned {
		return outcomeSkipped, nil
	}

	if err := a.send(ctx, t); err != nil {
		a.logger.Log(ctx, log.LevelError, "multisig submission failed", log.String("id", t.ID), log.Err(err))

		if err := a.repo.UpdateStatus(ctx, t.ID, StatusError); err != nil {
			return outcomeFailed, err
		}

		return outcomeFailed, nil
	}

	if err := a.repo.Delete(ctx, t.ID); err != nil && !errors.Is(err, constant.ErrNotFound) {
		return outcomeSubmitted, err
	}

	a.logger.Log(ctx, log.LevelInfo, "multisig transaction submitted", log.String("id", t.ID))

	return outcomeSubmitted, nil
}

func (a *AutoSubmitter) send(ctx context.Context, t Transaction) error {
	client, err := a.clients(t.Network)
	if err != nil {
		return err
	}

	body, err := hex.DecodeString(t.Message)
	if err != nil {
		return fmt.Errorf("decoding transaction message: %w", err)
	}

	signed, err := tx.FromBodyBytes(body)
	if err != nil {
		return err
	}

	keys := SubmissionKeys(t)
	if len(keys) != len(t.Signatures) {
		return fmt.Errorf("transaction %s has %d signed keys and %d signatures", t.ID, len(keys), len(t.Signatures))
	}

	for i, key := range keys {
		sig, err := hex.DecodeString(t.Signatures[i])
		if err != nil {
			return fmt.Errorf("decoding signature %d: %w", i, err)
		}

		if err := signed.AddSignature(key, sig); err != nil {
			return err
		}
	}

	submitted, err := client.Submit(ctx, signed)
	if err != nil {
		return err
	}

	receipt, err := client.Receipt(ctx, submitted.TransactionID)
	if err != nil {
		return err
	}

	if receipt.Status != tx.StatusSuccess {
		return fmt.Errorf("%w: %s", constant.ErrReceiptNotSuccess, receipt.Status)
	}

	return nil
}
