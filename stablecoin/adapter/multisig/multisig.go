// Package multisig implements the wallet whose account is controlled by a
// threshold key list. Transactions are frozen and parked in the
// multi-signature backend; key holders sign them there and the backend
// submits once the threshold is reached.
package multisig

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	backend "github.com/LerianStudio/lib-stablecoin/stablecoin/multisig"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"go.opentelemetry.io/otel/attribute"
)

var (
	errMissingKeyList = errors.New("account has no multi-signature key list")
	errMissingStore   = errors.New("multi-signature store is required")
)

// Adapter parks transactions in a multi-signature store.
type Adapter struct {
	account ledger.Account
	network string
	store   backend.Store
	logger  log.Logger
	now     func() time.Time
	delay   time.Duration

	mu        sync.Mutex
	lastStart time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// WithStartDelay moves the valid start of parked transactions into the
// future, giving key holders time to sign before the window opens.
func WithStartDelay(d time.Duration) Option {
	return func(a *Adapter) { a.delay = max(d, 0) }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(a *Adapter) { a.logger = log.OrNop(l) }
}

// New returns an Adapter for account on network. The account must carry a
// key list.
func New(account ledger.Account, network string, store backend.Store, opts ...Option) (*Adapter, error) {
	if account.MultiKey == nil || len(account.MultiKey.Keys) == 0 {
		return nil, &stablecoin.ConfigurationError{Component: "multisig wallet", Err: errMissingKeyList}
	}

	if store == nil {
		return nil, &stablecoin.ConfigurationError{Component: "multisig wallet", Err: errMissingStore}
	}

	account.PrivateKey = nil

	a := &Adapter{
		account: account,
		network: network,
		store:   store,
		logger:  log.NewNop(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Kind implements adapter.TransactionAdapter.
func (a *Adapter) Kind() adapter.WalletKind { return adapter.Multisig }

// Account implements adapter.TransactionAdapter.
func (a *Adapter) Account() ledger.Account { return a.account }

// Network implements adapter.Networked.
func (a *Adapter) Network() string { return a.network }

// SignAndSend freezes t and stores it for signing. The response is PENDING
// and carries the stored transaction id as Reference; kind and spec are not
// used because nothing reaches the ledger yet.
func (a *Adapter) SignAndSend(ctx context.Context, t *tx.Transaction, _ response.Kind, _ *response.DecodeSpec) (response.TransactionResponse, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "adapter.multisig.sign_and_send")
	defer span.End()

	if !t.Frozen() {
		if err := t.Freeze(a.account.ID, a.validStart()); err != nil {
			opentelemetry.HandleSpanError(&span, "failed to freeze transaction", err)

			return response.TransactionResponse{}, &stablecoin.TransactionBuildingError{Operation: t.Operation, Err: err}
		}
	}

	span.SetAttributes(attribute.String(constant.AttrTransactionID, t.TransactionID()))

	keys := make([]string, 0, len(a.account.MultiKey.Keys))
	for _, k := range a.account.MultiKey.Keys {
		keys = append(keys, k.Key)
	}

	stored, err := a.store.Create(ctx, backend.CreateInput{
		Message:     hex.EncodeToString(t.BodyBytes()),
		Description: t.Operation,
		AccountID:   a.account.ID.String(),
		KeyList:     keys,
		Threshold:   a.account.MultiKey.Threshold,
		Network:     a.network,
		StartDate:   t.ValidStart(),
	})
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to store multisig transaction", err)
		a.logger.Log(ctx, log.LevelError, "multisig store failed", log.String("transaction_id", t.TransactionID()), log.Err(err))

		return response.TransactionResponse{}, &stablecoin.SigningError{Wallet: adapter.Multisig.String(), Err: err}
	}

	a.logger.Log(ctx, log.LevelInfo, "transaction parked for multi-signature",
		log.String("transaction_id", t.TransactionID()), log.String("reference", stored.ID))

	return response.TransactionResponse{
		TransactionID: t.TransactionID(),
		Network:       a.network,
		Status:        tx.StatusPending,
		Reference:     stored.ID,
	}, nil
}

// validStart keeps start times of the same payer strictly increasing so that
// transactions parked together get distinct ids.
func (a *Adapter) validStart() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now().UTC().Add(a.delay)
	if !start.After(a.lastStart) {
		start = a.lastStart.Add(time.Nanosecond)
	}

	a.lastStart = start

	return start
}
