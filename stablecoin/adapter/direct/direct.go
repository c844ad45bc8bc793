// Package direct implements the wallet that holds its own key material and
// submits straight to a ledger node.
package direct

import (
	"context"
	"sync"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"go.opentelemetry.io/otel/attribute"
)

// Adapter signs with an in-process private key.
type Adapter struct {
	account ledger.Account
	client  tx.Client
	decoder *response.Decoder
	logger  log.Logger
	now     func() time.Time

	mu        sync.Mutex
	lastStart time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock replaces time.Now for transaction valid-start times.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(a *Adapter) { a.logger = log.OrNop(l) }
}

// New returns an Adapter for account. The account must carry a private key;
// its public key is derived when missing.
func New(account ledger.Account, client tx.Client, opts ...Option) (*Adapter, error) {
	if account.PrivateKey == nil {
		return nil, &stablecoin.ConfigurationError{Component: "direct wallet", Err: errMissingKey}
	}

	if client == nil {
		return nil, &stablecoin.ConfigurationError{Component: "direct wallet", Err: errMissingClient}
	}

	if account.PublicKey == nil {
		pk, err := crypto.PublicKeyOf(*account.PrivateKey)
		if err != nil {
			return nil, &stablecoin.ConfigurationError{Component: "direct wallet", Err: err}
		}

		account.PublicKey = &pk
	}

	a := &Adapter{account: account, client: client, logger: log.NewNop(), now: time.Now}

	for _, opt := range opts {
		opt(a)
	}

	a.decoder = response.NewDecoder(client, a.logger)

	return a, nil
}

// Kind implements adapter.TransactionAdapter.
func (a *Adapter) Kind() adapter.WalletKind { return adapter.Direct }

// Account implements adapter.TransactionAdapter. The private key is not
// exposed.
func (a *Adapter) Account() ledger.Account {
	acc := a.account
	acc.PrivateKey = nil

	return acc
}

// Network implements adapter.Networked.
func (a *Adapter) Network() string { return a.client.Network() }

// SignAndSend freezes t with the account as payer, signs and submits it.
func (a *Adapter) SignAndSend(ctx context.Context, t *tx.Transaction, kind response.Kind, spec *response.DecodeSpec) (response.TransactionResponse, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "adapter.direct.sign_and_send")
	defer span.End()

	if !t.Frozen() {
		if err := t.Freeze(a.account.ID, a.validStart()); err != nil {
			opentelemetry.HandleSpanError(&span, "failed to freeze transaction", err)

			return response.TransactionResponse{}, &stablecoin.TransactionBuildingError{Operation: t.Operation, Err: err}
		}
	}

	span.SetAttributes(attribute.String(constant.AttrTransactionID, t.TransactionID()))

	sig, err := crypto.Sign(*a.account.PrivateKey, t.BodyBytes())
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to sign transaction", err)

		return response.TransactionResponse{}, &stablecoin.SigningError{Wallet: adapter.Direct.String(), Err: err}
	}

	if err := t.AddSignature(*a.account.PublicKey, sig); err != nil {
		return response.TransactionResponse{}, &stablecoin.SigningError{Wallet: adapter.Direct.String(), Err: err}
	}

	submitted, err := a.client.Submit(ctx, t)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to submit transaction", err)
		a.logger.Log(ctx, log.LevelError, "submission failed", log.String("transaction_id", t.TransactionID()), log.Err(err))

		return response.TransactionResponse{}, &stablecoin.TransactionResponseError{
			Message:       "submission failed",
			TransactionID: t.TransactionID(),
			Network:       a.client.Network(),
			Err:           err,
		}
	}

	return a.decoder.Decode(ctx, submitted, kind, spec)
}

// validStart returns a strictly increasing start time so that back-to-back
// transactions of the same payer never share an id.
func (a *Adapter) validStart() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now().UTC()
	if !start.After(a.lastStart) {
		start = a.lastStart.Add(time.Nanosecond)
	}

	a.lastStart = start

	return start
}
