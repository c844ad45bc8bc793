// Package custodial signs through a remote custody service that holds the
// key on behalf of a wallet id.
package custodial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/circuitbreaker"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"go.opentelemetry.io/otel/attribute"
)

// BreakerName is the circuit breaker guarding the signing service.
const BreakerName = "custodial-signing"

// SignatureStatus is the state of a signature request at the provider.
type SignatureStatus string

// Signature request states.
const (
	StatusPending   SignatureStatus = "PENDING"
	StatusCompleted SignatureStatus = "COMPLETED"
	StatusRejected  SignatureStatus = "REJECTED"
)

// SignatureResult is one poll of a signature request.
type SignatureResult struct {
	Status    SignatureStatus `json:"status"`
	Signature []byte          `json:"signature,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// SigningService is the custody provider.
type SigningService interface {
	RequestSignature(ctx context.Context, walletID string, message []byte) (string, error)
	Signature(ctx context.Context, requestID string) (SignatureResult, error)
}

var (
	errMissingPublicKey = errors.New("custodial account requires a public key")
	errMissingWallet    = errors.New("custodial wallet id is required")
	errMissingService   = errors.New("signing service is required")
	errMissingClient    = errors.New("ledger client is required")
	errPending          = errors.New("signature still pending")
)

// Adapter is the custodial TransactionAdapter.
type Adapter struct {
	account  ledger.Account
	walletID string
	service  SigningService
	client   tx.Client
	decoder  *response.Decoder
	breakers circuitbreaker.Manager
	poll     backoff.Policy
	timeout  time.Duration
	logger   log.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastStart time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPollPolicy replaces the default of three polls one second apart.
func WithPollPolicy(p backoff.Policy) Option {
	return func(a *Adapter) { a.poll = p }
}

// WithTimeout bounds the whole request-and-poll exchange.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBreakers shares a circuit breaker manager.
func WithBreakers(m circuitbreaker.Manager) Option {
	return func(a *Adapter) {
		if m != nil {
			a.breakers = m
		}
	}
}

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

// New returns an Adapter signing for account through walletID.
func New(account ledger.Account, walletID string, service SigningService, client tx.Client, opts ...Option) (*Adapter, error) {
	switch {
	case account.PublicKey == nil:
		return nil, &stablecoin.ConfigurationError{Component: "custodial wallet", Err: errMissingPublicKey}
	case walletID == "":
		return nil, &stablecoin.ConfigurationError{Component: "custodial wallet", Err: errMissingWallet}
	case service == nil:
		return nil, &stablecoin.ConfigurationError{Component: "custodial wallet", Err: errMissingService}
	case client == nil:
		return nil, &stablecoin.ConfigurationError{Component: "custodial wallet", Err: errMissingClient}
	}

	account.PrivateKey = nil

	a := &Adapter{
		account:  account,
		walletID: walletID,
		service:  service,
		client:   client,
		poll:     backoff.Fixed(constant.CustodialPollAttempts, constant.CustodialPollInterval),
		logger:   log.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.breakers == nil {
		a.breakers = circuitbreaker.NewManager(a.logger)
	}

	if a.timeout == 0 {
		attempts := max(a.poll.MaxAttempts, 1)
		a.timeout = time.Duration(attempts+1) * constant.CustodialPollInterval
	}

	a.breakers.GetOrCreate(BreakerName, circuitbreaker.SigningServiceConfig())
	a.decoder = response.NewDecoder(client, a.logger)

	return a, nil
}

// Kind implements adapter.TransactionAdapter.
func (a *Adapter) Kind() adapter.WalletKind { return adapter.Custodial }

// Account implements adapter.TransactionAdapter.
func (a *Adapter) Account() ledger.Account { return a.account }

// Network implements adapter.Networked.
func (a *Adapter) Network() string { return a.client.Network() }

// SignAndSend has the provider sign t, then submits it.
func (a *Adapter) SignAndSend(ctx context.Context, t *tx.Transaction, kind response.Kind, spec *response.DecodeSpec) (response.TransactionResponse, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "adapter.custodial.sign_and_send")
	defer span.End()

	if !t.Frozen() {
		if err := t.Freeze(a.account.ID, a.validStart()); err != nil {
			return response.TransactionResponse{}, &stablecoin.TransactionBuildingError{Operation: t.Operation, Err: err}
		}
	}

	span.SetAttributes(attribute.String(constant.AttrTransactionID, t.TransactionID()))

	sig, err := a.sign(ctx, t.BodyBytes())
	if err != nil {
		opentelemetry.HandleSpanError(&span, "custodial signing failed", err)
		a.logger.Log(ctx, log.LevelWarn, "custodial signing failed",
			log.String("transaction_id", t.TransactionID()), log.Err(err))

		return response.TransactionResponse{}, &stablecoin.SigningError{Wallet: adapter.Custodial.String(), Err: err}
	}

	if err := crypto.Verify(*a.account.PublicKey, t.BodyBytes(), sig); err != nil {
		return response.TransactionResponse{}, &stablecoin.SigningError{Wallet: adapter.Custodial.String(), Err: err}
	}

	if err := t.AddSignature(*a.account.PublicKey, sig); err != nil {
		return response.TransactionResponse{}, &stablecoin.SigningError{Wallet: adapter.Custodial.String(), Err: err}
	}

	submitted, err := a.client.Submit(ctx, t)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to submit transaction", err)

		return response.TransactionResponse{}, &stablecoin.TransactionResponseError{
			Message:       "submission failed",
			TransactionID: t.TransactionID(),
			Network:       a.client.Network(),
			Err:           err,
		}
	}

	return a.decoder.Decode(ctx, submitted, kind, spec)
}

// sign requests a signature and polls for it within the adapter timeout.
func (a *Adapter) sign(ctx context.Context, message []byte) ([]byte, error) {
	ctx, cancel, err := stablecoin.WithTimeoutSafe(ctx, a.timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	requestID, err := circuitbreaker.Run(a.breakers, BreakerName, func() (string, error) {
		return a.service.RequestSignature(ctx, a.walletID, message)
	})
	if err != nil {
		return nil, fmt.Errorf("request signature: %w", err)
	}

	sig, err := backoff.Retry(ctx, a.poll, func(ctx context.Context, _ int) ([]byte, error) {
		res, err := circuitbreaker.Run(a.breakers, BreakerName, func() (SignatureResult, error) {
			return a.service.Signature(ctx, requestID)
		})
		if err != nil {
			return nil, err
		}

		switch res.Status {
		case StatusCompleted:
			return res.Signature, nil
		case StatusRejected:
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", constant.ErrSignatureRejected, res.Reason))
		default:
			return nil, errPending
		}
	})

	switch {
	case err == nil:
		return sig, nil
	case errors.Is(err, constant.ErrSignatureRejected):
		return nil, err
	case errors.Is(err, backoff.ErrExhausted), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: request %s: %w", constant.ErrSignatureTimeout, requestID, err)
	default:
		return nil, err
	}
}

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
