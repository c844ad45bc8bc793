// Package extension bridges signing requests to a wallet running outside
// the process, such as a browser extension.
//
// The wallet pairs over HTTP, long-polls for pending requests, signs and
// submits them itself, then posts the outcome back. SignAndSend blocks until
// that outcome arrives or the signing timeout elapses.
package extension

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/event"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Defaults.
const (
	DefaultSignTimeout = 2 * time.Minute
	DefaultPollWait    = 25 * time.Second
)

// Pairing is the wallet currently connected.
type Pairing struct {
	ID       string         `json:"pairingId"`
	Account  ledger.Account `json:"account"`
	Network  string         `json:"network"`
	PairedAt time.Time      `json:"pairedAt"`
}

// Request is a signing request as served to the wallet.
type Request struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transactionId"`
	Operation     string        `json:"operation"`
	Kind          response.Kind `json:"kind"`
	Transaction   []byte        `json:"transaction"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type outcome struct {
	envelope json.RawMessage
	rejected string
	err      error
}

type pending struct {
	request   Request
	delivered bool
	done      chan outcome
}

// Bridge is the extension TransactionAdapter and the state behind its HTTP
// endpoints.
type Bridge struct {
	logger    log.Logger
	publisher event.Publisher
	decoder   *response.Decoder
	timeout   time.Duration
	pollWait  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pairing *Pairing
	pending map[string]*pending
	order   []string
	notify  chan struct{}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSignTimeout bounds how long SignAndSend waits for the wallet.
func WithSignTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithPollWait bounds how long a poll waits for a request to show up.
func WithPollWait(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.pollWait = d
		}
	}
}

// WithPublisher sets where pairing events go.
func WithPublisher(p event.Publisher) Option {
	return func(b *Bridge) { b.publisher = event.OrNop(p) }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(b *Bridge) { b.logger = log.OrNop(l) }
}

// WithLedgerClient lets the decoder fetch receipts for envelopes that only
// carry a transaction id.
func WithLedgerClient(c tx.Client) Option {
	return func(b *Bridge) { b.decoder = response.NewDecoder(c, b.logger) }
}

// New returns an unpaired Bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger:    log.NewNop(),
		publisher: event.Nop{},
		timeout:   DefaultSignTimeout,
		pollWait:  DefaultPollWait,
		now:       time.Now,
		pending:   map[string]*pending{},
		notify:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.decoder == nil {
		b.decoder = response.NewDecoder(nil, b.logger)
	}

	return b
}

// Kind implements adapter.TransactionAdapter.
func (b *Bridge) Kind() adapter.WalletKind { return adapter.Extension }

// Account implements adapter.TransactionAdapter. It is the zero account
// while unpaired.
func (b *Bridge) Account() ledger.Account {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pairing == nil {
		return ledger.Account{}
	}

	return b.pairing.Account
}

// Network implements adapter.Networked.
func (b *Bridge) Network() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pairing == nil {
		return ""
	}

	return b.pairing.Network
}

// Pair replaces the current pairing with account.
func (b *Bridge) Pair(ctx context.Context, account ledger.Account, network string) Pairing {
	p := Pairing{ID: uuid.NewString(), Account: account, Network: network, PairedAt: b.now().UTC()}

	b.mu.Lock()
	previous := b.pairing
	b.pairing = &p
	b.mu.Unlock()

	if previous != nil {
		b.failPending(constant.ErrNotPaired)
	}

	ev := event.New(event.WalletPaired)
	ev.Wallet = adapter.Extension.String()
	ev.AccountID = account.ID.String()
	ev.Network = network
	event.Emit(ctx, b.logger, b.publisher, ev)

	b.logger.Log(ctx, log.LevelInfo, "extension wallet paired",
		log.String("pairing_id", p.ID), log.String("account_id", account.ID.String()))

	return p
}

// Disconnect drops the pairing and fails every waiting request.
func (b *Bridge) Disconnect(ctx context.Context) bool {
	b.mu.Lock()
	previous := b.pairing
	b.pairing = nil
	b.mu.Unlock()

	if previous == nil {
		return false
	}

	b.failPending(constant.ErrNotPaired)

	ev := event.New(event.WalletDisconnected)
	ev.Wallet = adapter.Extension.String()
	ev.AccountID = previous.Account.ID.String()
	ev.Network = previous.Network
	event.Emit(ctx, b.logger, b.publisher, ev)

	return true
}

// SignAndSend queues t for the paired wallet and waits for its outcome.
func (b *Bridge) SignAndSend(ctx context.Context, t *tx.Transaction, kind response.Kind, spec *response.DecodeSpec) (response.TransactionResponse, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "adapter.extension.sign_and_send")
	defer span.End()

	b.mu.Lock()
	pairing := b.pairing
	b.mu.Unlock()

	if pairing == nil {
		return response.TransactionResponse{}, signingErr(constant.ErrNotPaired)
	}

	if !t.Frozen() {
		if err := t.Freeze(pairing.Account.ID, b.now().UTC()); err != nil {
			return response.TransactionResponse{}, &stablecoin.TransactionBuildingError{Operation: t.Operation, Err: err}
		}
	}

	raw, err := t.MarshalBinary()
	if err != nil {
		return response.TransactionResponse{}, &stablecoin.TransactionBuildingError{Operation: t.Operation, Err: err}
	}

	p := &pending{
		request: Request{
			ID:            uuid.NewString(),
			TransactionID: t.TransactionID(),
			Operation:     t.Operation,
			Kind:          kind,
			Transaction:   raw,
			CreatedAt:     b.now().UTC(),
		},
		done: make(chan outcome, 1),
	}

	span.SetAttributes(attribute.String(constant.AttrTransactionID, t.TransactionID()))

	b.enqueue(p)
	defer b.remove(p.request.ID)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case out := <-p.done:
		switch {
		case out.err != nil:
			return response.TransactionResponse{}, signingErr(out.err)
		case out.rejected != "" || out.envelope == nil:
			b.logger.Log(ctx, log.LevelWarn, "extension wallet rejected request",
				log.String("transaction_id", t.TransactionID()), log.String("reason", out.rejected))

			return response.TransactionResponse{}, signingErr(constant.ErrSignatureRejected)
		}

		return b.decoder.Decode(ctx, []byte(out.envelope), kind, spec)
	case <-timer.C:
		opentelemetry.HandleSpanError(&span, "signature timeout", constant.ErrSignatureTimeout)

		return response.TransactionResponse{}, signingErr(constant.ErrSignatureTimeout)
	case <-ctx.Done():
		return response.TransactionResponse{}, signingErr(ctx.Err())
	}
}

func signingErr(err error) error {
	return &stablecoin.SigningError{Wallet: adapter.Extension.String(), Err: err}
}

func (b *Bridge) enqueue(p *pending) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[p.request.ID] = p
	b.order = append(b.order, p.request.ID)

	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *Bridge) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.pending, id)

	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Bridge) failPending(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.pending {
		select {
		case p.done <- outcome{err: err}:
		default:
		}
	}
}

// take returns undelivered requests and marks them delivered, or the channel
// closed when the next request arrives.
func (b *Bridge) take() ([]Request, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Request

	for _, id := range b.order {
		p := b.pending[id]
		if p == nil || p.delivered {
			continue
		}

		p.delivered = true
		out = append(out, p.request)
	}

	return out, b.notify
}

// Poll waits up to the poll wait for undelivered requests.
func (b *Bridge) Poll(ctx context.Context) []Request {
	timer := time.NewTimer(b.pollWait)
	defer timer.Stop()

	for {
		requests, next := b.take()
		if len(requests) > 0 {
			return requests
		}

		select {
		case <-next:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// Resolve completes request id with a wallet envelope or a rejection. It
// reports false for an unknown or already completed request.
func (b *Bridge) Resolve(id string, envelope json.RawMessage, rejected string) bool {
	b.mu.Lock()
	p, ok := b.pending[id]
	b.mu.Unlock()

	if !ok {
		return false
	}

	select {
	case p.done <- outcome{envelope: envelope, rejected: rejected}:
		return true
	default:
		return false
	}
}
