// Package relay reaches a remote wallet through Redis pub/sub.
//
// Each pairing owns a topic. Signing requests are published on
// "<prefix>:pairing:<topic>:requests". The wallet stores its outcome under
// "<prefix>:response:<request id>" and announces the id on the topic's
// responses channel. Stored outcomes survive a dropped subscription and are
// recovered once the watcher re-subscribes.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/event"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	libRedis "github.com/LerianStudio/lib-stablecoin/stablecoin/redis"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultSignTimeout bounds how long SignAndSend waits for the wallet.
const DefaultSignTimeout = 2 * time.Minute

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("relay watcher already started")

// Pairing is the wallet currently reachable through the relay.
type Pairing struct {
	Topic    string         `json:"topic"`
	Account  ledger.Account `json:"account"`
	Network  string         `json:"network"`
	PairedAt time.Time      `json:"pairedAt"`
}

// Request is the message published to the wallet.
type Request struct {
	ID            string        `json:"id"`
	Topic         string        `json:"topic"`
	TransactionID string        `json:"transactionId"`
	Operation     string        `json:"operation"`
	Kind          response.Kind `json:"kind"`
	Transaction   []byte        `json:"transaction"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Response is what the wallet stores for a request.
type Response struct {
	ID       string          `json:"id"`
	Envelope json.RawMessage `json:"envelope,omitempty"`
	Rejected string          `json:"rejected,omitempty"`
}

// Relay is the relay TransactionAdapter.
type Relay struct {
	conn      *libRedis.Client
	logger    log.Logger
	publisher event.Publisher
	decoder   *response.Decoder
	timeout   time.Duration
	retention time.Duration
	resub     backoff.Policy
	now       func() time.Time

	mu      sync.Mutex
	pairing *Pairing
	waiters map[string]chan Response
	started bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithSignTimeout bounds how long SignAndSend waits for the wallet.
func WithSignTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithResubscribePolicy sets the retry policy used when the subscription drops.
func WithResubscribePolicy(p backoff.Policy) Option {
	return func(r *Relay) { r.resub = p }
}

// WithPublisher sets where pairing events go.
func WithPublisher(p event.Publisher) Option {
	return func(r *Relay) { r.publisher = event.OrNop(p) }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Relay) { r.logger = log.OrNop(l) }
}

// WithLedgerClient lets the decoder fetch receipts for envelopes that only
// carry a transaction id.
func WithLedgerClient(c tx.Client) Option {
	return func(r *Relay) { r.decoder = response.NewDecoder(c, r.logger) }
}

// New returns an unpaired Relay over conn.
func New(conn *libRedis.Client, opts ...Option) (*Relay, error) {
	if conn == nil {
		return nil, &stablecoin.ConfigurationError{Component: "relay", Err: libRedis.ErrNilClient}
	}

	r := &Relay{
		conn:      conn,
		logger:    log.NewNop(),
		publisher: event.Nop{},
		timeout:   DefaultSignTimeout,
		retention: constant.TransactionValidDuration,
		resub: backoff.Policy{
			MaxAttempts: 10,
			Backoff: func(attempt int) time.Duration {
				return backoff.ExponentialWithJitter(100*time.Millisecond, attempt)
			},
		},
		now:     time.Now,
		waiters: map[string]chan Response{},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.decoder == nil {
		r.decoder = response.NewDecoder(nil, r.logger)
	}

	return r, nil
}

// Kind implements adapter.TransactionAdapter.
func (r *Relay) Kind() adapter.WalletKind { return adapter.Relay }

// Account implements adapter.TransactionAdapter.
func (r *Relay) Account() ledger.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pairing == nil {
		return ledger.Account{}
	}

	return r.pairing.Account
}

// Network implements adapter.Networked.
func (r *Relay) Network() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pairing == nil {
		return ""
	}

	return r.pairing.Network
}

// Pair opens a new topic for account. An empty topic generates one.
func (r *Relay) Pair(ctx context.Context, topic string, account ledger.Account, network string) Pairing {
	if strings.TrimSpace(topic) == "" {
		topic = uuid.NewString()
	}

	p := Pairing{Topic: topic, Account: account, Network: network, PairedAt: r.now().UTC()}

	r.mu.Lock()
	previous := r.pairing
	r.pairing = &p
	r.mu.Unlock()

	if previous != nil {
		r.failWaiters()
	}

	ev := event.New(event.WalletPaired)
	ev.Wallet = adapter.Relay.String()
	ev.AccountID = account.ID.String()
	ev.Network = network
	event.Emit(ctx, r.logger, r.publisher, ev)

	return p
}

// Disconnect drops the pairing and fails every waiting request.
func (r *Relay) Disconnect(ctx context.Context) bool {
	r.mu.Lock()
	previous := r.pairing
	r.pairing = nil
	r.mu.Unlock()

	if previous == nil {
		return false
	}

	r.failWaiters()

	ev := event.New(event.WalletDisconnected)
	ev.Wallet = adapter.Relay.String()
	ev.AccountID = previous.Account.ID.String()
	ev.Network = previous.Network
	event.Emit(ctx, r.logger, r.publisher, ev)

	return true
}

// RequestsChannel is the channel a wallet paired on topic subscribes to.
func (r *Relay) RequestsChannel(topic string) string {
	return r.conn.Key("pairing", topic, "requests")
}

// ResponsesChannel is the channel a wallet announces outcomes on.
func (r *Relay) ResponsesChannel(topic string) string {
	return r.conn.Key("pairing", topic, "responses")
}

func (r *Relay) responseKey(id string) string { return r.conn.Key("response", id) }

func (r *Relay) submittedKey(txID string) string { return r.conn.Key("submitted", txID) }

// Start subscribes to the responses of every pairing and watches them until
// ctx is done. It returns once the subscription is confirmed.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}

	r.started = true
	r.mu.Unlock()

	sub, err := r.subscribe(ctx)
	if err != nil {
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()

		return err
	}

	runtime.SafeGoWithContextAndComponent(ctx, r.logger, "relay", "watcher", func(ctx context.Context) {
		r.watch(ctx, sub)
	})

	return nil
}

func (r *Relay) subscribe(ctx context.Context) (*redis.PubSub, error) {
	rdb, err := r.conn.GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("relay subscribe: %w", err)
	}

	sub := rdb.PSubscribe(ctx, r.ResponsesChannel("*"))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()

		return nil, fmt.Errorf("relay subscribe: %w", err)
	}

	return sub, nil
}

func (r *Relay) watch(ctx context.Context, sub *redis.PubSub) {
	defer func() { _ = sub.Close() }()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err == nil {
			r.fetch(ctx, msg.Payload)
			continue
		}

		if ctx.Err() != nil {
			return
		}

		r.logger.Log(ctx, log.LevelWarn, "relay subscription lost", log.Err(err))

		_ = sub.Close()

		sub, err = backoff.Retry(ctx, r.resub, func(ctx context.Context, _ int) (*redis.PubSub, error) {
			return r.subscribe(ctx)
		})
		if err != nil {
			r.logger.Log(ctx, log.LevelError, "relay watcher stopped", log.Err(err))
			return
		}

		r.logger.Log(ctx, log.LevelInfo, "relay subscription restored")
		r.recoverPending(ctx)
	}
}

// recoverPending looks up stored outcomes for every waiting request.
func (r *Relay) recoverPending(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.waiters))

	for id := range r.waiters {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.fetch(ctx, id)
	}
}

func (r *Relay) fetch(ctx context.Context, id string) {
	rdb, err := r.conn.GetClient(ctx)
	if err != nil {
		r.logger.Log(ctx, log.LevelWarn, "relay response fetch failed", log.String("request_id", id), log.Err(err))
		return
	}

	raw, err := rdb.Get(ctx, r.responseKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return
	}

	if err != nil {
		r.logger.Log(ctx, log.LevelWarn, "relay response fetch failed", log.String("request_id", id), log.Err(err))
		return
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		r.logger.Log(ctx, log.LevelWarn, "relay response malformed", log.String("request_id", id), log.Err(err))
		return
	}

	resp.ID = id
	r.deliver(resp)
}

func (r *Relay) deliver(resp Response) {
	r.mu.Lock()
	ch, ok := r.waiters[resp.ID]
	r.mu.Unlock()

	if !ok {
		return
	}

	select {
	case ch <- resp:
	default:
	}
}

func (r *Relay) failWaiters() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.waiters {
		select {
		case ch <- Response{ID: id, Rejected: constant.ErrNotPaired.Error()}:
		default:
		}
	}
}

// SignAndSend publishes t to the paired wallet and waits for its outcome.
// A transaction id is published at most once within its validity window.
func (r *Relay) SignAndSend(ctx context.Context, t *tx.Transaction, kind response.Kind, spec *response.DecodeSpec) (response.TransactionResponse, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "adapter.relay.sign_and_send")
	defer span.End()

	r.mu.Lock()
	pairing := r.pairing
	r.mu.Unlock()

	if pairing == nil {
		return response.TransactionResponse{}, signingErr(constant.ErrNotPaired)
	}

	if !t.Frozen() {
		if err := t.Freeze(pairing.Account.ID, r.now().UTC()); err != nil {
			return response.TransactionResponse{}, &stablecoin.TransactionBuildingError{Operation: t.Operation, Err: err}
		}
	}

	raw, err := t.MarshalBinary()
	if err != nil {
		return response.TransactionResponse{}, &stablecoin.TransactionBuildingError{Operation: t.Operation, Err: err}
	}

	span.SetAttributes(attribute.String(constant.AttrTransactionID, t.TransactionID()))

	rdb, err := r.conn.GetClient(ctx)
	if err != nil {
		return response.TransactionResponse{}, signingErr(err)
	}

	fresh, err := rdb.SetNX(ctx, r.submittedKey(t.TransactionID()), r.now().UTC().Format(time.RFC3339Nano), r.retention).Result()
	if err != nil {
		return response.TransactionResponse{}, signingErr(err)
	}

	if !fresh {
		return response.TransactionResponse{}, signingErr(constant.ErrDuplicateSubmission)
	}

	req := Request{
		ID:            uuid.NewString(),
		Topic:         pairing.Topic,
		TransactionID: t.TransactionID(),
		Operation:     t.Operation,
		Kind:          kind,
		Transaction:   raw,
		CreatedAt:     r.now().UTC(),
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return response.TransactionResponse{}, signingErr(err)
	}

	ch := make(chan Response, 1)

	r.mu.Lock()
	r.waiters[req.ID] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.waiters, req.ID)
		r.mu.Unlock()
	}()

	if err := rdb.Publish(ctx, r.RequestsChannel(pairing.Topic), payload).Err(); err != nil {
		opentelemetry.HandleSpanError(&span, "failed to publish signing request", err)

		return response.TransactionResponse{}, signingErr(err)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		_ = rdb.Del(context.WithoutCancel(ctx), r.responseKey(req.ID)).Err()

		switch {
		case resp.Rejected == constant.ErrNotPaired.Error():
			return response.TransactionResponse{}, signingErr(constant.ErrNotPaired)
		case resp.Rejected != "" || len(resp.Envelope) == 0:
			return response.TransactionResponse{}, signingErr(constant.ErrSignatureRejected)
		}

		return r.decoder.Decode(ctx, []byte(resp.Envelope), kind, spec)
	case <-timer.C:
		opentelemetry.HandleSpanError(&span, "signature timeout", constant.ErrSignatureTimeout)

		return response.TransactionResponse{}, signingErr(constant.ErrSignatureTimeout)
	case <-ctx.Done():
		return response.TransactionResponse{}, signingErr(ctx.Err())
	}
}

// Respond is the wallet side of the protocol: it stores resp and announces
// it on topic.
func (r *Relay) Respond(ctx context.Context, topic string, resp Response) error {
	rdb, err := r.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	if err := rdb.Set(ctx, r.responseKey(resp.ID), raw, r.retention).Err(); err != nil {
		return fmt.Errorf("store relay response: %w", err)
	}

	return rdb.Publish(ctx, r.ResponsesChannel(topic), resp.ID).Err()
}

func signingErr(err error) error {
	return &stablecoin.SigningError{Wallet: adapter.Relay.String(), Err: err}
}
