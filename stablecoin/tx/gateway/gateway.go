// Package gateway is a tx.Client that hands frozen, signed transactions to
// a submission gateway over HTTP. The gateway owns the node wire format;
// this client only moves the canonical CBOR encoding and reads outcomes
// back as JSON.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/circuitbreaker"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"go.opentelemetry.io/otel/attribute"
)

// BreakerName is the circuit breaker guarding gateway calls.
const BreakerName = "ledger-gateway"

const (
	contentTypeCBOR = "application/cbor"
	maxBodySize     = 4 << 20
)

// errNotReady marks an outcome the gateway has not seen reach consensus.
var errNotReady = errors.New("transaction outcome not available yet")

// Config configures a Client.
type Config struct {
	Network      string        `env:"LEDGER_NETWORK"`
	BaseURL      string        `env:"LEDGER_GATEWAY_URL"`
	Token        string        `env:"LEDGER_GATEWAY_TOKEN"`
	Timeout      time.Duration `env:"LEDGER_GATEWAY_TIMEOUT"`
	PollAttempts int           `env:"LEDGER_GATEWAY_POLL_ATTEMPTS"`
	PollInterval time.Duration `env:"LEDGER_GATEWAY_POLL_INTERVAL"`
}

// Client implements tx.Client.
type Client struct {
	network  string
	baseURL  string
	token    string
	http     *http.Client
	breakers circuitbreaker.Manager
	poll     backoff.Policy
	logger   log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Client) {
		if c != nil {
			g.http = c
		}
	}
}

// WithBreakers shares a circuit breaker manager.
func WithBreakers(b circuitbreaker.Manager) Option {
	return func(g *Client) {
		if b != nil {
			g.breakers = b
		}
	}
}

// WithPollPolicy replaces the outcome polling policy.
func WithPollPolicy(p backoff.Policy) Option {
	return func(g *Client) { g.poll = p }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(g *Client) { g.logger = log.OrNop(l) }
}

// New returns a Client for cfg.Network.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" || strings.TrimSpace(cfg.Network) == "" {
		return nil, &stablecoin.ConfigurationError{Component: "ledger gateway", Err: errors.New("base url and network are required")}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	attempts := cfg.PollAttempts
	if attempts <= 0 {
		attempts = 10
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	g := &Client{
		network: cfg.Network,
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		poll:    backoff.Fixed(attempts, interval),
		logger:  log.NewNop(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.breakers == nil {
		g.breakers = circuitbreaker.NewManager(g.logger)
	}

	g.breakers.GetOrCreate(BreakerName, circuitbreaker.HTTPServiceConfig())

	return g, nil
}

// Network implements tx.Client.
func (g *Client) Network() string { return g.network }

// Submit sends the transaction once. A failed submission is never retried
// here: the caller cannot tell whether the gateway forwarded it.
func (g *Client) Submit(ctx context.Context, t *tx.Transaction) (tx.SubmitResult, error) {
	if !t.Frozen() {
		return tx.SubmitResult{}, tx.ErrNotFrozen
	}

	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "gateway.submit")
	defer span.End()

	span.SetAttributes(
		attribute.String(constant.AttrTransactionID, t.TransactionID()),
		attribute.String(constant.AttrNetwork, g.network),
	)

	payload, err := t.MarshalBinary()
	if err != nil {
		return tx.SubmitResult{}, fmt.Errorf("encoding transaction %s: %w", t.TransactionID(), err)
	}

	var res tx.SubmitResult

	if err := g.do(ctx, http.MethodPost, "/transactions", contentTypeCBOR, payload, &res); err != nil {
		opentelemetry.HandleSpanError(&span, "failed to submit transaction", err)
		return tx.SubmitResult{}, err
	}

	if res.TransactionID == "" {
		res.TransactionID = t.TransactionID()
	}

	if res.Network == "" {
		res.Network = g.network
	}

	return res, nil
}

// Receipt implements tx.Client, polling until the gateway reports an
// outcome.
func (g *Client) Receipt(ctx context.Context, transactionID string) (tx.Receipt, error) {
	return pollOutcome[tx.Receipt](ctx, g, transactionID, "receipt")
}

// Record implements tx.Client, polling until the gateway reports an
// outcome.
func (g *Client) Record(ctx context.Context, transactionID string) (tx.Record, error) {
	return pollOutcome[tx.Record](ctx, g, transactionID, "record")
}

func pollOutcome[T any](ctx context.Context, g *Client, transactionID, kind string) (T, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "gateway."+kind)
	defer span.End()

	span.SetAttributes(attribute.String(constant.AttrTransactionID, transactionID))

	path := "/transactions/" + url.PathEscape(transactionID) + "/" + kind

	out, err := backoff.Retry(ctx, g.poll, func(ctx context.Context, attempt int) (T, error) {
		var v T

		err := g.do(ctx, http.MethodGet, path, "", nil, &v)
		if err != nil && !errors.Is(err, errNotReady) {
			if errors.Is(err, circuitbreaker.ErrOpen) {
				return v, backoff.Permanent(err)
			}

			g.logger.Log(ctx, log.LevelWarn, "ledger gateway read failed",
				log.String("transaction_id", transactionID), log.Int("attempt", attempt), log.Err(err))
		}

		return v, err
	})
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to read "+kind, err)
		return out, fmt.Errorf("reading %s of %s: %w", kind, transactionID, err)
	}

	return out, nil
}

type reply struct {
	status int
	body   []byte
}

func (g *Client) do(ctx context.Context, method, path, contentType string, payload []byte, out any) error {
	r, err := circuitbreaker.Run(g.breakers, BreakerName, func() (reply, error) {
		return g.send(ctx, method, path, contentType, payload)
	})
	if err != nil {
		return err
	}

	switch {
	case r.status == http.StatusNotFound && method == http.MethodGet:
		return errNotReady
	case r.status >= http.StatusBadRequest:
		return backoff.Permanent(fmt.Errorf("ledger gateway %s %s: status %d: %s", method, path, r.status, strings.TrimSpace(string(r.body))))
	}

	if err := json.Unmarshal(r.body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decoding gateway %s: %w", path, err))
	}

	return nil
}

// send performs one request. Server errors are returned as errors so that
// they count against the breaker; client errors are returned as replies.
func (g *Client) send(ctx context.Context, method, path, contentType string, payload []byte) (reply, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return reply{}, err
	}

	req.Header.Set("Accept", "application/json")

	if contentType != "" {
		req.Header.Set(constant.HeaderContentType, contentType)
	}

	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	opentelemetry.InjectHTTPContext(ctx, req.Header)

	resp, err := g.http.Do(req)
	if err != nil {
		return reply{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return reply{}, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return reply{}, fmt.Errorf("ledger gateway %s %s: status %d", method, path, resp.StatusCode)
	}

	return reply{status: resp.StatusCode, body: raw}, nil
}
