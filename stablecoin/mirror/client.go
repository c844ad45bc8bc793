package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/backoff"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/circuitbreaker"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"go.opentelemetry.io/otel/attribute"
)

// BreakerName is the circuit breaker guarding mirror node calls.
const BreakerName = "mirror-node"

const maxBodySize = 8 << 20

// Well-known mirror node endpoints.
var networkURLs = map[string]string{
	"mainnet":    "https://mainnet-public.mirrornode.hedera.com",
	"testnet":    "https://testnet.mirrornode.hedera.com",
	"previewnet": "https://previewnet.mirrornode.hedera.com",
	"local":      "http://127.0.0.1:5551",
}

// ErrUnknownNetwork is returned when neither a base URL nor a known network
// is configured.
var ErrUnknownNetwork = errors.New("unknown mirror node network")

// Config configures a Client.
type Config struct {
	Network     string        `env:"MIRROR_NETWORK"`
	BaseURL     string        `env:"MIRROR_BASE_URL"`
	APIKey      string        `env:"MIRROR_API_KEY"`
	Timeout     time.Duration `env:"MIRROR_TIMEOUT"`
	MaxAttempts int           `env:"MIRROR_MAX_ATTEMPTS"`
	RetryDelay  time.Duration `env:"MIRROR_RETRY_DELAY"`
}

// Client is a mirror node REST client.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	breakers circuitbreaker.Manager
	retry    backoff.Policy
	logger   log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Client) {
		if c != nil {
			m.http = c
		}
	}
}

// WithBreakers shares a circuit breaker manager.
func WithBreakers(b circuitbreaker.Manager) Option {
	return func(m *Client) {
		if b != nil {
			m.breakers = b
		}
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(m *Client) { m.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Client) { m.logger = log.OrNop(l) }
}

// New returns a Client. BaseURL wins over Network.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		known, ok := networkURLs[strings.ToLower(cfg.Network)]
		if !ok {
			return nil, &stablecoin.ConfigurationError{Component: "mirror", Err: fmt.Errorf("%w: %q", ErrUnknownNetwork, cfg.Network)}
		}

		base = known
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}

	m := &Client{
		baseURL: base + "/api/v1",
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		retry: backoff.Policy{
			MaxAttempts: attempts,
			Backoff: func(attempt int) time.Duration {
				return backoff.ExponentialWithJitter(delay, attempt)
			},
		},
		logger: log.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.breakers == nil {
		m.breakers = circuitbreaker.NewManager(m.logger)
	}

	m.breakers.GetOrCreate(BreakerName, circuitbreaker.HTTPServiceConfig())

	return m, nil
}

// statusError is a non-retryable reply.
type statusError struct {
	method string
	path   string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("mirror node %s %s: status %d: %s", e.method, e.path, e.status, e.body)
}

type reply struct {
	status int
	body   []byte
}

func (m *Client) getJSON(ctx context.Context, path string, out any) error {
	return m.call(ctx, http.MethodGet, path, nil, out)
}

func (m *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return m.call(ctx, http.MethodPost, path, in, out)
}

func (m *Client) call(ctx context.Context, method, path string, in, out any) error {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "mirror."+strings.ToLower(method))
	defer span.End()

	span.SetAttributes(attribute.String("http.route", routeOf(path)))

	var payload []byte

	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}

	res, err := backoff.Retry(ctx, m.retry, func(ctx context.Context, attempt int) (reply, error) {
		r, err := circuitbreaker.Run(m.breakers, BreakerName, func() (reply, error) {
			return m.send(ctx, method, path, payload)
		})
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrOpen) {
				return reply{}, backoff.Permanent(err)
			}

			m.logger.Log(ctx, log.LevelWarn, "mirror node request failed",
				log.String("path", path), log.Int("attempt", attempt), log.Err(err))

			return reply{}, err
		}

		switch {
		case r.status == http.StatusNotFound:
			return reply{}, backoff.Permanent(fmt.Errorf("mirror node %s: %w", path, constant.ErrNotFound))
		case r.status >= http.StatusBadRequest:
			return reply{}, backoff.Permanent(&statusError{method: method, path: path, status: r.status, body: truncate(r.body)})
		}

		return r, nil
	})
	if err != nil {
		if !errors.Is(err, constant.ErrNotFound) {
			opentelemetry.HandleSpanError(&span, "mirror node request failed", err)
		}

		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("decoding mirror node %s: %w", path, err)
	}

	return nil
}

// send performs one request. Server errors are returned as errors so that
// they count against the breaker; client errors are returned as replies.
func (m *Client) send(ctx context.Context, method, path string, payload []byte) (reply, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return reply{}, err
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set(constant.HeaderContentType, "application/json")
	}

	if m.apiKey != "" {
		req.Header.Set("X-Api-Key", m.apiKey)
	}

	opentelemetry.InjectHTTPContext(ctx, req.Header)

	resp, err := m.http.Do(req)
	if err != nil {
		return reply{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return reply{}, err
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return reply{}, fmt.Errorf("mirror node %s %s: status %d", method, path, resp.StatusCode)
	}

	return reply{status: resp.StatusCode, body: raw}, nil
}

func routeOf(path string) string {
	route, _, _ := strings.Cut(path, "?")
	return route
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}

	return string(b)
}
