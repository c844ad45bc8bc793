package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrNilClient is returned by methods called on a nil *Client.
	ErrNilClient = errors.New("redis client is nil")
	// ErrInvalidConfig is returned by New for an unusable Config.
	ErrInvalidConfig = errors.New("invalid redis config")
)

// Config selects the topology and connection options. Addresses with one
// entry and no MasterName is a standalone server; MasterName selects
// sentinel; several addresses without MasterName select cluster.
type Config struct {
	Addresses    []string      `env:"-"`
	Address      string        `env:"REDIS_ADDRESS"`
	MasterName   string        `env:"REDIS_MASTER_NAME"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"`
	UseTLS       bool          `env:"REDIS_TLS"`
	KeyPrefix    string        `env:"REDIS_KEY_PREFIX"`
	Logger       log.Logger    `env:"-"`
}

func (c Config) addresses() []string {
	addrs := make([]string, 0, len(c.Addresses)+1)

	for _, a := range c.Addresses {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}

	for _, a := range strings.Split(c.Address, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}

	return addrs
}

// Client owns one go-redis UniversalClient.
type Client struct {
	mu     sync.RWMutex
	cfg    Config
	logger log.Logger
	client redis.UniversalClient
}

// New validates cfg, connects and pings.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if len(cfg.addresses()) == 0 {
		return nil, fmt.Errorf("%w: at least one address is required", ErrInvalidConfig)
	}

	c := &Client{cfg: cfg, logger: log.OrNop(cfg.Logger)}

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// NewFromUniversal wraps an already connected client.
func NewFromUniversal(rdb redis.UniversalClient, logger log.Logger) *Client {
	return &Client{client: rdb, logger: log.OrNop(logger)}
}

// Connect (re)establishes the connection.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return ErrNilClient
	}

	ctx, span := otel.Tracer(constant.TelemetrySDKName).Start(ctx, "redis.connect")
	defer span.End()

	span.SetAttributes(attribute.String(constant.AttrDBSystem, constant.DBSystemRedis))

	c.mu.Lock()
	defer c.mu.Unlock()

	opts := &redis.UniversalOptions{
		Addrs:        c.cfg.addresses(),
		MasterName:   c.cfg.MasterName,
		Password:     c.cfg.Password,
		DB:           c.cfg.DB,
		PoolSize:     c.cfg.PoolSize,
		DialTimeout:  c.cfg.DialTimeout,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	}

	if c.cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewUniversalClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		opentelemetry.HandleSpanError(&span, "failed to connect to redis", err)
		c.logger.Log(ctx, log.LevelError, "redis ping failed", log.Err(err))

		return fmt.Errorf("redis connect: ping: %w", err)
	}

	if c.client != nil {
		_ = c.client.Close()
	}

	c.client = rdb

	if !c.cfg.UseTLS {
		c.logger.Log(ctx, log.LevelWarn, "redis connection established without TLS")
	}

	c.logger.Log(ctx, log.LevelInfo, "connected to redis", log.Int("addresses", len(opts.Addrs)))

	return nil
}

// GetClient returns the connected client, connecting on demand.
//
//nolint:ireturn
func (c *Client) GetClient(ctx context.Context) (redis.UniversalClient, error) {
	if c == nil {
		return nil, ErrNilClient
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client != nil {
		return client, nil
	}

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.client, nil
}

// Key prefixes parts with the configured key prefix.
func (c *Client) Key(parts ...string) string {
	prefix := "stablecoin"
	if c != nil && c.cfg.KeyPrefix != "" {
		prefix = c.cfg.KeyPrefix
	}

	return prefix + ":" + strings.Join(parts, ":")
}

// IsConnected reports whether a client is held and answers PING.
func (c *Client) IsConnected(ctx context.Context) bool {
	if c == nil {
		return false
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	return client != nil && client.Ping(ctx).Err() == nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.client = nil

	return err
}
