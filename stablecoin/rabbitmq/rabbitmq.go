package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrNilConnection is returned when a method is called on a nil Connection.
	ErrNilConnection = errors.New("rabbitmq connection is nil")
	// ErrInvalidConfig is returned for an incomplete Config.
	ErrInvalidConfig = errors.New("invalid rabbitmq config")
	// ErrNotConnected is returned when a channel is requested before Connect.
	ErrNotConnected = errors.New("rabbitmq is not connected")
)

const defaultDialTimeout = 10 * time.Second

// Config describes the broker and the exchange events are published to.
type Config struct {
	Protocol     string        `env:"RABBITMQ_PROTOCOL"`
	Host         string        `env:"RABBITMQ_HOST"`
	Port         string        `env:"RABBITMQ_PORT"`
	User         string        `env:"RABBITMQ_USER"`
	Pass         string        `env:"RABBITMQ_PASS"`
	VHost        string        `env:"RABBITMQ_VHOST"`
	Exchange     string        `env:"RABBITMQ_EXCHANGE"`
	ExchangeKind string        `env:"RABBITMQ_EXCHANGE_KIND"`
	DialTimeout  time.Duration `env:"RABBITMQ_DIAL_TIMEOUT"`
	Logger       log.Logger    `env:"-"`
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Exchange) == "" {
		return fmt.Errorf("%w: exchange is required", ErrInvalidConfig)
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.Protocol == "" {
		c.Protocol = "amqp"
	}

	if c.Port == "" {
		c.Port = "5672"
	}

	if c.ExchangeKind == "" {
		c.ExchangeKind = amqp.ExchangeTopic
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}

	return c
}

// BuildConnectionString renders an AMQP URL. Credentials and vhost are
// escaped.
func BuildConnectionString(protocol, user, pass, host, port, vhost string) string {
	u := url.URL{Scheme: protocol, Host: host + ":" + port, Path: "/"}

	if user != "" {
		u.User = url.UserPassword(user, pass)
	}

	if vhost != "" {
		vhost = strings.TrimPrefix(vhost, "/")
		u.Path = "/" + vhost
		u.RawPath = "/" + url.PathEscape(vhost)
	}

	return u.String()
}

// Connection owns one AMQP connection and hands out channels.
type Connection struct {
	mu     sync.Mutex
	cfg    Config
	logger log.Logger
	conn   *amqp.Connection

	dial func(url string, cfg amqp.Config) (*amqp.Connection, error)
}

// NewConnection validates cfg without dialing.
func NewConnection(cfg Config) (*Connection, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()

	return &Connection{cfg: cfg, logger: log.OrNop(cfg.Logger), dial: amqp.DialConfig}, nil
}

// Connect dials the broker and declares the events exchange. Calling it on
// a live connection is a no-op.
func (c *Connection) Connect(ctx context.Context) error {
	if c == nil {
		return ErrNilConnection
	}

	_, span := otel.Tracer(constant.TelemetrySDKName).Start(ctx, "rabbitmq.connect")
	defer span.End()

	span.SetAttributes(attribute.String(constant.AttrDBSystem, constant.DBSystemRabbitMQ))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	cfg := c.cfg
	target := BuildConnectionString(cfg.Protocol, cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.VHost)

	conn, err := c.dial(target, amqp.Config{Dial: amqp.DefaultDial(cfg.DialTimeout), Properties: amqp.Table{"connection_name": constant.TelemetrySDKName}})
	if err != nil {
		c.logger.Log(ctx, log.LevelError, "failed to connect to rabbitmq", log.String("host", cfg.Host), log.Err(sanitize(err, cfg.Pass)))
		return fmt.Errorf("connecting to rabbitmq: %w", sanitize(err, cfg.Pass))
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("opening rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeKind, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declaring exchange %s: %w", cfg.Exchange, err)
	}

	c.conn = conn

	c.logger.Log(ctx, log.LevelInfo, "connected to rabbitmq", log.String("host", cfg.Host), log.String("exchange", cfg.Exchange))

	return nil
}

// Channel opens a dedicated channel on the live connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	if c == nil {
		return nil, ErrNilConnection
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	return c.conn.Channel()
}

// Exchange is the configured events exchange.
func (c *Connection) Exchange() string { return c.cfg.Exchange }

// Close closes the connection and every channel on it.
func (c *Connection) Close() error {
	if c == nil {
		return ErrNilConnection
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil

	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("closing rabbitmq connection: %w", err)
	}

	return nil
}

// sanitize keeps the password out of dial errors, which echo the URL.
func sanitize(err error, pass string) error {
	if pass == "" || !strings.Contains(err.Error(), pass) {
		return err
	}

	return errors.New(strings.ReplaceAll(err.Error(), pass, "****"))
}
