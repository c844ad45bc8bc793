package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sync"
	"time"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var (
	// ErrNilClient is returned by methods called on a nil *Client.
	ErrNilClient = errors.New("postgres client is nil")
	// ErrInvalidConfig is returned by New for an unusable Config.
	ErrInvalidConfig = errors.New("invalid postgres config")

	dbOpenFn = sql.Open

	connectionStringCredentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	connectionStringPasswordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
	dbNamePattern                      = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// Migrations is an embedded migration set applied on Connect.
type Migrations struct {
	FS  fs.FS
	Dir string
}

// Config describes the connection pair. ReplicaDSN defaults to PrimaryDSN.
type Config struct {
	PrimaryDSN         string      `env:"POSTGRES_PRIMARY_DSN"`
	ReplicaDSN         string      `env:"POSTGRES_REPLICA_DSN"`
	DBName             string      `env:"POSTGRES_DB_NAME"`
	MaxOpenConnections int         `env:"POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConnections int         `env:"POSTGRES_MAX_IDLE_CONNS"`
	Migrations         *Migrations `env:"-"`
	Logger             log.Logger  `env:"-"`
}

// Client owns the resolver over both pools.
type Client struct {
	cfg    Config
	logger log.Logger

	mu       sync.RWMutex
	resolver dbresolver.DB
	primary  *sql.DB
}

// New validates cfg. Call Connect before use, or let Resolver connect on demand.
func New(cfg Config) (*Client, error) {
	if cfg.PrimaryDSN == "" {
		return nil, fmt.Errorf("%w: primary DSN is required", ErrInvalidConfig)
	}

	if cfg.ReplicaDSN == "" {
		cfg.ReplicaDSN = cfg.PrimaryDSN
	}

	if cfg.DBName == "" {
		cfg.DBName = "stablecoin"
	}

	if err := validateDBName(cfg.DBName); err != nil {
		return nil, err
	}

	if cfg.MaxOpenConnections <= 0 {
		cfg.MaxOpenConnections = defaultMaxOpenConns
	}

	if cfg.MaxIdleConnections <= 0 {
		cfg.MaxIdleConnections = defaultMaxIdleConns
	}

	return &Client{cfg: cfg, logger: log.OrNop(cfg.Logger)}, nil
}

// Connect opens both pools, runs migrations on the primary and pings.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	ctx, span := otel.Tracer(constant.TelemetrySDKName).Start(ctx, "postgres.connect")
	defer span.End()

	span.SetAttributes(
		attribute.String(constant.AttrDBSystem, constant.DBSystemPostgreSQL),
		attribute.String(constant.AttrDBName, c.cfg.DBName),
	)

	if c.resolver != nil {
		if err := c.resolver.Close(); err != nil {
			c.logger.Log(ctx, log.LevelWarn, "failed to close previous connection before reconnect", log.Err(err))
		}

		c.resolver, c.primary = nil, nil
	}

	primary, err := c.open(c.cfg.PrimaryDSN)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to open primary", err)
		return fmt.Errorf("failed to connect to primary database: %w", err)
	}

	replica, err := c.open(c.cfg.ReplicaDSN)
	if err != nil {
		_ = primary.Close()

		opentelemetry.HandleSpanError(&span, "failed to open replica", err)

		return fmt.Errorf("failed to connect to replica database: %w", err)
	}

	resolver := dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	if err := resolver.PingContext(ctx); err != nil {
		_ = resolver.Close()

		opentelemetry.HandleSpanError(&span, "failed to ping database", err)
		c.logger.Log(ctx, log.LevelError, "failed to ping database", log.String("error", sanitizeSensitiveError(err)))

		return fmt.Errorf("failed to ping database: %s", sanitizeSensitiveError(err))
	}

	if c.cfg.Migrations != nil {
		if err := runMigrations(ctx, primary, c.cfg.DBName, *c.cfg.Migrations, c.logger); err != nil {
			_ = resolver.Close()

			opentelemetry.HandleSpanError(&span, "migration failed", err)

			return err
		}
	}

	c.resolver = resolver
	c.primary = primary

	c.logger.Log(ctx, log.LevelInfo, "connected to postgres", log.String("db_name", c.cfg.DBName))

	return nil
}

func (c *Client) open(dsn string) (*sql.DB, error) {
	db, err := dbOpenFn("pgx", dsn)
	if err != nil {
		return nil, errors.New(sanitizeSensitiveError(err))
	}

	db.SetMaxOpenConns(c.cfg.MaxOpenConnections)
	db.SetMaxIdleConns(c.cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	return db, nil
}

// Resolver returns the primary/replica resolver, connecting on first use.
//
//nolint:ireturn
func (c *Client) Resolver(ctx context.Context) (dbresolver.DB, error) {
	if c == nil {
		return nil, ErrNilClient
	}

	c.mu.RLock()
	if c.resolver != nil {
		db := c.resolver
		c.mu.RUnlock()

		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolver != nil {
		return c.resolver, nil
	}

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	return c.resolver, nil
}

// IsConnected reports whether Connect succeeded and Close was not called.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.resolver != nil
}

// Close releases both pools.
func (c *Client) Close() error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolver == nil {
		return nil
	}

	err := c.resolver.Close()
	c.resolver, c.primary = nil, nil

	return err
}

func sanitizeSensitiveError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := connectionStringCredentialsPattern.ReplaceAllString(err.Error(), "://***@")

	return connectionStringPasswordPattern.ReplaceAllString(sanitized, "${1}***")
}

func validateDBName(name string) error {
	if !dbNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid database name %q", ErrInvalidConfig, name)
	}

	return nil
}

func runMigrations(ctx context.Context, primary *sql.DB, dbName string, set Migrations, logger log.Logger) error {
	source, err := iofs.New(set.FS, set.Dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(primary, &postgres.Config{DatabaseName: dbName, SchemaName: "public"})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Log(ctx, log.LevelInfo, "no new migrations found")
			return nil
		}

		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return fmt.Errorf("migration failed: dirty database version %d", dirty.Version)
		}

		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Log(ctx, log.LevelInfo, "migrations applied")

	return nil
}
