package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
	"github.com/gofiber/fiber/v2"
)

// ErrNoServersConfigured indicates no servers were configured for the manager.
var ErrNoServersConfigured = errors.New("no servers configured: use WithHTTPServer()")

const defaultShutdownTimeout = 30 * time.Second

type httpServer struct {
	name    string
	app     *fiber.App
	address string
}

type closer struct {
	name  string
	close func(context.Context) error
}

// ServerManager runs the fiber apps of a process and shuts them down, then
// the registered resources, then telemetry, in that order.
type ServerManager struct {
	servers            []httpServer
	closers            []closer
	telemetry          *opentelemetry.Telemetry
	logger             log.Logger
	serversStarted     chan struct{}
	serversStartedOnce sync.Once
	shutdownOnce       sync.Once
	shutdownTimeout    time.Duration
	startupErrors      chan error
}

// NewServerManager returns a ServerManager. A nil logger is replaced by a
// no-op one.
func NewServerManager(telemetry *opentelemetry.Telemetry, logger log.Logger) *ServerManager {
	return &ServerManager{
		telemetry:       telemetry,
		logger:          log.OrNop(logger),
		serversStarted:  make(chan struct{}),
		shutdownTimeout: defaultShutdownTimeout,
		startupErrors:   make(chan error, 4),
	}
}

// WithHTTPServer adds a fiber app listening on address.
func (sm *ServerManager) WithHTTPServer(name string, app *fiber.App, address string) *ServerManager {
	sm.servers = append(sm.servers, httpServer{name: name, app: app, address: address})

	if cap(sm.startupErrors) < len(sm.servers) {
		sm.startupErrors = make(chan error, len(sm.servers))
	}

	return sm
}

// WithCloser adds a resource closed after the servers stopped, such as a
// broker connection or a database pool.
func (sm *ServerManager) WithCloser(name string, fn func(context.Context) error) *ServerManager {
	sm.closers = append(sm.closers, closer{name: name, close: fn})

	return sm
}

// WithShutdownTimeout bounds the wait for in-flight requests. Defaults to
// 30 seconds.
func (sm *ServerManager) WithShutdownTimeout(d time.Duration) *ServerManager {
	if d > 0 {
		sm.shutdownTimeout = d
	}

	return sm
}

// ServersStarted is closed once the server goroutines were launched. It
// does not mean the sockets are bound.
func (sm *ServerManager) ServersStarted() <-chan struct{} {
	return sm.serversStarted
}

// Run starts the servers and blocks until ctx is done or a server fails to
// start, then shuts everything down. It implements stablecoin.App.
func (sm *ServerManager) Run(ctx context.Context, _ *stablecoin.Launcher) error {
	if len(sm.servers) == 0 {
		return ErrNoServersConfigured
	}

	sm.startServers(ctx)

	var startupErr error

	select {
	case <-ctx.Done():
	case startupErr = <-sm.startupErrors:
		sm.logger.Log(ctx, log.LevelError, "server startup failed", log.Err(startupErr))
	}

	sm.logger.Log(ctx, log.LevelInfo, "gracefully shutting down all servers")

	return errors.Join(startupErr, sm.executeShutdown())
}

// StartWithGracefulShutdown runs the servers until SIGINT or SIGTERM.
func (sm *ServerManager) StartWithGracefulShutdown() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sm.Run(ctx, nil)
}

func (sm *ServerManager) startServers(ctx context.Context) {
	for _, srv := range sm.servers {
		runtime.SafeGoWithContextAndComponent(ctx, sm.logger, "server", "start_"+srv.name, func(ctx context.Context) {
			sm.logger.Log(ctx, log.LevelInfo, "starting HTTP server", log.String("server", srv.name), log.String("address", srv.address))

			if err := srv.app.Listen(srv.address); err != nil {
				select {
				case sm.startupErrors <- fmt.Errorf("%s server: %w", srv.name, err):
				default:
				}
			}
		})
	}

	sm.logger.Log(ctx, log.LevelInfo, "launched server goroutines", log.Int("count", len(sm.servers)))

	sm.serversStartedOnce.Do(func() { close(sm.serversStarted) })
}

// executeShutdown runs once. Later calls return nil.
func (sm *ServerManager) executeShutdown() error {
	var errs []error

	sm.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
		defer cancel()

		for _, srv := range sm.servers {
			sm.logger.Log(ctx, log.LevelInfo, "shutting down HTTP server", log.String("server", srv.name))

			if err := srv.app.ShutdownWithContext(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s server: %w", srv.name, err))
			}
		}

		for i := len(sm.closers) - 1; i >= 0; i-- {
			c := sm.closers[i]

			if err := c.close(ctx); err != nil {
				sm.logger.Log(ctx, log.LevelError, "failed to close resource", log.String("resource", c.name), log.Err(err))
				errs = append(errs, fmt.Errorf("closing %s: %w", c.name, err))
			}
		}

		if sm.telemetry != nil {
			sm.telemetry.ShutdownTelemetry(ctx)
		}

		if err := sm.logger.Sync(ctx); err != nil {
			errs = append(errs, fmt.Errorf("syncing logger: %w", err))
		}
	})

	return errors.Join(errs...)
}
