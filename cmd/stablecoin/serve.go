package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter/custodial"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter/direct"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter/extension"
	multisigwallet "github.com/LerianStudio/lib-stablecoin/stablecoin/adapter/multisig"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter/relay"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/circuitbreaker"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/cron"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/event"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/mirror"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/multisig"
	libHTTP "github.com/LerianStudio/lib-stablecoin/stablecoin/net/http"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/postgres"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/rabbitmq"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/redis"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/server"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/session"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx/gateway"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP API, the wallet transports and the auto-submit job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

// service holds what serve assembled, so that it can be torn down.
type service struct {
	cfg       *Config
	logger    log.Logger
	telemetry *opentelemetry.Telemetry
	breakers  circuitbreaker.Manager
	manager   *server.ServerManager
	launcher  *stablecoin.Launcher

	ledger    tx.Client
	publisher event.Publisher
	redis     *redis.Client
}

func serve(ctx context.Context, cfg *Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	telemetry, err := opentelemetry.InitializeTelemetryWithError(&opentelemetry.TelemetryConfig{
		LibraryName:               moduleName,
		ServiceName:               cfg.ServiceName,
		ServiceVersion:            cfg.ServiceVersion,
		DeploymentEnv:             cfg.EnvName,
		CollectorExporterEndpoint: cfg.OtelEndpoint,
		EnableTelemetry:           cfg.EnableTelemetry,
		Logger:                    logger,
	})
	if err != nil {
		return err
	}

	svc := &service{
		cfg:       cfg,
		logger:    logger,
		telemetry: telemetry,
		breakers:  circuitbreaker.NewManager(logger),
		manager:   server.NewServerManager(telemetry, logger).WithShutdownTimeout(cfg.ShutdownTimeout),
		publisher: event.Nop{},
	}

	svc.launcher = stablecoin.NewLauncher(stablecoin.WithLogger(logger))

	if err := svc.assemble(ctx); err != nil {
		logger.Log(ctx, log.LevelError, "failed to start", log.Err(err))
		telemetry.ShutdownTelemetry(context.Background())

		return err
	}

	return svc.launcher.RunWithError(ctx)
}

func (s *service) assemble(ctx context.Context) error {
	ledgerReads, err := mirror.New(s.cfg.Mirror, mirror.WithBreakers(s.breakers), mirror.WithLogger(s.logger))
	if err != nil {
		return err
	}

	if s.cfg.Gateway.BaseURL != "" {
		gw, err := gateway.New(s.cfg.Gateway, gateway.WithBreakers(s.breakers), gateway.WithLogger(s.logger))
		if err != nil {
			return err
		}

		s.ledger = gw
	}

	if err := s.connectEvents(ctx); err != nil {
		return err
	}

	if s.cfg.RelayEnabled || s.cfg.MultisigEnabled {
		redisCfg := s.cfg.Redis
		redisCfg.Logger = s.logger

		if s.redis, err = redis.New(ctx, redisCfg); err != nil {
			return err
		}

		s.manager.WithCloser("redis", func(context.Context) error { return s.redis.Close() })
	}

	app := fiber.New(fiber.Config{
		AppName:               moduleName,
		DisableStartupMessage: true,
		ErrorHandler:          libHTTP.FiberErrorHandler,
	})
	app.Use(libHTTP.WithTelemetry(s.telemetry.Tracer()), libHTTP.WithHTTPLogging(s.logger))
	app.Get("/health", libHTTP.Ping)
	app.Get("/version", libHTTP.Version)

	registry := adapter.NewRegistry()

	if err := s.registerWallets(ctx, registry, app); err != nil {
		return err
	}

	sess, err := session.New(session.Options{
		Registry:  registry,
		Ledger:    ledgerReads,
		Publisher: s.publisher,
		Logger:    s.logger,
		Tracer:    s.telemetry.Tracer(),
	})
	if err != nil {
		return err
	}

	kind, err := adapter.ParseWalletKind(s.cfg.Wallet)
	if err != nil {
		return &stablecoin.ConfigurationError{Component: "wallet", Err: err}
	}

	if err := sess.Use(ctx, kind); err != nil {
		return err
	}

	newQueryAPI(sess).RegisterRoutes(app)

	s.manager.WithHTTPServer("api", app, s.cfg.ServerAddress)

	return s.launcher.Add("api", s.manager)
}

// connectEvents publishes domain events to RabbitMQ when enabled.
func (s *service) connectEvents(ctx context.Context) error {
	if !s.cfg.EventsEnabled {
		return nil
	}

	mqCfg := s.cfg.RabbitMQ
	mqCfg.Logger = s.logger

	conn, err := rabbitmq.NewConnection(mqCfg)
	if err != nil {
		return err
	}

	if err := conn.Connect(ctx); err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(err, conn.Close())
	}

	confirmable, err := rabbitmq.NewConfirmablePublisher(ch, rabbitmq.WithLogger(s.logger))
	if err != nil {
		return errors.Join(err, conn.Close())
	}

	s.publisher = rabbitmq.NewEventPublisher(confirmable, conn.Exchange())

	s.manager.WithCloser("rabbitmq", func(context.Context) error {
		return errors.Join(confirmable.Close(), conn.Close())
	})

	return nil
}

// registerWallets registers every wallet the configuration allows. The
// extension bridge is always available.
func (s *service) registerWallets(ctx context.Context, registry *adapter.Registry, app *fiber.App) error {
	bridge := extension.New(
		extension.WithSignTimeout(s.cfg.SignTimeout),
		extension.WithPublisher(s.publisher),
		extension.WithLogger(s.logger),
		extension.WithLedgerClient(s.ledger),
	)
	bridge.RegisterRoutes(app)
	registry.Register(bridge)

	if s.cfg.OperatorAccountID == "" {
		return nil
	}

	account, err := s.cfg.operatorAccount()
	if err != nil {
		return err
	}

	if account.PrivateKey != nil && s.ledger != nil {
		wallet, err := direct.New(account, s.ledger, direct.WithLogger(s.logger))
		if err != nil {
			return err
		}

		registry.Register(wallet)
	}

	if s.cfg.CustodialURL != "" && s.ledger != nil {
		signer := custodial.NewHTTPService(s.cfg.CustodialURL, s.cfg.CustodialToken, nil)

		wallet, err := custodial.New(account, s.cfg.CustodialWalletID, signer, s.ledger,
			custodial.WithBreakers(s.breakers), custodial.WithLogger(s.logger))
		if err != nil {
			return err
		}

		registry.Register(wallet)
	}

	if s.cfg.RelayEnabled {
		r, err := relay.New(s.redis,
			relay.WithSignTimeout(s.cfg.SignTimeout),
			relay.WithPublisher(s.publisher),
			relay.WithLogger(s.logger),
			relay.WithLedgerClient(s.ledger))
		if err != nil {
			return err
		}

		registry.Register(r)

		if err := s.launcher.Add("relay", stablecoin.AppFunc(func(ctx context.Context, _ *stablecoin.Launcher) error {
			if err := r.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()

			return nil
		})); err != nil {
			return err
		}
	}

	if s.cfg.MultisigEnabled {
		return s.startMultisig(ctx, registry, app, account)
	}

	return nil
}

// startMultisig runs the multi-signature backend in process: its store,
// HTTP API, wallet and auto-submit job.
func (s *service) startMultisig(ctx context.Context, registry *adapter.Registry, app *fiber.App, account ledger.Account) error {
	pgCfg := s.cfg.Postgres
	pgCfg.Migrations = multisig.Migrations()
	pgCfg.Logger = s.logger

	pg, err := postgres.New(pgCfg)
	if err != nil {
		return err
	}

	if err := pg.Connect(ctx); err != nil {
		return err
	}

	s.manager.WithCloser("postgres", func(context.Context) error { return pg.Close() })

	backend := multisig.NewService(multisig.NewPostgresRepository(pg), s.logger)
	multisig.NewHandler(backend).RegisterRoutes(app)

	if account.MultiKey != nil {
		wallet, err := multisigwallet.New(account, s.network(), backend, multisigwallet.WithLogger(s.logger))
		if err != nil {
			return err
		}

		registry.Register(wallet)
	}

	if s.ledger == nil {
		s.logger.Log(ctx, log.LevelWarn, "no ledger gateway configured; multisig auto-submit disabled")
		return nil
	}

	schedule, err := cron.Parse(s.cfg.AutoSubmitSchedule)
	if err != nil {
		return &stablecoin.ConfigurationError{Component: "multisig auto-submit", Err: err}
	}

	locks, err := redis.NewRedisLockManager(s.redis)
	if err != nil {
		return err
	}

	submitter := multisig.NewAutoSubmitter(multisig.NewPostgresRepository(pg), s.clientFor,
		multisig.WithLocks(locks),
		multisig.WithAutoSubmitLogger(s.logger))

	runner := cron.NewRunner("multisig-autosubmit", schedule, submitter.Run, s.logger)

	return s.launcher.Add("multisig-autosubmit", stablecoin.AppFunc(func(ctx context.Context, _ *stablecoin.Launcher) error {
		return runner.Run(ctx)
	}))
}

func (s *service) network() string {
	if s.ledger != nil {
		return s.ledger.Network()
	}

	return s.cfg.Mirror.Network
}

// clientFor serves the one configured gateway.
func (s *service) clientFor(network string) (tx.Client, error) {
	if s.ledger == nil || s.ledger.Network() != network {
		return nil, fmt.Errorf("no ledger gateway for network %q", network)
	}

	return s.ledger, nil
}
