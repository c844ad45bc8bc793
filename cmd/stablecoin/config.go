package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/mirror"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/multisig"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/postgres"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/rabbitmq"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/redis"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx/gateway"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/zap"
)

// Config is the process configuration. Nested sections read their own
// variables.
type Config struct {
	EnvName         string `env:"ENV_NAME"`
	LogLevel        string `env:"LOG_LEVEL"`
	ServiceName     string `env:"OTEL_RESOURCE_SERVICE_NAME"`
	ServiceVersion  string `env:"VERSION"`
	OtelEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTelemetry bool   `env:"ENABLE_TELEMETRY"`

	ServerAddress   string        `env:"SERVER_ADDRESS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	Wallet             string        `env:"WALLET_KIND"`
	OperatorAccountID  string        `env:"OPERATOR_ACCOUNT_ID"`
	OperatorPrivateKey string        `env:"OPERATOR_PRIVATE_KEY"`
	OperatorPublicKey  string        `env:"OPERATOR_PUBLIC_KEY"`
	OperatorKeyType    string        `env:"OPERATOR_KEY_TYPE"`
	SignTimeout        time.Duration `env:"WALLET_SIGN_TIMEOUT"`

	CustodialURL      string `env:"CUSTODIAL_URL"`
	CustodialToken    string `env:"CUSTODIAL_TOKEN"`
	CustodialWalletID string `env:"CUSTODIAL_WALLET_ID"`

	RelayEnabled bool `env:"RELAY_ENABLED"`

	MultisigEnabled    bool     `env:"MULTISIG_ENABLED"`
	MultisigKeys       []string `env:"MULTISIG_KEYS"`
	MultisigThreshold  int      `env:"MULTISIG_THRESHOLD"`
	AutoSubmitSchedule string   `env:"MULTISIG_AUTOSUBMIT_SCHEDULE"`

	EventsEnabled bool `env:"EVENTS_ENABLED"`

	Mirror   mirror.Config
	Gateway  gateway.Config
	Redis    redis.Config
	Postgres postgres.Config
	RabbitMQ rabbitmq.Config
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		EnvName:            string(zap.EnvironmentLocal),
		LogLevel:           "info",
		ServiceName:        moduleName,
		ServerAddress:      ":3000",
		ShutdownTimeout:    30 * time.Second,
		Wallet:             "EXTENSION",
		OperatorKeyType:    string(ledger.KeyTypeED25519),
		AutoSubmitSchedule: multisig.DefaultSchedule,
	}

	if err := stablecoin.SetConfigFromEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	return zap.New(zap.Config{
		Environment:     zap.Environment(cfg.EnvName),
		Level:           cfg.LogLevel,
		OTelLibraryName: cfg.ServiceName,
	})
}

func (c *Config) keyType() ledger.KeyType {
	if strings.EqualFold(c.OperatorKeyType, string(ledger.KeyTypeSECP256K1)) || strings.EqualFold(c.OperatorKeyType, "secp256k1") {
		return ledger.KeyTypeSECP256K1
	}

	return ledger.KeyTypeED25519
}

// operatorAccount is the acting account. The private key is optional; only
// the direct wallet needs it. A public key derived from it wins over
// OPERATOR_PUBLIC_KEY.
func (c *Config) operatorAccount() (ledger.Account, error) {
	if c.OperatorAccountID == "" {
		return ledger.Account{}, &stablecoin.ConfigurationError{Component: "operator account", Err: errors.New("OPERATOR_ACCOUNT_ID is required")}
	}

	id, err := ledger.ParseID(c.OperatorAccountID)
	if err != nil {
		return ledger.Account{}, &stablecoin.ConfigurationError{Component: "operator account", Err: err}
	}

	account := ledger.Account{ID: id}

	if c.OperatorPublicKey != "" {
		account.PublicKey = &ledger.PublicKey{Key: c.OperatorPublicKey, Type: c.keyType()}
	}

	if c.OperatorPrivateKey != "" {
		priv := ledger.PrivateKey{Key: c.OperatorPrivateKey, Type: c.keyType()}

		pub, err := crypto.PublicKeyOf(priv)
		if err != nil {
			return ledger.Account{}, &stablecoin.ConfigurationError{Component: "operator account", Err: err}
		}

		account.PrivateKey = &priv
		account.PublicKey = &pub
	}

	if len(c.MultisigKeys) > 0 {
		keys := make([]ledger.PublicKey, 0, len(c.MultisigKeys))
		for _, k := range c.MultisigKeys {
			keys = append(keys, ledger.PublicKey{Key: k, Type: c.keyType()})
		}

		account.MultiKey = &ledger.MultiKey{Keys: keys, Threshold: c.MultisigThreshold}
	}

	return account, nil
}
