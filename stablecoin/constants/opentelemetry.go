package constant

// TelemetrySDKName is the instrumentation scope of this library.
const TelemetrySDKName = "lib-stablecoin"

// Span attribute keys.
const (
	AttrTokenID       = "stablecoin.token_id"
	AttrAccountID     = "stablecoin.account_id"
	AttrOperation     = "stablecoin.operation"
	AttrAccess        = "stablecoin.access"
	AttrWalletKind    = "stablecoin.wallet"
	AttrTransactionID = "stablecoin.transaction_id"
	AttrNetwork       = "stablecoin.network"
	AttrHoldID        = "stablecoin.hold_id"
	AttrRequestType   = "stablecoin.request_type"
	AttrStep          = "stablecoin.validation_step"
)

// Database and broker identifiers for AttrDBSystem.
const (
	AttrDBSystem       = "db.system"
	AttrDBName         = "db.name"
	DBSystemPostgreSQL = "postgresql"
	DBSystemRedis      = "redis"
	DBSystemRabbitMQ   = "rabbitmq"
)
