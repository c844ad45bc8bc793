package constant

import "time"

// Ledger protocol limits.
const (
	// MaxCustomFees is the number of custom fees a token may carry.
	MaxCustomFees = 10
	// HbarDecimals is the precision of the native currency.
	HbarDecimals = 8
	// TransactionValidDuration is how long a frozen transaction stays valid.
	TransactionValidDuration = 180 * time.Second
)

// Retry defaults.
const (
	RelationshipRetryAttempts = 3
	RelationshipRetryInterval = time.Second
	CustodialPollAttempts     = 3
	CustodialPollInterval     = time.Second
)
