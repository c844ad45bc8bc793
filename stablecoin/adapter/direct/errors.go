package direct

import "errors"

var (
	errMissingKey    = errors.New("account has no private key")
	errMissingClient = errors.New("ledger client is required")
)
