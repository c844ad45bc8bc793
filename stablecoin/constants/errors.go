package constant

import "errors"

// Business rule sentinels. The message is the public error code.
var (
	// ErrStableCoinNotAssociated maps to error code 0001.
	ErrStableCoinNotAssociated = errors.New("0001")
	// ErrAccountFreeze maps to error code 0002.
	ErrAccountFreeze = errors.New("0002")
	// ErrAccountNotKyc maps to error code 0003.
	ErrAccountNotKyc = errors.New("0003")
	// ErrDecimalsOverRange maps to error code 0004.
	ErrDecimalsOverRange = errors.New("0004")
	// ErrOperationNotAllowed maps to error code 0005.
	ErrOperationNotAllowed = errors.New("0005")
	// ErrInsufficientFunds maps to error code 0006.
	ErrInsufficientFunds = errors.New("0006")
	// ErrMaxSupplyExceeded maps to error code 0007.
	ErrMaxSupplyExceeded = errors.New("0007")
	// ErrMaxCustomFeesExceeded maps to error code 0008.
	ErrMaxCustomFeesExceeded = errors.New("0008")
	// ErrHoldNotFound maps to error code 0009.
	ErrHoldNotFound = errors.New("0009")
	// ErrHoldExpired maps to error code 0010.
	ErrHoldExpired = errors.New("0010")
	// ErrHoldNotExpired maps to error code 0011.
	ErrHoldNotExpired = errors.New("0011")
	// ErrNotEscrow maps to error code 0012.
	ErrNotEscrow = errors.New("0012")
	// ErrHoldTargetMismatch maps to error code 0013.
	ErrHoldTargetMismatch = errors.New("0013")
	// ErrKycKeyMissing maps to error code 0014.
	ErrKycKeyMissing = errors.New("0014")
)

// Request and pipeline sentinels.
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrHandlerNotFound      = errors.New("no handler registered for request")
	ErrDuplicateHandler     = errors.New("handler already registered for request")
	ErrRegistrySealed       = errors.New("handler registry is sealed")
	ErrNoActiveWallet       = errors.New("no active wallet")
	ErrWalletNotRegistered  = errors.New("wallet kind not registered")
	ErrNotPaired            = errors.New("wallet not paired")
	ErrSignatureTimeout     = errors.New("signature timeout")
	ErrSignatureRejected    = errors.New("signature rejected")
	ErrDuplicateSubmission  = errors.New("transaction already submitted")
	ErrUnsupportedOperation = errors.New("operation not supported by wallet")
	ErrReceiptNotSuccess    = errors.New("transaction receipt status is not SUCCESS")
	ErrNotFound             = errors.New("not found")
)
