package multisig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
)

// Status is the lifecycle state of a stored transaction.
type Status string

// Transaction states.
const (
	StatusPending Status = "PENDING"
	StatusSigned  Status = "SIGNED"
	StatusExpired Status = "EXPIRED"
	StatusError   Status = "ERROR"
)

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))

	switch st {
	case StatusPending, StatusSigned, StatusExpired, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Networks accepted by the backend.
var Networks = []string{"mainnet", "testnet", "previewnet", "local"}

var (
	// ErrInvalidID is returned for an id that is not a uuid.
	ErrInvalidID = errors.New("invalid transaction uuid format")
	// ErrAlreadySigned is returned when a key signs twice.
	ErrAlreadySigned = errors.New("message already signed")
	// ErrUnauthorizedKey is returned for a key outside the key list.
	ErrUnauthorizedKey = errors.New("unauthorized key")
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidStatus is returned for an unknown status filter.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidNetwork is returned for an unknown network.
	ErrInvalidNetwork = errors.New("invalid network")
)

// Transaction is a stored multi-signature transaction. Message is the hex
// encoding of the frozen body bytes; SignedKeys and Signatures are parallel.
type Transaction struct {
	ID          string    `json:"id"`
	Message     string    `json:"transaction_message"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Threshold   int       `json:"threshold"`
	AccountID   string    `json:"hedera_account_id"`
	KeyList     []string  `json:"key_list"`
	SignedKeys  []string  `json:"signed_keys"`
	Signatures  []string  `json:"signatures"`
	Network     string    `json:"network"`
	StartDate   time.Time `json:"start_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasSigned reports whether key already signed.
func (t Transaction) HasSigned(key string) bool {
	return containsKey(t.SignedKeys, key)
}

// Authorizes reports whether key is in the key list.
func (t Transaction) Authorizes(key string) bool {
	return containsKey(t.KeyList, key)
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Message     string    `json:"transaction_message"`
	Description string    `json:"description"`
	AccountID   string    `json:"hedera_account_id"`
	KeyList     []string  `json:"key_list"`
	Threshold   int       `json:"threshold"`
	Network     string    `json:"network"`
	StartDate   time.Time `json:"start_date"`
}

// SignInput is the body of a sign request.
type SignInput struct {
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	PublicKey string
	Status    Status
	Network   string
	Page      int
	Limit     int
}

// Page is one page of results.
type Page struct {
	Items      []Transaction `json:"items"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalItems int           `json:"totalItems"`
	TotalPages int           `json:"totalPages"`
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(k), "0x"))
}

func containsKey(keys []string, key string) bool {
	key = normalizeKey(key)

	for _, k := range keys {
		if normalizeKey(k) == key {
			return true
		}
	}

	return false
}

// dedupeKeys normalizes keys and drops repeats, keeping first occurrence order.
func dedupeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))

	for _, k := range keys {
		k = normalizeKey(k)
		if _, ok := seen[k]; ok || k == "" {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, k)
	}

	return out
}

// publicKey infers the key type from its encoded length: compressed or
// uncompressed SEC1 points are SECP256K1, everything else ED25519.
func publicKey(hexKey string) ledger.PublicKey {
	switch len(normalizeKey(hexKey)) {
	case 66, 130:
		return ledger.PublicKey{Key: normalizeKey(hexKey), Type: ledger.KeyTypeSECP256K1}
	default:
		return ledger.PublicKey{Key: normalizeKey(hexKey), Type: ledger.KeyTypeED25519}
	}
}
