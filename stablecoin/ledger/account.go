package ledger

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// KeyType is the signature scheme of a key.
type KeyType string

// Supported key types.
const (
	KeyTypeED25519   KeyType = "ED25519"
	KeyTypeSECP256K1 KeyType = "ECDSA_SECP256K1"
)

// ErrInvalidKey is returned for malformed hex keys.
var ErrInvalidKey = errors.New("invalid key")

// PublicKey is a hex-encoded public key.
type PublicKey struct {
	Key  string  `json:"key" cbor:"1,keyasint"`
	Type KeyType `json:"type" cbor:"2,keyasint"`
}

// Bytes decodes the key.
func (k PublicKey) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(k.Key, "0x"))
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}

	return b, nil
}

// Equal compares keys ignoring case and a 0x prefix.
func (k PublicKey) Equal(other PublicKey) bool {
	return normalizeHex(k.Key) == normalizeHex(other.Key)
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// PrivateKey is a hex-encoded private key. It is never logged or serialized.
type PrivateKey struct {
	Key  string  `json:"-"`
	Type KeyType `json:"-"`
}

// Bytes decodes the key.
func (k PrivateKey) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(k.Key, "0x"))
	if err != nil {
		return nil, ErrInvalidKey
	}

	return b, nil
}

// String hides the key material.
func (k PrivateKey) String() string { return "PrivateKey(" + string(k.Type) + ")" }

// MultiKey is a threshold key list.
type MultiKey struct {
	Keys      []PublicKey `json:"keys"`
	Threshold int         `json:"threshold"`
}

// Account is the acting identity. It is replaced as a whole on reconnect.
type Account struct {
	ID         ID              `json:"id"`
	PublicKey  *PublicKey      `json:"publicKey,omitempty"`
	PrivateKey *PrivateKey     `json:"-"`
	EVMAddress *common.Address `json:"evmAddress,omitempty"`
	MultiKey   *MultiKey       `json:"multiKey,omitempty"`
}

// Address returns the EVM alias when known and the long-zero address otherwise.
func (a Account) Address() common.Address {
	if a.EVMAddress != nil {
		return *a.EVMAddress
	}

	return a.ID.ToEVMAddress()
}
