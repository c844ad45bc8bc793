package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrUnsupportedKeyType is returned for key types other than ED25519 and ECDSA_SECP256K1.
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// DER prefixes used by ledger tooling when exporting ED25519 keys.
var (
	ed25519PrivateDERPrefix = []byte{0x30, 0x2e, 0x02, 0x01, 0x00, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x04, 0x22, 0x04, 0x20}
	ed25519PublicDERPrefix  = []byte{0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00}
)

const signatureSize = 64

// Keccak256 returns the legacy keccak256 digest of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}

	return h.Sum(nil)
}

// Sign signs message with key.
func Sign(key ledger.PrivateKey, message []byte) ([]byte, error) {
	raw, err := key.Bytes()
	if err != nil {
		return nil, err
	}

	switch key.Type {
	case ledger.KeyTypeED25519:
		seed := bytes.TrimPrefix(raw, ed25519PrivateDERPrefix)

		switch len(seed) {
		case ed25519.SeedSize:
			return ed25519.Sign(ed25519.NewKeyFromSeed(seed), message), nil
		case ed25519.PrivateKeySize:
			return ed25519.Sign(ed25519.PrivateKey(seed), message), nil
		default:
			return nil, fmt.Errorf("%w: ed25519 key has %d bytes", ledger.ErrInvalidKey, len(seed))
		}
	case ledger.KeyTypeSECP256K1:
		if len(raw) != secp256k1.PrivKeyBytesLen {
			return nil, fmt.Errorf("%w: secp256k1 key has %d bytes", ledger.ErrInvalidKey, len(raw))
		}

		priv := secp256k1.PrivKeyFromBytes(raw)
		compact := ecdsa.SignCompact(priv, Keccak256(message), false)

		// Drop the recovery byte: the ledger expects r||s.
		return compact[1:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, key.Type)
	}
}

// Verify checks signature over message against key.
func Verify(key ledger.PublicKey, message, signature []byte) error {
	raw, err := key.Bytes()
	if err != nil {
		return err
	}

	if len(signature) != signatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, signatureSize, len(signature))
	}

	switch key.Type {
	case ledger.KeyTypeED25519:
		pub := bytes.TrimPrefix(raw, ed25519PublicDERPrefix)
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 public key has %d bytes", ledger.ErrInvalidKey, len(pub))
		}

		if !ed25519.Verify(ed25519.PublicKey(pub), message, signature) {
			return ErrInvalidSignature
		}

		return nil
	case ledger.KeyTypeSECP256K1:
		pub, err := secp256k1.ParsePubKey(raw)
		if err != nil {
			return errors.Join(ledger.ErrInvalidKey, err)
		}

		var r, s secp256k1.ModNScalar
		if r.SetByteSlice(signature[:32]) || s.SetByteSlice(signature[32:]) {
			return ErrInvalidSignature
		}

		if !ecdsa.NewSignature(&r, &s).Verify(Keccak256(message), pub) {
			return ErrInvalidSignature
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKeyType, key.Type)
	}
}

// PublicKeyOf derives the public key of key. SECP256K1 keys are returned
// compressed.
func PublicKeyOf(key ledger.PrivateKey) (ledger.PublicKey, error) {
	raw, err := key.Bytes()
	if err != nil {
		return ledger.PublicKey{}, err
	}

	switch key.Type {
	case ledger.KeyTypeED25519:
		seed := bytes.TrimPrefix(raw, ed25519PrivateDERPrefix)

		var priv ed25519.PrivateKey

		switch len(seed) {
		case ed25519.SeedSize:
			priv = ed25519.NewKeyFromSeed(seed)
		case ed25519.PrivateKeySize:
			priv = ed25519.PrivateKey(seed)
		default:
			return ledger.PublicKey{}, ledger.ErrInvalidKey
		}

		pub, _ := priv.Public().(ed25519.PublicKey)

		return ledger.PublicKey{Key: hex.EncodeToString(pub), Type: key.Type}, nil
	case ledger.KeyTypeSECP256K1:
		if len(raw) != secp256k1.PrivKeyBytesLen {
			return ledger.PublicKey{}, ledger.ErrInvalidKey
		}

		pub := secp256k1.PrivKeyFromBytes(raw).PubKey()

		return ledger.PublicKey{Key: hex.EncodeToString(pub.SerializeCompressed()), Type: key.Type}, nil
	default:
		return ledger.PublicKey{}, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, key.Type)
	}
}

// GenerateKey creates a fresh key pair.
func GenerateKey(keyType ledger.KeyType) (ledger.PrivateKey, ledger.PublicKey, error) {
	switch keyType {
	case ledger.KeyTypeED25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return ledger.PrivateKey{}, ledger.PublicKey{}, err
		}

		return ledger.PrivateKey{Key: hex.EncodeToString(priv.Seed()), Type: keyType},
			ledger.PublicKey{Key: hex.EncodeToString(pub), Type: keyType}, nil
	case ledger.KeyTypeSECP256K1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return ledger.PrivateKey{}, ledger.PublicKey{}, err
		}

		return ledger.PrivateKey{Key: hex.EncodeToString(priv.Serialize()), Type: keyType},
			ledger.PublicKey{Key: hex.EncodeToString(priv.PubKey().SerializeCompressed()), Type: keyType}, nil
	default:
		return ledger.PrivateKey{}, ledger.PublicKey{}, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
	}
}
