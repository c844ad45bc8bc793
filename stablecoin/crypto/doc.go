// Package crypto signs and verifies transaction body bytes with ledger
// keys.
//
// ED25519 keys sign the raw bytes. ECDSA_SECP256K1 keys sign the keccak256
// digest and produce 64-byte r||s signatures.
package crypto
