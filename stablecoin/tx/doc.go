// Package tx builds unsigned ledger transactions and defines the client that
// submits them.
//
// A Transaction carries a typed body. Freeze assigns the transaction id and
// fixes the canonical CBOR body bytes that wallets sign. Contract calls are
// packed against the embedded stable coin ABI.
package tx
