// Package adapter routes operations to the active wallet.
//
// A TransactionAdapter signs and sends a built transaction. Adapters are
// kept in a Registry keyed by WalletKind. The Operator decides the access
// path of each operation, builds the native transaction or the contract
// call and hands it to the active adapter.
package adapter
