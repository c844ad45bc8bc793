// Package hold validates and performs the escrow lifecycle of a stable
// coin: creating holds, executing or releasing them to a destination, and
// reclaiming them once they expire.
//
// Every lifecycle call re-reads the hold from the ledger before any
// transaction is built. A hold the ledger no longer reports is treated as
// closed, so repeated or late calls fail with OperationNotAllowed instead of
// reaching the network.
package hold
