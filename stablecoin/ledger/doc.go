// Package ledger defines the data model shared by the operation pipeline:
// entity ids, accounts and keys, token metadata, token relationships, custom
// fees, roles and escrow holds.
package ledger
