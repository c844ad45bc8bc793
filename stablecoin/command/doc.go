// Package command holds the state-changing requests of a stable coin and
// their handlers. Each handler resolves the acting account's capabilities,
// runs its checks in a fixed order and only then sends a transaction
// through the active wallet.
package command
