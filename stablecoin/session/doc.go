// Package session assembles the operation pipeline: the capability
// resolver, the validator, the transaction operator, the hold manager and
// the command and query buses with every handler registered.
//
// A Session is built once per process. Its buses are sealed, so the set of
// supported requests is fixed after New returns; only the active wallet
// can change, through Use.
package session
