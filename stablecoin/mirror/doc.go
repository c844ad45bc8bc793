// Package mirror reads ledger state from a mirror node REST API.
//
// A Client serves tokens, token relationships, accounts and native balances
// from /api/v1, and hold data through read-only contract calls against the
// token proxy. Every request runs through a retry policy and a circuit
// breaker; 404 replies map to constant.ErrNotFound and are not retried.
package mirror
