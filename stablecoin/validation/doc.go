// Package validation runs request-shape rules and the pre-flight checks that
// guard every operation against live ledger state.
//
// Fields evaluates an explicit ordered list of (field, rule) pairs and
// collects every failure. Pipeline runs named checks in order and stops at
// the first failure. ForEach runs per-target checks concurrently and keeps
// all failures, ordered by target index.
package validation
