// Package circuitbreaker wraps sony/gobreaker behind a named-service Manager.
//
// Remote collaborators (the custodial signing service and the mirror node)
// call through a Manager so that a failing dependency fails fast instead of
// stacking timeouts on every operation.
package circuitbreaker
