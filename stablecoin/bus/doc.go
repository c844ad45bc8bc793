// Package bus dispatches typed requests to their single registered handler.
//
// Handlers are registered per request type with Register and the registry is
// sealed before use. Execute is the typed entry point; Dispatch accepts any
// request value.
package bus
