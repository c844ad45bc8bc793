// Package stablecoin is the root of lib-stablecoin. It holds the error
// taxonomy shared by every layer of the operation pipeline, request-scoped
// context helpers, environment configuration and the application launcher.
//
// The pipeline itself lives in subpackages: capability, validation, bus,
// adapter, response and hold, wired together by session.
package stablecoin
