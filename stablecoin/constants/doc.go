// Package constant holds error sentinels, telemetry attribute keys and
// protocol constants shared across lib-stablecoin.
package constant
