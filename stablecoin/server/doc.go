// Package server runs the HTTP surfaces of a process, such as the wallet
// bridge and the multisig API, and shuts them down in order.
package server
