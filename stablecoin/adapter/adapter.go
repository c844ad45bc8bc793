package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
)

// WalletKind identifies a wallet backend.
type WalletKind string

// Wallet kinds.
const (
	Direct    WalletKind = "DIRECT"
	Extension WalletKind = "EXTENSION"
	Relay     WalletKind = "RELAY"
	Custodial WalletKind = "CUSTODIAL"
	Multisig  WalletKind = "MULTISIG"
)

// ParseWalletKind accepts a kind name in any case.
func ParseWalletKind(s string) (WalletKind, error) {
	switch k := WalletKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case Direct, Extension, Relay, Custodial, Multisig:
		return k, nil
	default:
		return "", fmt.Errorf("unknown wallet kind %q", s)
	}
}

// Interactive reports whether signing waits on a party outside the process.
func (k WalletKind) Interactive() bool {
	switch k {
	case Extension, Relay, Custodial, Multisig:
		return true
	default:
		return false
	}
}

// Submits reports whether a successful SignAndSend reaches the ledger. A
// multisig wallet only parks the transaction.
func (k WalletKind) Submits() bool {
	return k != Multisig
}

func (k WalletKind) String() string { return string(k) }

// TransactionAdapter signs a transaction with one wallet and sends it.
type TransactionAdapter interface {
	Kind() WalletKind
	Account() ledger.Account
	SignAndSend(ctx context.Context, t *tx.Transaction, kind response.Kind, spec *response.DecodeSpec) (response.TransactionResponse, error)
}

// Networked is implemented by adapters bound to a ledger network.
type Networked interface {
	Network() string
}

// NetworkOf returns the network of a, or an empty string.
func NetworkOf(a TransactionAdapter) string {
	if n, ok := a.(Networked); ok {
		return n.Network()
	}

	return ""
}
