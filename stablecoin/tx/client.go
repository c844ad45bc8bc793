package tx

import (
	"context"
)

// Status is the ledger outcome of a transaction.
type Status string

// Statuses with a meaning outside the ledger's own codes.
const (
	// StatusSuccess is the only successful ledger status.
	StatusSuccess Status = "SUCCESS"
	// StatusPending marks a transaction waiting for more signatures.
	StatusPending Status = "PENDING"
)

// SubmitResult is returned by the node that accepted a transaction.
type SubmitResult struct {
	TransactionID string `json:"transactionId"`
	NodeID        string `json:"nodeId,omitempty"`
	Network       string `json:"network"`
}

// Receipt is the consensus outcome of a transaction.
type Receipt struct {
	TransactionID string `json:"transactionId"`
	Status        Status `json:"status"`
}

// Record is the full outcome including the raw contract call result.
type Record struct {
	Receipt
	ContractResult []byte `json:"contractResult,omitempty"`
}

// Client submits signed transactions to the ledger and fetches their
// outcome. Implementations own the network wire format.
type Client interface {
	Network() string
	Submit(ctx context.Context, t *Transaction) (SubmitResult, error)
	Receipt(ctx context.Context, transactionID string) (Receipt, error)
	Record(ctx context.Context, transactionID string) (Record, error)
}
