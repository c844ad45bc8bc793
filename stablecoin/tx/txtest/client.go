// Package txtest provides an in-memory tx.Client for tests.
package txtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
)

// Client accepts every transaction and serves configurable outcomes.
type Client struct {
	NetworkName string

	mu        sync.Mutex
	submitted []*tx.Transaction
	statuses  map[string]tx.Status
	results   map[string][]byte
	submitErr error
}

// NewClient returns a Client for network.
func NewClient(network string) *Client {
	return &Client{
		NetworkName: network,
		statuses:    map[string]tx.Status{},
		results:     map[string][]byte{},
	}
}

// FailWith makes transactions calling function (or of kind, for native
// transactions) end with status.
func (c *Client) FailWith(functionOrKind string, status tx.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[functionOrKind] = status
}

// ReturnOnSubmit makes Submit fail with err.
func (c *Client) ReturnOnSubmit(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitErr = err
}

// SetResult sets the raw contract result returned for function.
func (c *Client) SetResult(function string, result []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[function] = result
}

// Submitted returns the transactions accepted so far.
func (c *Client) Submitted() []*tx.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*tx.Transaction, len(c.submitted))
	copy(out, c.submitted)

	return out
}

// Network implements tx.Client.
func (c *Client) Network() string { return c.NetworkName }

// Submit implements tx.Client.
func (c *Client) Submit(_ context.Context, t *tx.Transaction) (tx.SubmitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return tx.SubmitResult{}, c.submitErr
	}

	if !t.Frozen() {
		return tx.SubmitResult{}, tx.ErrNotFrozen
	}

	c.submitted = append(c.submitted, t)

	return tx.SubmitResult{TransactionID: t.TransactionID(), NodeID: "0.0.3", Network: c.NetworkName}, nil
}

// Receipt implements tx.Client.
func (c *Client) Receipt(_ context.Context, transactionID string) (tx.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.find(transactionID)
	if t == nil {
		return tx.Receipt{}, fmt.Errorf("transaction %s not found", transactionID)
	}

	return tx.Receipt{TransactionID: transactionID, Status: c.status(t)}, nil
}

// Record implements tx.Client.
func (c *Client) Record(ctx context.Context, transactionID string) (tx.Record, error) {
	receipt, err := c.Receipt(ctx, transactionID)
	if err != nil {
		return tx.Record{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return tx.Record{Receipt: receipt, ContractResult: c.results[c.find(transactionID).Function()]}, nil
}

func (c *Client) find(transactionID string) *tx.Transaction {
	for _, t := range c.submitted {
		if t.TransactionID() == transactionID {
			return t
		}
	}

	return nil
}

func (c *Client) status(t *tx.Transaction) tx.Status {
	if s, ok := c.statuses[t.Function()]; ok && t.Function() != "" {
		return s
	}

	if s, ok := c.statuses[string(t.Kind)]; ok {
		return s
	}

	return tx.StatusSuccess
}
