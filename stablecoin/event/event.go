// Package event defines the domain events emitted around wallets and
// submitted transactions, and the Publisher they are sent through.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

// Domain events.
const (
	WalletPaired         Type = "WalletPaired"
	WalletDisconnected   Type = "WalletDisconnected"
	TransactionSubmitted Type = "TransactionSubmitted"
)

// Event is the published payload.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	OccurredAt    time.Time `json:"occurredAt"`
	Wallet        string    `json:"wallet,omitempty"`
	AccountID     string    `json:"accountId,omitempty"`
	TokenID       string    `json:"tokenId,omitempty"`
	Operation     string    `json:"operation,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	Network       string    `json:"network,omitempty"`
}

// New returns an event of type t with a fresh id.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// OrNop returns p, or Nop when p is nil.
//
//nolint:ireturn
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}

	return p
}

// Emit publishes ev and logs a failure instead of returning it. Events never
// fail the operation that raised them.
func Emit(ctx context.Context, logger log.Logger, p Publisher, ev Event) {
	if p == nil {
		return
	}

	if err := p.Publish(ctx, ev); err != nil {
		log.OrNop(logger).Log(ctx, log.LevelWarn, "failed to publish event",
			log.String("event_type", string(ev.Type)),
			log.String("event_id", ev.ID),
			log.Err(err))
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)

	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	events := r.Events()

	out := make([]Type, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}

	return out
}
