package hold

import (
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
)

// Phase is the lifecycle position of a hold.
type Phase string

// Phases. Closed is a hold the ledger no longer reports, or reports with
// nothing left in it, whose final phase is unknown.
const (
	Active    Phase = "ACTIVE"
	Executed  Phase = "EXECUTED"
	Released  Phase = "RELEASED"
	Reclaimed Phase = "RECLAIMED"
	Closed    Phase = "CLOSED"
)

// Terminal reports whether no further event is accepted.
func (p Phase) Terminal() bool { return p != Active }

// Event is a lifecycle transition request.
type Event string

// Events.
const (
	Execute Event = "EXECUTE"
	Release Event = "RELEASE"
	Reclaim Event = "RECLAIM"
)

// State is a hold's phase and the amount still escrowed.
type State struct {
	Phase     Phase
	Remaining bigdecimal.BigDecimal
}

// Apply returns the state after event moves amount out of the hold.
// Execute and Release may move part of the remaining amount, leaving the
// hold Active. Reclaim always moves all of it and ignores amount.
func Apply(s State, e Event, amount bigdecimal.BigDecimal) (State, error) {
	if s.Phase.Terminal() {
		v := stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "holdId",
			fmt.Sprintf("cannot %s a hold that is %s", e, s.Phase))
		if s.Phase == Closed {
			v = v.WithReason(constant.ErrHoldNotFound)
		}

		return s, v
	}

	var done Phase

	switch e {
	case Execute:
		done = Executed
	case Release:
		done = Released
	case Reclaim:
		if !s.Remaining.IsPositive() {
			return s, stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "holdId",
				"cannot reclaim a hold with nothing left in it")
		}

		return State{Phase: Reclaimed, Remaining: bigdecimal.Zero(s.Remaining.Decimals())}, nil
	default:
		return s, stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "event",
			fmt.Sprintf("unknown hold event %q", e))
	}

	if !amount.IsPositive() {
		return s, stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "amount",
			fmt.Sprintf("amount %s must be greater than zero", amount))
	}

	if amount.GreaterThan(s.Remaining) {
		return s, stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "amount",
			fmt.Sprintf("amount %s exceeds the held amount %s", amount, s.Remaining))
	}

	remaining := s.Remaining.Sub(amount)
	if remaining.IsZero() {
		return State{Phase: done, Remaining: remaining}, nil
	}

	return State{Phase: Active, Remaining: remaining}, nil
}
