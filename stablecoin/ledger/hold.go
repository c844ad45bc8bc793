package ledger

import (
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/ethereum/go-ethereum/common"
)

// Hold is an escrowed amount as stored by the stable coin contract.
type Hold struct {
	ID         int64                 `json:"id"`
	Source     ID                    `json:"source"`
	Amount     bigdecimal.BigDecimal `json:"amount"`
	Escrow     common.Address        `json:"escrow"`
	Target     common.Address        `json:"target"`
	Expiration time.Time             `json:"expiration"`
	Data       string                `json:"data,omitempty"`
}

// HasTarget reports whether the hold names a destination.
func (h Hold) HasTarget() bool { return h.Target != (common.Address{}) }

// Expired reports whether the hold expired at now.
func (h Hold) Expired(now time.Time) bool { return h.Expiration.Before(now) }
