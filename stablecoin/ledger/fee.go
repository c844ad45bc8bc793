package ledger

import (
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
)

// CustomFee is either a *FixedFee or a *FractionalFee.
type CustomFee interface {
	Collector() ID
	Exempt() bool
	customFee()
}

// FixedFee charges a flat amount. A nil DenominatingTokenID means the
// native currency.
type FixedFee struct {
	CollectorID         ID
	CollectorsExempt    bool
	Amount              bigdecimal.BigDecimal
	DenominatingTokenID *ID
}

// Collector implements CustomFee.
func (f *FixedFee) Collector() ID { return f.CollectorID }

// Exempt implements CustomFee.
func (f *FixedFee) Exempt() bool { return f.CollectorsExempt }

func (*FixedFee) customFee() {}

// FractionalFee charges Numerator/Denominator of the transferred amount,
// bounded by Min and Max. Net makes the sender pay the fee on top.
type FractionalFee struct {
	CollectorID      ID
	CollectorsExempt bool
	Numerator        int64
	Denominator      int64
	Min              bigdecimal.BigDecimal
	Max              bigdecimal.BigDecimal
	Net              bool
}

// Collector implements CustomFee.
func (f *FractionalFee) Collector() ID { return f.CollectorID }

// Exempt implements CustomFee.
func (f *FractionalFee) Exempt() bool { return f.CollectorsExempt }

func (*FractionalFee) customFee() {}
