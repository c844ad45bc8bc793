package tx

import (
	"math/big"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
)

// Kind is the ledger transaction type.
type Kind string

// Transaction kinds.
const (
	KindTokenMint              Kind = "TokenMint"
	KindTokenBurn              Kind = "TokenBurn"
	KindTokenWipe              Kind = "TokenWipe"
	KindTokenFreeze            Kind = "TokenFreeze"
	KindTokenUnfreeze          Kind = "TokenUnfreeze"
	KindTokenGrantKyc          Kind = "TokenGrantKyc"
	KindTokenRevokeKyc         Kind = "TokenRevokeKyc"
	KindTokenPause             Kind = "TokenPause"
	KindTokenUnpause           Kind = "TokenUnpause"
	KindTokenDelete            Kind = "TokenDelete"
	KindTransfer               Kind = "CryptoTransfer"
	KindTokenFeeScheduleUpdate Kind = "TokenFeeScheduleUpdate"
	KindContractCall           Kind = "ContractCall"
)

// MintBody mints Amount units to the treasury.
type MintBody struct {
	Token  ledger.ID `cbor:"1,keyasint"`
	Amount int64     `cbor:"2,keyasint"`
}

// BurnBody burns Amount units from the treasury.
type BurnBody struct {
	Token  ledger.ID `cbor:"1,keyasint"`
	Amount int64     `cbor:"2,keyasint"`
}

// WipeBody wipes Amount units from Account.
type WipeBody struct {
	Token   ledger.ID `cbor:"1,keyasint"`
	Account ledger.ID `cbor:"2,keyasint"`
	Amount  int64     `cbor:"3,keyasint"`
}

// AccountTokenBody targets one account of a token: freeze, unfreeze and KYC.
type AccountTokenBody struct {
	Token   ledger.ID `cbor:"1,keyasint"`
	Account ledger.ID `cbor:"2,keyasint"`
}

// TokenBody targets the token itself: pause, unpause and delete.
type TokenBody struct {
	Token ledger.ID `cbor:"1,keyasint"`
}

// AccountAmount is one leg of a transfer. Negative amounts debit.
type AccountAmount struct {
	Account    ledger.ID `cbor:"1,keyasint"`
	Amount     int64     `cbor:"2,keyasint"`
	IsApproval bool      `cbor:"3,keyasint,omitempty"`
}

// TransferBody moves a token, or HBAR when Token is zero.
type TransferBody struct {
	Token     ledger.ID       `cbor:"1,keyasint"`
	Transfers []AccountAmount `cbor:"2,keyasint"`
}

// FeeBody is a custom fee on the wire. Exactly one of Fixed and Fractional is set.
type FeeBody struct {
	Collector        ledger.ID          `cbor:"1,keyasint"`
	CollectorsExempt bool               `cbor:"2,keyasint"`
	Fixed            *FixedFeeBody      `cbor:"3,keyasint,omitempty"`
	Fractional       *FractionalFeeBody `cbor:"4,keyasint,omitempty"`
}

// FixedFeeBody is a fixed fee in units of DenominatingToken, or HBAR when nil.
type FixedFeeBody struct {
	Amount            int64      `cbor:"1,keyasint"`
	DenominatingToken *ledger.ID `cbor:"2,keyasint,omitempty"`
}

// FractionalFeeBody is a fraction of the transferred amount bounded by Min and Max.
type FractionalFeeBody struct {
	Numerator   int64 `cbor:"1,keyasint"`
	Denominator int64 `cbor:"2,keyasint"`
	Min         int64 `cbor:"3,keyasint"`
	Max         int64 `cbor:"4,keyasint"`
	Net         bool  `cbor:"5,keyasint"`
}

// FeeScheduleBody replaces the custom fees of a token.
type FeeScheduleBody struct {
	Token ledger.ID `cbor:"1,keyasint"`
	Fees  []FeeBody `cbor:"2,keyasint"`
}

// ContractCallBody executes Function on Contract with the ABI-packed Data.
type ContractCallBody struct {
	Contract ledger.ID `cbor:"1,keyasint"`
	Gas      uint64    `cbor:"2,keyasint"`
	Function string    `cbor:"3,keyasint"`
	Data     []byte    `cbor:"4,keyasint"`
	Payable  *big.Int  `cbor:"5,keyasint,omitempty"`
}

func newBody(kind Kind) any {
	switch kind {
	case KindTokenMint:
		return &MintBody{}
	case KindTokenBurn:
		return &BurnBody{}
	case KindTokenWipe:
		return &WipeBody{}
	case KindTokenFreeze, KindTokenUnfreeze, KindTokenGrantKyc, KindTokenRevokeKyc:
		return &AccountTokenBody{}
	case KindTokenPause, KindTokenUnpause, KindTokenDelete:
		return &TokenBody{}
	case KindTransfer:
		return &TransferBody{}
	case KindTokenFeeScheduleUpdate:
		return &FeeScheduleBody{}
	case KindContractCall:
		return &ContractCallBody{}
	default:
		return nil
	}
}
