package ledger

import (
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
)

// Key is a token key: either a public key or a contract id. A nil *Key
// means the key is not set on the token.
type Key struct {
	PublicKey  *PublicKey `json:"publicKey,omitempty"`
	ContractID *ID        `json:"contractId,omitempty"`
}

// PublicKeyOf builds a Key holding pk.
func PublicKeyOf(pk PublicKey) *Key { return &Key{PublicKey: &pk} }

// ContractKeyOf builds a Key holding a contract id.
func ContractKeyOf(id ID) *Key { return &Key{ContractID: &id} }

// IsContract reports whether k is the given contract.
func (k *Key) IsContract(contract ID) bool {
	return k != nil && k.ContractID != nil && *k.ContractID == contract
}

// IsPublicKey reports whether k holds a public key.
func (k *Key) IsPublicKey() bool {
	return k != nil && k.PublicKey != nil
}

// TokenKeys lists the administrative keys of a token.
type TokenKeys struct {
	Admin       *Key `json:"adminKey,omitempty"`
	Supply      *Key `json:"supplyKey,omitempty"`
	Wipe        *Key `json:"wipeKey,omitempty"`
	Freeze      *Key `json:"freezeKey,omitempty"`
	Kyc         *Key `json:"kycKey,omitempty"`
	Pause       *Key `json:"pauseKey,omitempty"`
	FeeSchedule *Key `json:"feeScheduleKey,omitempty"`
}

// Token is the ledger view of a stable coin.
type Token struct {
	ID               ID                    `json:"tokenId"`
	Name             string                `json:"name"`
	Symbol           string                `json:"symbol"`
	Decimals         int32                 `json:"decimals"`
	ProxyAddress     *ID                   `json:"proxyAddress,omitempty"`
	Treasury         ID                    `json:"treasury"`
	AutoRenewAccount *ID                   `json:"autoRenewAccount,omitempty"`
	Memo             string                `json:"memo,omitempty"`
	Paused           bool                  `json:"paused"`
	Deleted          bool                  `json:"deleted"`
	TotalSupply      bigdecimal.BigDecimal `json:"totalSupply"`
	MaxSupply        bigdecimal.BigDecimal `json:"maxSupply"`
	InfiniteSupply   bool                  `json:"infiniteSupply"`
	Keys             TokenKeys             `json:"keys"`
	CustomFees       []CustomFee           `json:"-"`
}

// IsProxyKey reports whether k is the token's proxy contract.
func (t Token) IsProxyKey(k *Key) bool {
	return t.ProxyAddress != nil && k.IsContract(*t.ProxyAddress)
}

// Operable reports whether regular operations may run on the token.
func (t Token) Operable() bool { return !t.Deleted && !t.Paused }

// KycStatus of an account for a token.
type KycStatus string

// Kyc statuses.
const (
	KycGranted       KycStatus = "GRANTED"
	KycRevoked       KycStatus = "REVOKED"
	KycNotApplicable KycStatus = "NOT_APPLICABLE"
)

// FreezeStatus of an account for a token.
type FreezeStatus string

// Freeze statuses.
const (
	Frozen              FreezeStatus = "FROZEN"
	Unfrozen            FreezeStatus = "UNFROZEN"
	FreezeNotApplicable FreezeStatus = "NOT_APPLICABLE"
)

// Relationship is the association between an account and a token. A nil
// *Relationship means the account is not associated.
type Relationship struct {
	TokenID      ID                    `json:"tokenId"`
	AccountID    ID                    `json:"accountId"`
	Balance      bigdecimal.BigDecimal `json:"balance"`
	KycStatus    KycStatus             `json:"kycStatus"`
	FreezeStatus FreezeStatus          `json:"freezeStatus"`
}

// IsFrozen reports a frozen relationship.
func (r *Relationship) IsFrozen() bool { return r != nil && r.FreezeStatus == Frozen }

// IsKycRevoked reports a relationship whose KYC was revoked.
func (r *Relationship) IsKycRevoked() bool { return r != nil && r.KycStatus == KycRevoked }
