package capability

import (
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
)

// Operation names a state-changing action on a stable coin.
type Operation string

// Operations.
const (
	CashIn               Operation = "CASH_IN"
	Burn                 Operation = "BURN"
	Wipe                 Operation = "WIPE"
	Freeze               Operation = "FREEZE"
	Unfreeze             Operation = "UNFREEZE"
	Pause                Operation = "PAUSE"
	Unpause              Operation = "UNPAUSE"
	Delete               Operation = "DELETE"
	Rescue               Operation = "RESCUE"
	RescueHBAR           Operation = "RESCUE_HBAR"
	RoleManagement       Operation = "ROLE_MANAGEMENT"
	RoleAdminManagement  Operation = "ROLE_ADMIN_MANAGEMENT"
	ReserveManagement    Operation = "RESERVE_MANAGEMENT"
	GrantKyc             Operation = "GRANT_KYC"
	RevokeKyc            Operation = "REVOKE_KYC"
	UpdateCustomFees     Operation = "UPDATE_CUSTOM_FEES"
	Transfers            Operation = "TRANSFERS"
	CreateHold           Operation = "CREATE_HOLD"
	ControllerCreateHold Operation = "CONTROLLER_CREATE_HOLD"
	ExecuteHold          Operation = "EXECUTE_HOLD"
	ReleaseHold          Operation = "RELEASE_HOLD"
	ReclaimHold          Operation = "RECLAIM_HOLD"
)

// Access is the execution path of an operation.
type Access string

// Access paths.
const (
	Native   Access = "NATIVE"
	Contract Access = "CONTRACT"
)

// Capability grants one operation through one access path.
type Capability struct {
	Operation Operation `json:"operation"`
	Access    Access    `json:"access"`
}

// TokenCapabilities is a per-call snapshot of what Account may do on Token.
// It is never mutated after Resolve returns it.
type TokenCapabilities struct {
	Token        ledger.Token   `json:"token"`
	Capabilities []Capability   `json:"capabilities"`
	Account      ledger.Account `json:"account"`
}

// Access returns the access path of op and whether op is allowed.
func (tc TokenCapabilities) Access(op Operation) (Access, bool) {
	for _, c := range tc.Capabilities {
		if c.Operation == op {
			return c.Access, true
		}
	}

	return "", false
}

// Has reports whether op is allowed.
func (tc TokenCapabilities) Has(op Operation) bool {
	_, ok := tc.Access(op)
	return ok
}

// ProxyID returns the proxy contract id, or the zero id for native-only tokens.
func (tc TokenCapabilities) ProxyID() ledger.ID {
	if tc.Token.ProxyAddress == nil {
		return ledger.ID{}
	}

	return *tc.Token.ProxyAddress
}
