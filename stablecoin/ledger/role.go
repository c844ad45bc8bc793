package ledger

import (
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Role is an access-control role of the stable coin contract.
type Role string

// Known roles.
const (
	RoleDefaultAdmin Role = "DEFAULT_ADMIN_ROLE"
	RoleCashIn       Role = "CASHIN_ROLE"
	RoleBurn         Role = "BURN_ROLE"
	RoleWipe         Role = "WIPE_ROLE"
	RoleRescue       Role = "RESCUE_ROLE"
	RolePause        Role = "PAUSE_ROLE"
	RoleFreeze       Role = "FREEZE_ROLE"
	RoleDelete       Role = "DELETE_ROLE"
	RoleKyc          Role = "KYC_ROLE"
	RoleCustomFees   Role = "CUSTOM_FEES_ROLE"
	RoleHoldCreator  Role = "HOLD_CREATOR_ROLE"
)

var knownRoles = map[Role]struct{}{
	RoleDefaultAdmin: {}, RoleCashIn: {}, RoleBurn: {}, RoleWipe: {}, RoleRescue: {}, RolePause: {},
	RoleFreeze: {}, RoleDelete: {}, RoleKyc: {}, RoleCustomFees: {}, RoleHoldCreator: {},
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}

	return r, nil
}

// Hash returns the on-chain role identifier: keccak256 of the name, or the
// zero hash for the default admin role.
func (r Role) Hash() [32]byte {
	var out [32]byte
	if r == RoleDefaultAdmin {
		return out
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(r))
	copy(out[:], h.Sum(nil))

	return out
}
