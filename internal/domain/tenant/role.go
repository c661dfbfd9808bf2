package tenant

import (
	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
)

// Role is the caller's position in the hospital/branch hierarchy.
type Role string

const (
	RoleMasterAdmin  Role = "master_admin"
	RoleAdmin        Role = "admin"
	RoleSubAdmin     Role = "sub_admin"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
)

// roleScopes is the declarative scope-narrowing table: for each role, which
// tenant fields constrain the data it may see or touch. Evaluated once per
// request by the access filter; route handlers never hand-roll role checks
// against record fields.
var roleScopes = map[Role]struct {
	needsHospital bool
	needsBranch   bool
	ownUserOnly   bool
}{
	RoleMasterAdmin:  {needsHospital: false, needsBranch: false},
	RoleAdmin:        {needsHospital: true, needsBranch: false},
	RoleSubAdmin:     {needsHospital: true, needsBranch: true},
	RoleDoctor:       {needsHospital: true, needsBranch: true, ownUserOnly: true},
	RoleReceptionist: {needsHospital: true, needsBranch: true, ownUserOnly: true},
}

// ParseRole validates a role string from an identity claim.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleScopes[r]; !ok {
		return "", apperr.Validation("unknown role %q", s)
	}
	return r, nil
}

// ScopedToHospital reports whether records visible to the role are
// constrained to a single hospital.
func (r Role) ScopedToHospital() bool { return roleScopes[r].needsHospital }

// ScopedToBranch reports whether records visible to the role are constrained
// to a single branch.
func (r Role) ScopedToBranch() bool { return roleScopes[r].needsBranch }

// OwnUserOnly reports whether the role may only address its own user-scoped
// resources.
func (r Role) OwnUserOnly() bool { return roleScopes[r].ownUserOnly }
