// Package authz resolves what an authenticated user may do.
// Roles live in the users table; callers ask for a Role and test capabilities
// on it instead of comparing raw strings.
package authz

import "strings"

// Role is the closed set of user roles.
type Role string

const (
	RoleTechnician  Role = "tecnico"
	RoleSupervisor  Role = "supervisor"
	RoleAdmin       Role = "administrador"
	RoleBeneficiary Role = "beneficiario"
)

// ParseRole returns the Role for s, or false when s is not a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleTechnician, RoleSupervisor, RoleAdmin, RoleBeneficiary:
		return r, true
	default:
		return "", false
	}
}

func (r Role) String() string { return string(r) }

// IsAdmin reports whether r is the administrator role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// IsTechnician reports whether r is the technician role.
func (r Role) IsTechnician() bool { return r == RoleTechnician }

// IsBeneficiary reports whether r is the beneficiary role.
func (r Role) IsBeneficiary() bool { return r == RoleBeneficiary }

// IsStaff reports whether r belongs to the maintenance organisation.
func (r Role) IsStaff() bool {
	return r == RoleTechnician || r == RoleSupervisor || r == RoleAdmin
}

// CanAssign reports whether r may route incidences to technicians.
func (r Role) CanAssign() bool {
	return r == RoleSupervisor || r == RoleAdmin
}

// CanReviewPosventa reports whether r may review posventa forms.
func (r Role) CanReviewPosventa() bool {
	return r == RoleTechnician || r == RoleAdmin
}

// CanDeliverHousing reports whether r may mark housing units as delivered.
func (r Role) CanDeliverHousing() bool {
	return r == RoleSupervisor || r == RoleAdmin
}

// CanViewDashboard reports whether r may read aggregated projections.
func (r Role) CanViewDashboard() bool {
	return r == RoleSupervisor || r == RoleAdmin
}
