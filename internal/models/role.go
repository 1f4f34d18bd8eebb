package models

import "fmt"

// Role is the single role a user holds. The set is closed: every switch over
// Role must end in a deny default.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleRH        Role = "rh"
	RoleEncadreur Role = "encadreur"
	RoleStagiaire Role = "stagiaire"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleRH, RoleEncadreur, RoleStagiaire}

// ParseRole converts s into a Role, rejecting anything outside the set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRH, RoleEncadreur, RoleStagiaire:
		return true
	}
	return false
}

// IsStaff reports roles with administrative reach over applications.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleRH
}
