package auth

import "strings"

// Role represents a user role. Viewers read snapshots, operators may trigger
// rebuilds and admins may read the audit trail.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Roles lists the known roles from least to most privileged.
var Roles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// NormalizeRole validates a role string, ignoring case and surrounding space.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if roleRank(role) == 0 {
		return "", false
	}
	return role, true
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	for i, r := range Roles {
		if r == role {
			return i + 1
		}
	}
	return 0
}
