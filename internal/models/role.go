package models

// Role is the caller's privilege level, resolved once when a request is authenticated.
type Role int

const (
	// RoleRegular is an authenticated user without admin privileges.
	RoleRegular Role = iota
	// RoleAdmin can use the admin panel but needs approval to change admin flags.
	RoleAdmin
	// RoleSuperAdmin may change admin flags directly and resolves pending requests.
	RoleSuperAdmin
)

// RoleFor maps directory flags to a role. A super-admin is always an admin.
func RoleFor(isAdmin, isSuperAdmin bool) Role {
	switch {
	case isSuperAdmin:
		return RoleSuperAdmin
	case isAdmin:
		return RoleAdmin
	default:
		return RoleRegular
	}
}

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleAdmin:
		return "admin"
	default:
		return "regular"
	}
}

// ParseRole maps a role name to a Role. An empty name is RoleRegular.
func ParseRole(name string) (Role, bool) {
	switch name {
	case "", "regular", "user":
		return RoleRegular, true
	case "admin":
		return RoleAdmin, true
	case "super_admin", "superadmin":
		return RoleSuperAdmin, true
	}
	return RoleRegular, false
}

// IsAdmin reports whether the role grants admin panel access.
func (r Role) IsAdmin() bool {
	return r >= RoleAdmin
}

// IsSuperAdmin reports whether the role grants unilateral authority over admin flags.
func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// Caller is the authenticated identity handed to services.
type Caller struct {
	UserID uint
	Role   Role
}
