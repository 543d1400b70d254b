// Package access is the permission model. It maps each role to a fixed set of
// permissions and answers whether a role may perform an action. It holds no
// state and never fails: unknown roles and permissions simply miss the table.
package access

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned by ParseRole for values outside the role set.
var ErrUnknownRole = errors.New("unknown role")

// Role classifies an identity. Each session carries exactly one role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// Permission is a named capability gating an action.
type Permission string

const (
	PermissionView      Permission = "view"
	PermissionEdit      Permission = "edit"
	PermissionDelete    Permission = "delete"
	PermissionManage    Permission = "manage"
	PermissionConfigure Permission = "configure"
)

// AllPermissions lists every permission in display order.
var AllPermissions = []Permission{PermissionView, PermissionEdit, PermissionDelete, PermissionManage, PermissionConfigure}

// rolePermissions is the static table. admin ⊇ analyst ⊇ viewer.
var rolePermissions = map[Role][]Permission{
	RoleAdmin:   {PermissionView, PermissionEdit, PermissionDelete, PermissionManage, PermissionConfigure},
	RoleAnalyst: {PermissionView, PermissionEdit},
	RoleViewer:  {PermissionView},
}

// HasPermission reports whether role grants permission.
func HasPermission(role Role, permission Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the permission set granted to role, or nil
// for an unknown role.
func Permissions(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// ParseRole converts s, case-insensitively, into a known Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}
