// Package session is the identity provider behind the admin surface. It
// performs the mock login (role derived from the email address), issues
// signed tokens and keeps live sessions in a Store so that logout revokes a
// token before it expires.
package session

import (
	"context"

	"github.com/vk/flowdash/internal/access"
)

// User is a logged-in identity. Role is fixed for the lifetime of the session.
type User struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  access.Role `json:"role"`
}

// Can reports whether u holds permission. A nil user holds nothing.
func (u *User) Can(permission access.Permission) bool {
	if u == nil {
		return false
	}
	return access.HasPermission(u.Role, permission)
}

// Permissions lists what u may do. A nil user gets an empty list.
func (u *User) Permissions() []access.Permission {
	if u == nil {
		return []access.Permission{}
	}
	return access.Permissions(u.Role)
}

type userContextKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the authenticated user, or nil when the request
// carries no session.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}
