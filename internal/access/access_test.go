package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission_MatchesTable(t *testing.T) {
	t.Parallel()

	expected := map[Role]map[Permission]bool{
		RoleAdmin: {
			PermissionView: true, PermissionEdit: true, PermissionDelete: true, PermissionManage: true, PermissionConfigure: true,
		},
		RoleAnalyst: {
			PermissionView: true, PermissionEdit: true, PermissionDelete: false, PermissionManage: false, PermissionConfigure: false,
		},
		RoleViewer: {
			PermissionView: true, PermissionEdit: false, PermissionDelete: false, PermissionManage: false, PermissionConfigure: false,
		},
	}

	for role, perms := range expected {
		for perm, want := range perms {
			assert.Equal(t, want, HasPermission(role, perm), "role=%s permission=%s", role, perm)
		}
	}
}

func TestHasPermission_RolesAreNested(t *testing.T) {
	t.Parallel()

	for _, p := range AllPermissions {
		if HasPermission(RoleViewer, p) {
			assert.True(t, HasPermission(RoleAnalyst, p), "analyst must include viewer permission %s", p)
		}
		if HasPermission(RoleAnalyst, p) {
			assert.True(t, HasPermission(RoleAdmin, p), "admin must include analyst permission %s", p)
		}
	}
}

func TestHasPermission_Misses(t *testing.T) {
	t.Parallel()

	assert.False(t, HasPermission(RoleAdmin, "launch_missiles"))
	assert.False(t, HasPermission("", PermissionView))
	assert.False(t, HasPermission("superuser", PermissionView))
}

func TestPermissions_ReturnsCopy(t *testing.T) {
	t.Parallel()

	perms := Permissions(RoleAnalyst)
	require.Equal(t, []Permission{PermissionView, PermissionEdit}, perms)

	perms[0] = PermissionDelete
	assert.False(t, HasPermission(RoleAnalyst, PermissionDelete), "mutating the copy must not leak into the table")
	assert.Nil(t, Permissions("ghost"))
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, err := ParseRole(" Analyst ")
	require.NoError(t, err)
	assert.Equal(t, RoleAnalyst, r)

	_, err = ParseRole("root")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestPermission_Names(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]Permission{"view", "edit", "delete", "manage", "configure"},
		[]Permission{PermissionView, PermissionEdit, PermissionDelete, PermissionManage, PermissionConfigure},
	)
	assert.Equal(t, []Permission{PermissionView, PermissionEdit, PermissionDelete, PermissionManage, PermissionConfigure}, AllPermissions)
}
