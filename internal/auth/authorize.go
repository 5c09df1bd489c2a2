package auth

import "strings"

// PermissionGrants reports whether a permission set allows resource:action.
// Grants match on the exact pair, a resource wildcard (resource:*), or the
// global wildcard (*:*).
func PermissionGrants(perms []string, resource, action string) bool {
	want := resource + ":" + action
	for _, p := range perms {
		switch p {
		case want, resource + ":*", "*:*":
			return true
		}
	}
	return false
}

// RoleGrants checks the configured permission set of a role.
func RoleGrants(role, resource, action string) bool {
	return PermissionGrants(DefaultRolePermissions[strings.ToLower(role)], resource, action)
}
