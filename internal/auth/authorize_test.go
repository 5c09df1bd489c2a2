package auth

import "testing"

func TestPermissionGrants(t *testing.T) {
	cases := []struct {
		name     string
		perms    []string
		resource string
		action   string
		want     bool
	}{
		{"exact match", []string{"patients:read"}, "patients", "read", true},
		{"action mismatch", []string{"patients:read"}, "patients", "write", false},
		{"resource wildcard", []string{"patients:*"}, "patients", "delete", true},
		{"global wildcard", []string{"*:*"}, "anything", "at_all", true},
		{"empty set", nil, "patients", "read", false},
		{"wildcard does not cross resources", []string{"patients:*"}, "audit", "read", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PermissionGrants(tc.perms, tc.resource, tc.action); got != tc.want {
				t.Fatalf("PermissionGrants(%v, %q, %q) = %v, want %v",
					tc.perms, tc.resource, tc.action, got, tc.want)
			}
		})
	}
}

func TestRoleGrants(t *testing.T) {
	if !RoleGrants(RoleAdmin, "audit", "write") {
		t.Fatal("admin wildcard must grant everything")
	}
	if !RoleGrants("Auditor", "audit", "read") {
		t.Fatal("role lookup must be case-insensitive")
	}
	if RoleGrants(RoleNurse, "prescriptions", "write") {
		t.Fatal("nurse must not write prescriptions")
	}
	if RoleGrants("unknown-role", "patients", "read") {
		t.Fatal("unknown role must grant nothing")
	}
}
