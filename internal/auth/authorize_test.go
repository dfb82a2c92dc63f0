package auth

import "testing"

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name    string
		role    Role
		allowed []Role
		want    bool
	}{
		{"super admin in admin set", RoleSuperAdmin, []Role{RoleSuperAdmin, RoleAdmin}, true},
		{"admin in admin set", RoleAdmin, []Role{RoleSuperAdmin, RoleAdmin}, true},
		{"admin not in super admin set", RoleAdmin, []Role{RoleSuperAdmin}, false},
		{"no implied seniority", RoleSuperAdmin, []Role{RoleAdmin}, false},
		{"empty allowed set", RoleSuperAdmin, nil, false},
		{"unknown role", Role("OWNER"), []Role{RoleSuperAdmin, RoleAdmin}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.role, tc.allowed...); got != tc.want {
				t.Fatalf("Authorize(%q, %v) = %v, want %v", tc.role, tc.allowed, got, tc.want)
			}
		})
	}
}

func TestRoleAndStatusValidation(t *testing.T) {
	if !RoleSuperAdmin.IsValid() || !RoleAdmin.IsValid() {
		t.Fatalf("predefined roles must be valid")
	}
	if Role("owner").IsValid() || Role("").IsValid() {
		t.Fatalf("unknown roles must be invalid")
	}
	if !StatusActive.IsValid() || !StatusInactive.IsValid() || !StatusPending.IsValid() {
		t.Fatalf("predefined statuses must be valid")
	}
	if Status("SUSPENDED").IsValid() {
		t.Fatalf("unknown status must be invalid")
	}

	if role, ok := ParseRole("SUPER_ADMIN"); !ok || role != RoleSuperAdmin {
		t.Fatalf("ParseRole(SUPER_ADMIN) = %q, %v", role, ok)
	}
	if _, ok := ParseRole("super_admin"); ok {
		t.Fatalf("role labels are case sensitive")
	}
}
