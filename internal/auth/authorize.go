package auth

// IsValid reports whether the role is one of the predefined labels.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsValid reports whether the status is one of the predefined labels.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	default:
		return false
	}
}

// Authorize reports whether the role appears in the allowed set. Pure
// membership: an operation open to admins and above lists both labels
// explicitly rather than relying on implied seniority.
func Authorize(role Role, allowed ...Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// ParseRole validates a raw role label.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	return role, role.IsValid()
}
