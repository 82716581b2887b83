package auth

// Role represents a marketplace actor role.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleBuyer, RoleSupplier, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAllowed returns true when role is in the allowed set.
func RoleAllowed(role Role, allowed ...Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}
