package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin      = "admin"
	RoleSubAccount = "subaccount"
	RoleSupport    = "support" // internal-only role, never listed in tenant UIs
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsInternalRole(role string) bool { return role == RoleSupport }
