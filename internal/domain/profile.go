package domain

import "time"

// Role enumerates the two caller roles. Assigned at registration and treated
// as immutable afterwards.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleSupportAgent Role = "support_agent"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleCustomer || r == RoleSupportAgent
}

// Profile is the per-identity record: one row per authenticated account.
type Profile struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Caller is the authenticated-caller value passed explicitly into every
// service operation. It is resolved once at the HTTP boundary; nothing below
// the middleware reads ambient session state.
type Caller struct {
	ID   string
	Role Role
}

// IsAgent reports whether the caller is a support agent.
func (c Caller) IsAgent() bool {
	return c.Role == RoleSupportAgent
}
