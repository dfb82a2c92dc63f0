package auth

import "time"

// Role is a flat access label. Every gated operation declares the roles it
// accepts explicitly; no hierarchy is derived.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
)

// Status describes the lifecycle state of a user account. Only ACTIVE
// accounts may authenticate or hold valid sessions.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusPending  Status = "PENDING"
)

// Activity log action labels.
const (
	ActionLogin      = "LOGIN"
	ActionLogout     = "LOGOUT"
	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"
)

// User is an administrator account. Accounts are created by other
// administrators, never by self-registration.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	CreatedBy    *string    `json:"created_by,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session is a live authentication grant. The session row, not the token's
// embedded expiry, is the source of truth for revocation: logout deletes the
// row and the token dies with it even though its signature stays valid.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityEntry is an append-only record of a security-relevant action.
type ActivityEntry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`

	// Populated by joined reads for dashboard views.
	ActorEmail string `json:"actor_email,omitempty"`
	ActorName  string `json:"actor_name,omitempty"`
}

// RequestMeta carries caller network details into activity records.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
