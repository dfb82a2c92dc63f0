package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
// Implementations are injected at construction; there is no ambient
// process-wide client.
type Store interface {
	Users(ctx context.Context) UserStore
	Sessions(ctx context.Context) SessionStore
	Activity(ctx context.Context) ActivityStore
}

// UserFilter narrows List results. Search matches email, first and last
// name case-insensitively. Page is 1-based.
type UserFilter struct {
	Search string
	Role   Role
	Status Status
	Page   int
	Limit  int
}

// UserStats aggregates dashboard counters.
type UserStats struct {
	TotalUsers    int `json:"totalUsers"`
	ActiveUsers   int `json:"activeUsers"`
	InactiveUsers int `json:"inactiveUsers"`
	SuperAdmins   int `json:"superAdmins"`
	Admins        int `json:"admins"`
}

// UserStore manages user records. Email uniqueness is case-insensitive;
// Create returns ErrConflict on a duplicate.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context) (UserStats, error)
}

// SessionStore manages session lifecycle. Deleting a user must cascade to
// that user's sessions (enforced by the backing store).
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	FindByToken(ctx context.Context, token string) (*Session, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ActivityStore appends immutable audit entries.
type ActivityStore interface {
	Append(ctx context.Context, entry *ActivityEntry) error
	ListRecent(ctx context.Context, limit int) ([]*ActivityEntry, error)
}
