package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kauntabook.org/internal/ids"
)

const minPasswordLength = 8

// CreateUserInput carries the fields accepted on user creation.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// UserUpdate mutates a subset of user fields; nil means leave unchanged.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Role      *Role
	Status    *Status
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// DashboardStats bundles usage counters with the most recent activity.
type DashboardStats struct {
	Stats          UserStats        `json:"stats"`
	RecentActivity []*ActivityEntry `json:"recentActivity"`
}

// UserService covers administrative user management: creation, profile and
// role updates, deletion and listing. Self-modification guards live here,
// layered on top of the generic role check.
type UserService struct {
	store Store
	now   func() time.Time
}

// UserServiceOption configures UserService.
type UserServiceOption func(*UserService)

// WithUserClock overrides the time source (useful for tests).
func WithUserClock(fn func() time.Time) UserServiceOption {
	return func(s *UserService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewUserService constructs the user management service.
func NewUserService(store Store, opts ...UserServiceOption) (*UserService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &UserService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create adds a user account on behalf of actor. The email is normalized to
// lowercase and must be unique case-insensitively.
func (s *UserService) Create(ctx context.Context, actor *User, input CreateUserInput, meta RequestMeta) (*User, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: acting user is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if !input.Role.IsValid() {
		return nil, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, input.Role)
	}

	if _, err := s.store.Users(ctx).FindByEmail(ctx, email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	creatorID := actor.ID
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         input.Role,
		Status:       StatusActive,
		CreatedBy:    &creatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.recordActivity(ctx, actor, &ActivityEntry{
		Action:     ActionCreateUser,
		TargetType: "USER",
		TargetID:   user.ID,
		Details:    map[string]any{"userEmail": user.Email, "userRole": string(user.Role)},
	}, meta); err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies a partial update to the user identified by id. An actor may
// not toggle their own status; that guard runs before any store mutation.
func (s *UserService) Update(ctx context.Context, actor *User, id string, upd UserUpdate, meta RequestMeta) (*User, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: acting user is required", ErrInvalidInput)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Status != nil && id == actor.ID {
		return nil, ErrSelfStatusChange
	}
	if upd.Role != nil && !upd.Role.IsValid() {
		return nil, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, *upd.Role)
	}
	if upd.Status != nil && !upd.Status.IsValid() {
		return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, *upd.Status)
	}

	user, err := s.store.Users(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
		changes["firstName"] = user.FirstName
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
		changes["lastName"] = user.LastName
	}
	if upd.Role != nil {
		user.Role = *upd.Role
		changes["role"] = string(user.Role)
	}
	if upd.Status != nil {
		user.Status = *upd.Status
		changes["status"] = string(user.Status)
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.recordActivity(ctx, actor, &ActivityEntry{
		Action:     ActionUpdateUser,
		TargetType: "USER",
		TargetID:   user.ID,
		Details:    map[string]any{"changes": changes},
	}, meta); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user account and, through the store's cascade, every
// session that user owns. Self-deletion is rejected before any store call.
func (s *UserService) Delete(ctx context.Context, actor *User, id string, meta RequestMeta) error {
	if actor == nil {
		return fmt.Errorf("%w: acting user is required", ErrInvalidInput)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if id == actor.ID {
		return ErrSelfDelete
	}

	user, err := s.store.Users(ctx).Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Users(ctx).Delete(ctx, id); err != nil {
		return err
	}

	return s.recordActivity(ctx, actor, &ActivityEntry{
		Action:     ActionDeleteUser,
		TargetType: "USER",
		TargetID:   id,
		Details:    map[string]any{"deletedUserEmail": user.Email},
	}, meta)
}

// Get returns a single user by id.
func (s *UserService) Get(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Find(ctx, id)
}

// List returns a page of users matching the filter.
func (s *UserService) List(ctx context.Context, filter UserFilter) ([]*User, Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 10
	}
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, Pagination{}, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, filter.Role)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, Pagination{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, filter.Status)
	}

	users, total, err := s.store.Users(ctx).List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}
	pages := total / filter.Limit
	if total%filter.Limit != 0 {
		pages++
	}
	return users, Pagination{
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
		Pages: pages,
	}, nil
}

// Dashboard returns aggregate counters plus the ten most recent activity
// entries.
func (s *UserService) Dashboard(ctx context.Context) (DashboardStats, error) {
	stats, err := s.store.Users(ctx).Stats(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	recent, err := s.store.Activity(ctx).ListRecent(ctx, 10)
	if err != nil {
		return DashboardStats{}, err
	}
	return DashboardStats{Stats: stats, RecentActivity: recent}, nil
}

func (s *UserService) recordActivity(ctx context.Context, actor *User, entry *ActivityEntry, meta RequestMeta) error {
	entry.ID = ids.New()
	entry.UserID = actor.ID
	entry.IPAddress = meta.IPAddress
	entry.UserAgent = meta.UserAgent
	entry.CreatedAt = s.now().UTC()
	return s.store.Activity(ctx).Append(ctx, entry)
}
