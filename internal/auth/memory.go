package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and for local runs without
// Postgres. All maps are guarded by a single RWMutex; returned records are
// copies so callers cannot mutate store state.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User    // by id
	emails   map[string]string   // lowercased email -> id
	sessions map[string]*Session // by token
	activity []*ActivityEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		emails:   make(map[string]string),
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Users(ctx context.Context) UserStore       { return (*memoryUsers)(m) }
func (m *MemoryStore) Sessions(ctx context.Context) SessionStore { return (*memorySessions)(m) }
func (m *MemoryStore) Activity(ctx context.Context) ActivityStore {
	return (*memoryActivity)(m)
}

type memoryUsers MemoryStore

func (m *memoryUsers) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, exists := m.emails[key]; exists {
		return ErrConflict
	}
	cp := *u
	m.users[u.ID] = &cp
	m.emails[key] = u.ID
	return nil
}

func (m *memoryUsers) Find(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *memoryUsers) List(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*User, 0, len(m.users))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if search != "" {
			haystack := strings.ToLower(u.Email + " " + u.FirstName + " " + u.LastName)
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		cp := *u
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []*User{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memoryUsers) Update(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	oldKey := strings.ToLower(old.Email)
	newKey := strings.ToLower(u.Email)
	if oldKey != newKey {
		if _, exists := m.emails[newKey]; exists {
			return ErrConflict
		}
		delete(m.emails, oldKey)
		m.emails[newKey] = u.ID
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

// Delete removes the user along with every session it owns, mirroring the
// foreign key cascade of the SQL store.
func (m *memoryUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.emails, strings.ToLower(u.Email))
	delete(m.users, id)
	for token, s := range m.sessions {
		if s.UserID == id {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *memoryUsers) RecordLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	t := at
	u.LastLoginAt = &t
	u.UpdatedAt = at
	return nil
}

func (m *memoryUsers) Stats(ctx context.Context) (UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats UserStats
	for _, u := range m.users {
		stats.TotalUsers++
		switch u.Status {
		case StatusActive:
			stats.ActiveUsers++
		case StatusInactive:
			stats.InactiveUsers++
		}
		switch u.Role {
		case RoleSuperAdmin:
			stats.SuperAdmins++
		case RoleAdmin:
			stats.Admins++
		}
	}
	return stats, nil
}

type memorySessions MemoryStore

func (m *memorySessions) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *memorySessions) FindByToken(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memorySessions) DeleteByToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, token)
	return nil
}

func (m *memorySessions) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *memorySessions) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for token, s := range m.sessions {
		if !s.ExpiresAt.After(before) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

type memoryActivity MemoryStore

func (m *memoryActivity) Append(ctx context.Context, entry *ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.activity = append(m.activity, &cp)
	return nil
}

// ListRecent returns entries newest first, enriched with the acting user's
// email and name when the account still exists.
func (m *memoryActivity) ListRecent(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	out := make([]*ActivityEntry, 0, limit)
	for i := len(m.activity) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.activity[i]
		if u, ok := m.users[cp.UserID]; ok {
			cp.ActorEmail = u.Email
			cp.ActorName = strings.TrimSpace(u.FirstName + " " + u.LastName)
		}
		out = append(out, &cp)
	}
	return out, nil
}
