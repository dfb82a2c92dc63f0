package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"kauntabook.org/internal/ids"
	"kauntabook.org/internal/obs"
)

// DefaultSessionTTL is the fixed validity window for issued sessions.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Service is the session manager: it issues sessions for verified
// credentials, validates inbound tokens against live sessions, and revokes
// sessions on logout.
type Service struct {
	store      Store
	codec      *TokenCodec
	sessionTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSessionTTL overrides the session validity window.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("auth: session ttl must be greater than zero")
		}
		s.sessionTTL = ttl
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the session manager with its collaborators injected.
func NewService(store Store, codec *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:      store,
		codec:      codec,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// LoginResult is returned by Authenticate. The user carries no password
// hash in serialized form.
type LoginResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticate verifies credentials and issues a session. The status check
// runs only after the password verifies, so an inactive account with a
// correct password fails with ErrAccountNotActive rather than
// ErrInvalidCredentials (deliberate, matches the upstream behavior).
func (s *Service) Authenticate(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status != StatusActive {
		return nil, ErrAccountNotActive
	}

	token, expiresAt, err := s.codec.Issue(user, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &Session{
		ID:        ids.New(),
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.store.Sessions(ctx).Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.store.Users(ctx).RecordLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	if err := s.recordActivity(ctx, &ActivityEntry{
		UserID:     user.ID,
		Action:     ActionLogin,
		TargetType: "USER",
		TargetID:   user.ID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken resolves a bearer token into an identity. The session row is
// authoritative: a signed token with a live embedded expiry is still rejected
// once its session is gone or stale. Runs on every protected request.
func (s *Service) ValidateToken(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	if _, err := s.codec.Verify(token); err != nil {
		return nil, err
	}

	session, err := s.store.Sessions(ctx).FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	user, err := s.store.Users(ctx).Find(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, ErrAccountNotActive
	}
	return user, nil
}

// EndSession revokes the session bound to the token. Callers are expected to
// have passed ValidateToken first, so a missing session surfaces as
// ErrSessionNotFound.
func (s *Service) EndSession(ctx context.Context, token string, actor *User, meta RequestMeta) error {
	if err := s.store.Sessions(ctx).DeleteByToken(ctx, token); err != nil {
		return err
	}
	entry := &ActivityEntry{
		Action:     ActionLogout,
		TargetType: "USER",
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	if actor != nil {
		entry.UserID = actor.ID
		entry.TargetID = actor.ID
	}
	return s.recordActivity(ctx, entry)
}

// SweepExpiredSessions deletes sessions whose expiry has passed and returns
// the number removed. Expired sessions are already invalid at read time;
// sweeping just reclaims the rows.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.store.Sessions(ctx).DeleteExpired(ctx, s.now().UTC())
}

// RunSessionSweeper reaps expired sessions on a timer until ctx ends.
func (s *Service) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.SweepExpiredSessions(ctx)
			if err != nil {
				obs.LogRequest(map[string]any{
					"ts": s.now().UTC().Format(time.RFC3339Nano), "level": "warn",
					"msg": "session_sweep_failed", "error": err.Error(),
				})
				continue
			}
			if removed > 0 {
				obs.LogRequest(map[string]any{
					"ts": s.now().UTC().Format(time.RFC3339Nano), "level": "info",
					"msg": "session_sweep", "removed": removed,
				})
			}
		}
	}
}

func (s *Service) recordActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	return s.store.Activity(ctx).Append(ctx, entry)
}
