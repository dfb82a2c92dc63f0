package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "kauntabook"

// Claims is the signed claim set embedded in access tokens.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 access tokens. The signing secret is
// injected at construction and never read from ambient process state.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithCodecIssuer overrides the issuer claim.
func WithCodecIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewTokenCodec constructs a codec for the given signing secret.
func NewTokenCodec(secret string, opts ...CodecOption) (*TokenCodec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	c := &TokenCodec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for the user with the given ttl and returns the token
// along with its expiry.
func (c *TokenCodec) Issue(user *User, ttl time.Duration) (string, time.Time, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("auth: ttl must be greater than zero")
	}

	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature before trusting any claim and returns the
// decoded claim set. Failure modes stay distinct: ErrTokenMalformed for
// undecodable input, ErrTokenExpired for a correctly signed but stale token,
// ErrInvalidToken for a bad signature or claim set.
func (c *TokenCodec) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithIssuer(c.issuer))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
