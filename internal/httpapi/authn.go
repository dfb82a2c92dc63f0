package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"kauntabook.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth resolves the bearer token into an identity for every protected
// path. The session row decides validity; the signature check alone is not
// enough.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="kauntabook"`)
			writeError(w, r, http.StatusUnauthorized, "access token required")
			return
		}

		user, err := a.sessions.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrAccountNotActive):
				w.Header().Set("WWW-Authenticate", `Bearer realm="kauntabook"`)
				writeError(w, r, http.StatusForbidden, "Account is not active")
			case errors.Is(err, auth.ErrMissingToken),
				errors.Is(err, auth.ErrTokenMalformed),
				errors.Is(err, auth.ErrTokenExpired),
				errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrSessionExpired),
				errors.Is(err, auth.ErrSessionNotFound):
				w.Header().Set("WWW-Authenticate", `Bearer realm="kauntabook"`)
				writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole enforces the allow-set for a handler and returns the acting
// user. A false return means the response has been written.
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, allowed ...auth.Role) (*auth.User, bool) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="kauntabook"`)
		writeError(w, r, http.StatusUnauthorized, "access token required")
		return nil, false
	}
	if !auth.Authorize(user.Role, allowed...) {
		required := make([]string, 0, len(allowed))
		for _, role := range allowed {
			required = append(required, string(role))
		}
		payload := map[string]any{
			"error":    "insufficient permissions",
			"required": required,
			"current":  string(user.Role),
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusForbidden, payload)
		return nil, false
	}
	return user, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
