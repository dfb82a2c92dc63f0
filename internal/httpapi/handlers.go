package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kauntabook.org/internal/auth"
	"kauntabook.org/internal/obs"
	"kauntabook.org/internal/stream"
)

// ReadyProbe checks backing dependencies, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions *auth.Service
	users    *auth.UserService
	stream   *stream.Stream

	rateBurst  int
	ratePerSec int
}

// Config carries the API's collaborators and tunables.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string
	Sessions   *auth.Service
	Users      *auth.UserService
	Stream     *stream.Stream
	RateBurst  int
	RatePerSec int
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		sessions:   cfg.Sessions,
		users:      cfg.Users,
		stream:     cfg.Stream,
		rateBurst:  cfg.RateBurst,
		ratePerSec: cfg.RatePerSec,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 25
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	// user management
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// dashboard
	a.mux.HandleFunc("/v1/dashboard/stats", a.handleDashboardStats)
	a.mux.HandleFunc("/v1/dashboard/activity/stream", a.handleActivityStream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kauntabook-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "kauntabook-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("value must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("value must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}

// handleAuthError maps service errors onto HTTP responses. Token failure
// modes stay distinct internally but collapse into one client message so a
// caller cannot probe which check rejected the token.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrAccountNotActive):
		writeError(w, r, http.StatusForbidden, "Account is not active")
	case errors.Is(err, auth.ErrMissingToken):
		writeError(w, r, http.StatusUnauthorized, "access token required")
	case errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrSelfDelete):
		writeError(w, r, http.StatusBadRequest, "Cannot delete your own account")
	case errors.Is(err, auth.ErrSelfStatusChange):
		writeError(w, r, http.StatusBadRequest, "Cannot change your own status")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "User with this email already exists")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, clientInputMessage(err))
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// clientInputMessage drops the internal sentinel prefix from a validation
// error so only the human-readable detail reaches the client.
func clientInputMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, auth.ErrInvalidInput.Error()); ok {
		rest = strings.TrimPrefix(rest, ": ")
		if rest != "" {
			return rest
		}
		return "invalid input"
	}
	return msg
}
