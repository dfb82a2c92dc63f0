package httpapi

import (
	"net/http"
	"strings"

	"kauntabook.org/internal/audit"
	"kauntabook.org/internal/auth"
	"kauntabook.org/internal/obs"
	"kauntabook.org/internal/stream"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	res, err := a.sessions.Authenticate(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		obs.ObserveLogin("failure")
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("success")

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": res.User.ID,
		"email":   res.User.Email,
	})
	a.publishActivity(auth.ActionLogin, res.User, "USER", res.User.ID)

	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	user, _ := auth.IdentityFromContext(r.Context())
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "access token required")
		return
	}

	if err := a.sessions.EndSession(r.Context(), token, user, requestMeta(r)); err != nil {
		handleAuthError(w, r, err)
		return
	}

	fields := map[string]any{}
	if user != nil {
		fields["user_id"] = user.ID
		a.publishActivity(auth.ActionLogout, user, "USER", user.ID)
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", fields)

	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "access token required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) publishActivity(action string, actor *auth.User, targetType, targetID string) {
	if a.stream == nil || actor == nil {
		return
	}
	a.stream.Publish(stream.Event{
		Action:     action,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		TargetType: targetType,
		TargetID:   targetID,
	})
}
