package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kauntabook.org/internal/auth"
)

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireRole(w, r, auth.RoleSuperAdmin, auth.RoleAdmin); !ok {
		return
	}

	dash, err := a.users.Dashboard(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// handleActivityStream handles Server-Sent Events for the live activity feed.
func (a *API) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireRole(w, r, auth.RoleSuperAdmin, auth.RoleAdmin); !ok {
		return
	}
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The response controller unwraps the logging and metrics writers, so
	// flushing works through the full middleware chain.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	_ = rc.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
