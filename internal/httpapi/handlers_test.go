package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"kauntabook.org/internal/auth"
	"kauntabook.org/internal/ids"
	"kauntabook.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *auth.MemoryStore
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	return newTestAPIServer(t, nil)
}

func newTestAPIServer(t *testing.T, configure func(*httptest.Server)) *apiClient {
	t.Helper()

	store := auth.NewMemoryStore()
	codec, err := auth.NewTokenCodec("test-secret")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	sessions, err := auth.NewService(store, codec)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	users, err := auth.NewUserService(store)
	if err != nil {
		t.Fatalf("users: %v", err)
	}

	api := New(Config{
		Version:    "test",
		Sessions:   sessions,
		Users:      users,
		Stream:     stream.New(),
		RateBurst:  1000,
		RatePerSec: 1000,
	})

	srv := httptest.NewUnstartedServer(api.Handler())
	if configure != nil {
		configure(srv)
	}
	srv.Start()
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		t:       t,
	}
}

func (c *apiClient) seedUser(email, password string, role auth.Role, status auth.Status) *auth.User {
	c.t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		c.t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	u := &auth.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Seed",
		LastName:     "User",
		Role:         role,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ctx := context.Background()
	if err := c.store.Users(ctx).Create(ctx, u); err != nil {
		c.t.Fatalf("seed user: %v", err)
	}
	return u
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) login(email, password string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPILoginFlow(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "root@example.com",
		"password": "Admin@123456",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("expected token in response")
	}
	user, ok := payload["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["email"] != "root@example.com" {
		t.Fatalf("unexpected user: %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}

	resp = api.get("/v1/auth/me", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %d", resp.StatusCode)
	}
	me := decode[map[string]any](t, resp)
	if me["user"].(map[string]any)["email"] != "root@example.com" {
		t.Fatalf("unexpected me payload: %v", me)
	}
}

func TestAPILoginRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)

	for _, body := range []map[string]any{
		{"email": "root@example.com", "password": "wrong-password"},
		{"email": "unknown@example.com", "password": "Admin@123456"},
	} {
		resp := api.post("/v1/auth/login", body, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		payload := decode[map[string]any](t, resp)
		if payload["error"] != "Invalid email or password" {
			t.Fatalf("unexpected error message: %v", payload["error"])
		}
	}
}

func TestAPILoginRejectsInactiveAccount(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("frozen@example.com", "Admin@123456", auth.RoleAdmin, auth.StatusInactive)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "frozen@example.com",
		"password": "Admin@123456",
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["error"] != "Account is not active" {
		t.Fatalf("unexpected error message: %v", payload["error"])
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/users", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header")
	}

	resp = api.get("/v1/users", nil, bearerHeader("not-a-real-token"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
}

func TestAPILogoutInvalidatesToken(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)
	token := api.login("root@example.com", "Admin@123456")

	resp := api.post("/v1/auth/logout", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/auth/me", nil, bearerHeader(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestAPIUserManagementFlow(t *testing.T) {
	api := newTestAPI(t)
	root := api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)
	token := api.login("root@example.com", "Admin@123456")
	hdr := bearerHeader(token)

	// Create.
	resp := api.post("/v1/users", map[string]any{
		"email":      "staff@example.com",
		"password":   "Password123",
		"first_name": "Staff",
		"last_name":  "Member",
		"role":       "ADMIN",
	}, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") == "" {
		t.Fatalf("expected Location header on create")
	}
	created := decode[map[string]any](t, resp)
	if created["message"] != "User created successfully" {
		t.Fatalf("unexpected message: %v", created["message"])
	}
	staffID := created["user"].(map[string]any)["id"].(string)

	// Duplicate email conflicts.
	resp = api.post("/v1/users", map[string]any{
		"email":    "STAFF@example.com",
		"password": "Password123",
		"role":     "ADMIN",
	}, hdr)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status: %d", resp.StatusCode)
	}
	dup := decode[map[string]any](t, resp)
	if dup["error"] != "User with this email already exists" {
		t.Fatalf("unexpected conflict message: %v", dup["error"])
	}

	// List.
	resp = api.get("/v1/users", url.Values{"limit": []string{"10"}}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	listed := decode[listUsersResponse](t, resp)
	if listed.Pagination.Total != 2 {
		t.Fatalf("total = %d, want 2", listed.Pagination.Total)
	}

	// Update.
	resp = api.do(http.MethodPut, "/v1/users/"+staffID, map[string]any{
		"status": "INACTIVE",
	}, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["user"].(map[string]any)["status"] != "INACTIVE" {
		t.Fatalf("status not updated: %v", updated)
	}

	// Unknown user is 404.
	resp = api.do(http.MethodPut, "/v1/users/does-not-exist", map[string]any{
		"first_name": "X",
	}, hdr)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user status: %d", resp.StatusCode)
	}
	missing := decode[map[string]any](t, resp)
	if missing["error"] != "User not found" {
		t.Fatalf("unexpected message: %v", missing["error"])
	}

	// Self delete is rejected before any store mutation.
	resp = api.do(http.MethodDelete, "/v1/users/"+root.ID, nil, hdr)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self delete status: %d", resp.StatusCode)
	}
	selfDel := decode[map[string]any](t, resp)
	if selfDel["error"] != "Cannot delete your own account" {
		t.Fatalf("unexpected message: %v", selfDel["error"])
	}

	// Delete.
	resp = api.do(http.MethodDelete, "/v1/users/"+staffID, nil, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIRoleGates(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@example.com", "Admin@123456", auth.RoleAdmin, auth.StatusActive)
	token := api.login("admin@example.com", "Admin@123456")
	hdr := bearerHeader(token)

	// Admins can read the listing.
	resp := api.get("/v1/users", nil, hdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// But only super admins can create.
	resp = api.post("/v1/users", map[string]any{
		"email":    "new@example.com",
		"password": "Password123",
		"role":     "ADMIN",
	}, hdr)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["error"] != "insufficient permissions" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
	required, ok := payload["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "SUPER_ADMIN" {
		t.Fatalf("unexpected required set: %v", payload["required"])
	}
	if payload["current"] != "ADMIN" {
		t.Fatalf("unexpected current role: %v", payload["current"])
	}
}

func TestAPIDashboardStats(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)
	api.seedUser("admin@example.com", "Admin@123456", auth.RoleAdmin, auth.StatusInactive)
	token := api.login("root@example.com", "Admin@123456")

	resp := api.get("/v1/dashboard/stats", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	stats, ok := payload["stats"].(map[string]any)
	if !ok {
		t.Fatalf("expected stats object: %v", payload)
	}
	if stats["totalUsers"].(float64) != 2 || stats["activeUsers"].(float64) != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if _, ok := payload["recentActivity"]; !ok {
		t.Fatalf("expected recentActivity in payload")
	}
}

// openActivityStream connects to the SSE feed and consumes the opening
// comment, so the subscription is live when it returns.
func (c *apiClient) openActivityStream(headers map[string]string) (*http.Response, *bufio.Reader) {
	c.t.Helper()
	resp := c.get("/v1/dashboard/activity/stream", nil, headers)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.t.Fatalf("stream status: %d body=%q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		c.t.Fatalf("stream content type: %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read stream preamble: %v", err)
	}
	if !strings.HasPrefix(line, ":") {
		c.t.Fatalf("expected comment preamble, got %q", line)
	}
	return resp, reader
}

// readDataFrame blocks until a data frame arrives or the deadline passes.
func readDataFrame(t *testing.T, reader *bufio.Reader, deadline time.Duration) stream.Event {
	t.Helper()
	frames := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			if payload, ok := strings.CutPrefix(line, "data: "); ok {
				frames <- strings.TrimSpace(payload)
				return
			}
		}
	}()

	select {
	case payload := <-frames:
		var ev stream.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode frame %q: %v", payload, err)
		}
		return ev
	case err := <-errs:
		t.Fatalf("stream read failed before a data frame arrived: %v", err)
	case <-time.After(deadline):
		t.Fatal("no data frame within deadline")
	}
	return stream.Event{}
}

func TestAPIActivityStreamDeliversEvents(t *testing.T) {
	api := newTestAPI(t)
	root := api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)
	token := api.login("root@example.com", "Admin@123456")
	hdr := bearerHeader(token)

	resp, reader := api.openActivityStream(hdr)
	defer resp.Body.Close()

	created := api.post("/v1/users", map[string]any{
		"email":    "staff@example.com",
		"password": "Password123",
		"role":     "ADMIN",
	}, hdr)
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", created.StatusCode)
	}
	created.Body.Close()

	ev := readDataFrame(t, reader, 5*time.Second)
	if ev.Action != auth.ActionCreateUser {
		t.Fatalf("action = %q, want %q", ev.Action, auth.ActionCreateUser)
	}
	if ev.ActorID != root.ID || ev.ActorEmail != "root@example.com" {
		t.Fatalf("unexpected actor: %+v", ev)
	}
	if ev.TargetType != "USER" || ev.TargetID == "" {
		t.Fatalf("unexpected target: %+v", ev)
	}
}

func TestAPIActivityStreamOutlivesWriteTimeout(t *testing.T) {
	api := newTestAPIServer(t, func(srv *httptest.Server) {
		srv.Config.WriteTimeout = 1 * time.Second
	})
	api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)
	token := api.login("root@example.com", "Admin@123456")
	hdr := bearerHeader(token)

	resp, reader := api.openActivityStream(hdr)
	defer resp.Body.Close()

	// Let the server's write timeout elapse before publishing anything. A
	// frame arriving afterwards proves the stream cleared its deadline.
	time.Sleep(1500 * time.Millisecond)

	created := api.post("/v1/users", map[string]any{
		"email":    "late@example.com",
		"password": "Password123",
		"role":     "ADMIN",
	}, hdr)
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", created.StatusCode)
	}
	created.Body.Close()

	ev := readDataFrame(t, reader, 5*time.Second)
	if ev.Action != auth.ActionCreateUser {
		t.Fatalf("action = %q, want %q", ev.Action, auth.ActionCreateUser)
	}
}

func TestAPIValidationErrorsHideInternalPrefix(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)
	token := api.login("root@example.com", "Admin@123456")

	resp := api.post("/v1/users", map[string]any{
		"email":    "short@example.com",
		"password": "tiny",
		"role":     "ADMIN",
	}, bearerHeader(token))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	msg, _ := payload["error"].(string)
	if msg != "password must be at least 8 characters" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestAPIHealthEndpointsArePublic(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status: %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAPIRejectsUnknownJSONFields(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@example.com", "Admin@123456", auth.RoleSuperAdmin, auth.StatusActive)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "root@example.com",
		"password": "Admin@123456",
		"extra":    true,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}
