package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/metrics":                "/metrics",
		"/v1/users":               "/v1/users",
		"/v1/users/01HXYZ":        "/v1/users/:id",
		"/v1/users/abc?page=2":    "/v1/users/:id",
		"/v1/users/abc/extra":     "/v1/users/abc/extra",
		"/v1/dashboard/stats":     "/v1/dashboard/stats",
		"/v1/auth/login":          "/v1/auth/login",
		"/v1/dashboard/stats?x=1": "/v1/dashboard/stats",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
