package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// serveSecured runs one GET through SecurityHeaders (after RequestID) and
// returns the response headers.
func serveSecured(t *testing.T, opt SecurityOptions, path string, prep func(*http.Request), pre ...gin.HandlerFunc) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(SecurityHeaders(opt))
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if prep != nil {
		prep(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecured(t, SecurityOptions{}, "/api/v1/files", nil)

	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := h.Get(k); got != want {
			t.Fatalf("%s = %q; want %q", k, got, want)
		}
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_ExposeHeaders(t *testing.T) {
	const all = "X-Request-ID, ETag, Retry-After, Location, Idempotent-Replayed"
	cases := map[string]struct {
		existing string
		want     string
	}{
		"fresh":           {"", all},
		"appends":         {"Content-Length", "Content-Length, " + all},
		"no duplicates":   {"x-request-id, ETag", "x-request-id, ETag, Retry-After, Location, Idempotent-Replayed"},
		"already exposed": {all, all},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				if tc.existing != "" {
					c.Header("Access-Control-Expose-Headers", tc.existing)
				}
				c.Next()
			}
			h := serveSecured(t, SecurityOptions{}, "/api/v1/files/f1", nil, RequestID(), pre)
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_NoStore(t *testing.T) {
	private := []string{"/api/v1/me", "/api/v1/admin"}
	cases := []struct {
		path    string
		opt     SecurityOptions
		noStore bool
	}{
		{"/api/v1/me/purchases", SecurityOptions{PrivatePrefixes: private}, true},
		{"/api/v1/admin/invoices", SecurityOptions{PrivatePrefixes: private}, true},
		{"/api/v1/files", SecurityOptions{PrivatePrefixes: private}, false},
		{"/api/v1/categories", SecurityOptions{PrivatePrefixes: []string{""}}, false},
		{"/api/v1/categories", SecurityOptions{NoStore: true}, true},
	}
	for _, tc := range cases {
		h := serveSecured(t, tc.opt, tc.path, nil)
		got := h.Get("Cache-Control") == "no-store" && h.Get("Pragma") == "no-cache" && h.Get("Expires") == "0"
		if got != tc.noStore {
			t.Fatalf("%s: no-store=%v want %v (headers %v)", tc.path, got, tc.noStore, h)
		}
	}
}

func TestSecurityHeaders_Policy(t *testing.T) {
	h := serveSecured(t, SecurityOptions{EnablePolicy: true}, "/api/v1/files", nil)
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %v", h)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	viaTLS := func(r *http.Request) { r.TLS = &tls.ConnectionState{} }
	viaProxy := func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }
	defaultAge := "max-age=" + strconv.Itoa(180*24*60*60) + "; includeSubDomains; preload"

	cases := map[string]struct {
		opt  SecurityOptions
		prep func(*http.Request)
		want string
	}{
		"tls with max age": {SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour}, viaTLS, "max-age=86400; includeSubDomains; preload"},
		"proxy default":    {SecurityOptions{EnableHSTS: true}, viaProxy, defaultAge},
		"plain http":       {SecurityOptions{EnableHSTS: true}, nil, ""},
		"disabled":         {SecurityOptions{HSTSMaxAge: time.Hour}, viaTLS, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := serveSecured(t, tc.opt, "/api/v1/files", tc.prep)
			if got := h.Get("Strict-Transport-Security"); got != tc.want {
				t.Fatalf("HSTS = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestHasAnyPrefix(t *testing.T) {
	if hasAnyPrefix("/api/v1/me", nil) {
		t.Fatalf("nil prefixes must not match")
	}
	if hasAnyPrefix("/api/v1/files", []string{"", "/api/v1/admin"}) {
		t.Fatalf("empty prefix must be ignored")
	}
	if !hasAnyPrefix("/api/v1/admin/activity", []string{"/api/v1/me", "/api/v1/admin"}) {
		t.Fatalf("expected admin prefix to match")
	}
}
