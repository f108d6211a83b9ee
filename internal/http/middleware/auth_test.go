package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/identity"
)

type stubResolver map[string]identity.Identity

func (s stubResolver) Resolve(_ context.Context, token string) (identity.Identity, error) {
	if token == "down" {
		return identity.Identity{}, errors.Join(identity.ErrProviderUnavailable, errors.New("redis: connection refused"))
	}
	if id, ok := s[token]; ok {
		return id, nil
	}
	return identity.Identity{}, identity.ErrUnauthenticated
}

func authRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(stubResolver{
		"buyer": {UserID: "u1"},
		"admin": {UserID: "a1", IsAdmin: true},
	}))
	chain := append(extra, func(c *gin.Context) {
		id := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"user": id.UserID, "admin": id.IsAdmin, "token": TokenFrom(c)})
	})
	r.GET("/x", chain...)
	return r
}

func doAuth(r *gin.Engine, header string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		token   string
		present bool
	}{
		{"", "", false},
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic Zm9vOmJhcg==", "", true},
		{"Bearer", "", true},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		tok, present := BearerToken(req)
		if tok != tc.token || present != tc.present {
			t.Fatalf("%q: got (%q,%v) want (%q,%v)", tc.header, tok, present, tc.token, tc.present)
		}
	}
}

func TestAuthenticate_AnonymousPassesThrough(t *testing.T) {
	w, body := doAuth(authRouter(), "")
	if w.Code != http.StatusOK || body["user"] != "" {
		t.Fatalf("want anonymous 200, got %d %v", w.Code, body)
	}
}

func TestAuthenticate_ValidToken_SetsIdentity(t *testing.T) {
	w, body := doAuth(authRouter(), "Bearer admin")
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if body["user"] != "a1" || body["admin"] != true || body["token"] != "admin" {
		t.Fatalf("unexpected identity: %v", body)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	cases := []struct {
		header string
		status int
		code   string
	}{
		{"Basic xyz", http.StatusUnauthorized, "unauthorized"},
		{"Bearer nope", http.StatusUnauthorized, "unauthorized"},
		{"Bearer down", http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tc := range cases {
		w, body := doAuth(authRouter(), tc.header)
		if w.Code != tc.status || body["code"] != tc.code {
			t.Fatalf("%q: got %d %v", tc.header, w.Code, body)
		}
	}
}

func TestRequireUser(t *testing.T) {
	r := authRouter(RequireUser())
	if w, _ := doAuth(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: want 401, got %d", w.Code)
	}
	if w, _ := doAuth(r, "Bearer buyer"); w.Code != http.StatusOK {
		t.Fatalf("buyer: want 200, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	r := authRouter(RequireAdmin())
	if w, _ := doAuth(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: want 401, got %d", w.Code)
	}
	if w, body := doAuth(r, "Bearer buyer"); w.Code != http.StatusForbidden || body["code"] != "forbidden" {
		t.Fatalf("buyer: want 403 forbidden, got %d %v", w.Code, body)
	}
	if w, _ := doAuth(r, "Bearer admin"); w.Code != http.StatusOK {
		t.Fatalf("admin: want 200, got %d", w.Code)
	}
}
