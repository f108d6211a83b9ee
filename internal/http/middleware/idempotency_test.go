package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupCall struct{ user, scope, key string }

// recordingLookup answers every lookup with (rid, found, err) and records
// the arguments it saw.
func recordingLookup(rid string, found bool, err error) (IdempotencyLookup, *[]lookupCall) {
	var calls []lookupCall
	return func(_ context.Context, user, scope, key string, _ time.Time) (string, bool, error) {
		calls = append(calls, lookupCall{user, scope, key})
		return rid, found, err
	}, &calls
}

// downloadsOnly replays keys on the download route alone.
var downloadsOnly = IdempotencyOptions{Routes: []string{"/files/:id/downloads"}}

// idemRouter mounts the download and purchase routes behind the validator
// and reports what the handler observed.
func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, seen *gin.H, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(IdempotencyValidator(opts, lookup))
	h := func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		rid, replay := ReplayOf(c)
		*seen = gin.H{"key": key, "replay": replay, "rid": rid, "bypass": IsRateBypass(c)}
		c.Status(http.StatusNoContent)
	}
	r.POST("/files/:id/downloads", h)
	r.GET("/files/:id/downloads", h)
	r.POST("/files/:id/purchases", h)
	return r
}

func sendKey(r *gin.Engine, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyAccessors_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetIdempotencyKey(c)
	assert.False(t, ok)
	_, ok = ReplayOf(c)
	assert.False(t, ok)

	c.Set(ctxKeyIdemKey, 123)
	_, ok = GetIdempotencyKey(c)
	assert.False(t, ok, "a non-string value reads as absent")

	c.Set(ctxKeyIdemReplay, "dl-1")
	rid, ok := ReplayOf(c)
	assert.True(t, ok)
	assert.Equal(t, "dl-1", rid)
}

func TestIdempotencyValidator_PassThrough(t *testing.T) {
	lookup, calls := recordingLookup("dl-1", true, nil)
	var seen gin.H
	r := idemRouter(downloadsOnly, lookup, &seen, asUser("u1"))

	// No key on an unsafe method.
	require.Equal(t, http.StatusNoContent, sendKey(r, http.MethodPost, "/files/f1/downloads", "").Code)
	assert.Equal(t, "", seen["key"])

	// Safe methods ignore the header, even a malformed one.
	require.Equal(t, http.StatusNoContent, sendKey(r, http.MethodGet, "/files/f1/downloads", "bad key!").Code)
	assert.Equal(t, "", seen["key"])
	assert.Equal(t, false, seen["replay"])

	assert.Empty(t, *calls)
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"space and bang", IdempotencyOptions{}, "bad key!"},
		{"default cap", IdempotencyOptions{}, strings.Repeat("k", 201)},
		{"custom cap", IdempotencyOptions{MaxLen: 3}, "abcd"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lookup, calls := recordingLookup("", false, nil)
			var seen gin.H
			r := idemRouter(tc.opts, lookup, &seen, asUser("u1"))

			w := sendKey(r, http.MethodPost, "/files/f1/downloads", tc.key)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "bad_idempotency_key", body["code"])
			assert.Nil(t, seen, "handler must not run")
			assert.Empty(t, *calls)
		})
	}
}

func TestIdempotencyValidator_ReplayScopedToUserAndFile(t *testing.T) {
	lookup, calls := recordingLookup("dl-42", true, nil)
	var seen gin.H
	r := idemRouter(downloadsOnly, lookup, &seen, asUser("buyer-1"))

	require.Equal(t, http.StatusNoContent, sendKey(r, http.MethodPost, "/files/file-9/downloads", "k:9.a~b").Code)
	assert.Equal(t, []lookupCall{{"buyer-1", "file-9", "k:9.a~b"}}, *calls)
	assert.Equal(t, gin.H{"key": "k:9.a~b", "replay": true, "rid": "dl-42", "bypass": true}, seen)
}

func TestIdempotencyValidator_KeysDoNotReplayAcrossRoutes(t *testing.T) {
	lookup, calls := recordingLookup("dl-42", true, nil)
	var seen gin.H
	r := idemRouter(downloadsOnly, lookup, &seen, asUser("buyer-1"))

	// The same key and file id on the purchase route is validated but never
	// looked up, so it cannot ride a stored download into the rate bypass.
	require.Equal(t, http.StatusNoContent, sendKey(r, http.MethodPost, "/files/f1/purchases", "k-1").Code)
	assert.Empty(t, *calls)
	assert.Equal(t, gin.H{"key": "k-1", "replay": false, "rid": "", "bypass": false}, seen)

	// Malformed keys are still rejected there.
	assert.Equal(t, http.StatusBadRequest, sendKey(r, http.MethodPost, "/files/f1/purchases", "bad key!").Code)
}

func TestIdempotencyValidator_NoRoutesMeansNoLookups(t *testing.T) {
	lookup, calls := recordingLookup("dl-42", true, nil)
	var seen gin.H
	r := idemRouter(IdempotencyOptions{}, lookup, &seen, asUser("buyer-1"))

	sendKey(r, http.MethodPost, "/files/f1/downloads", "k-1")
	assert.Empty(t, *calls)
	assert.Equal(t, false, seen["replay"])
}

func TestIdempotencyValidator_CustomScope(t *testing.T) {
	lookup, calls := recordingLookup("", false, nil)
	var seen gin.H
	opts := IdempotencyOptions{Scope: func(*gin.Context) string { return "checkout" }}
	r := idemRouter(opts, lookup, &seen, asUser("u1"))

	sendKey(r, http.MethodPost, "/files/f1/downloads", "k1")
	assert.Equal(t, []lookupCall{{"u1", "checkout", "k1"}}, *calls)
	assert.Equal(t, false, seen["replay"])
}

func TestIdempotencyValidator_NoReplayWithoutCallerOrOnFailure(t *testing.T) {
	cases := map[string]struct {
		user      string
		err       error
		wantCalls int
	}{
		"anonymous":     {"", nil, 0},
		"lookup failed": {"u1", errors.New("db down"), 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			lookup, calls := recordingLookup("dl-1", tc.err == nil, tc.err)
			var seen gin.H
			r := idemRouter(downloadsOnly, lookup, &seen, asUser(tc.user))

			require.Equal(t, http.StatusNoContent, sendKey(r, http.MethodPost, "/files/f1/downloads", "k-1").Code)
			assert.Len(t, *calls, tc.wantCalls)
			assert.Equal(t, "k-1", seen["key"], "the key is still stashed")
			assert.Equal(t, false, seen["replay"])
			assert.Equal(t, false, seen["bypass"])
		})
	}
}
