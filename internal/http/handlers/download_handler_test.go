package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDownload_FreeFileCounts(t *testing.T) {
	h := newHarness(t)
	h.seedFile("free", 0, true)
	tok := h.token("u1", false)

	w := h.do(http.MethodPost, "/files/free/downloads", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[DownloadResponse](t, w)
	assert.Equal(t, "https://cdn.test/free", first.DownloadURL)
	assert.EqualValues(t, 1, first.Download.DownloadCount)
	assert.Nil(t, first.Download.PurchaseID)

	w = h.do(http.MethodPost, "/files/free/downloads", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[DownloadResponse](t, w)
	assert.Equal(t, first.Download.ID, second.Download.ID)
	assert.EqualValues(t, 2, second.Download.DownloadCount)
}

func TestRecordDownload_PaidNeedsApproval(t *testing.T) {
	h := newHarness(t)
	h.seedFile("paid", 500, false)
	tok := h.token("u1", false)

	w := h.do(http.MethodPost, "/files/paid/downloads", tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	er := decode[ErrorResponse](t, w)
	assert.Equal(t, ErrCodeNotEntitled, er.Code)
	assert.NotContains(t, w.Body.String(), "cdn.test")

	p := h.approve("u1", "paid")
	w = h.do(http.MethodPost, "/files/paid/downloads", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[DownloadResponse](t, w)
	require.NotNil(t, got.Download.PurchaseID)
	assert.Equal(t, p.ID, *got.Download.PurchaseID)
}

func TestRecordDownload_Anonymous(t *testing.T) {
	h := newHarness(t)
	h.seedFile("free", 0, true)

	w := h.do(http.MethodPost, "/files/free/downloads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecordDownload_IdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t)
	h.seedFile("free", 0, true)
	tok := h.token("u1", false)

	w := h.do(http.MethodPost, "/files/free/downloads", tok, nil, "Idempotency-Key", "dl-1")
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[DownloadResponse](t, w)
	assert.Empty(t, w.Header().Get(HeaderIdempotentReplayed))

	w = h.do(http.MethodPost, "/files/free/downloads", tok, nil, "Idempotency-Key", "dl-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", w.Header().Get(HeaderIdempotentReplayed))
	replay := decode[DownloadResponse](t, w)
	assert.Equal(t, first.Download.ID, replay.Download.ID)
	assert.EqualValues(t, 1, replay.Download.DownloadCount)

	// A fresh key counts again.
	w = h.do(http.MethodPost, "/files/free/downloads", tok, nil, "Idempotency-Key", "dl-2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[DownloadResponse](t, w).Download.DownloadCount)
}

func TestRecordDownload_KeyIsScopedToFile(t *testing.T) {
	h := newHarness(t)
	h.seedFile("a", 0, true)
	h.seedFile("b", 0, true)
	tok := h.token("u1", false)

	w := h.do(http.MethodPost, "/files/a/downloads", tok, nil, "Idempotency-Key", "shared")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/files/b/downloads", tok, nil, "Idempotency-Key", "shared")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get(HeaderIdempotentReplayed))
	got := decode[DownloadResponse](t, w)
	assert.Equal(t, "b", got.Download.FileID)
	assert.EqualValues(t, 1, got.Download.DownloadCount)
}

func TestRecordDownload_BadIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	h.seedFile("free", 0, true)

	w := h.do(http.MethodPost, "/files/free/downloads", h.token("u1", false), nil, "Idempotency-Key", "bad key!")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMyDownloads(t *testing.T) {
	h := newHarness(t)
	h.seedFile("free", 0, true)
	tok := h.token("u1", false)

	w := h.do(http.MethodGet, "/me/downloads", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"downloads":[]`)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/files/free/downloads", tok, nil).Code)

	w = h.do(http.MethodGet, "/me/downloads", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[DownloadHistoryResponse](t, w)
	require.Len(t, hist.Downloads, 1)
	assert.Equal(t, "free", hist.Downloads[0].FileID)
}

func TestListMyDownloads_ETag(t *testing.T) {
	h := newHarness(t)
	h.seedFile("free", 0, true)
	tok := h.token("u1", false)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/files/free/downloads", tok, nil).Code)

	w := h.do(http.MethodGet, "/me/downloads", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.True(t, strings.HasPrefix(etag, `W/"downloads:u1:1:1:`), etag)

	w = h.do(http.MethodGet, "/me/downloads", tok, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	// Another download bumps the counter, so the old tag no longer matches.
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/files/free/downloads", tok, nil).Code)
	w = h.do(http.MethodGet, "/me/downloads", tok, nil, "If-None-Match", etag)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("ETag"), `W/"downloads:u1:1:2:`))
}
