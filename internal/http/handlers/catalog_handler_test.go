package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles_FiltersAndHidesDownloadURL(t *testing.T) {
	h := newHarness(t)
	h.seedFile("free-1", 0, true)
	h.seedFile("paid-1", 500, false)
	h.seedFile("paid-2", 700, false)

	w := h.do(http.MethodGet, "/files", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "cdn.test")
	all := decode[ListFilesResponse](t, w)
	assert.Len(t, all.Files, 3)
	assert.EqualValues(t, 3, all.Pagination.Total)

	w = h.do(http.MethodGet, "/files?free=false&page_size=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	paid := decode[ListFilesResponse](t, w)
	assert.Len(t, paid.Files, 1)
	assert.False(t, paid.Files[0].IsFree)
	assert.EqualValues(t, 2, paid.Pagination.Total)
	assert.True(t, paid.Pagination.HasNext)
}

func TestListFiles_BadFreeFlag(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/files?free=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeBadRequest, decode[ErrorResponse](t, w).Code)
}

func TestGetFile_FoundAndMissing(t *testing.T) {
	h := newHarness(t)
	h.seedFile("f1", 100, false)

	w := h.do(http.MethodGet, "/files/f1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"f1"`)
	assert.NotContains(t, w.Body.String(), "download_url")

	w = h.do(http.MethodGet, "/files/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	er := decode[ErrorResponse](t, w)
	assert.Equal(t, ErrCodeNotFound, er.Code)
	assert.NotEmpty(t, er.RequestID)
}

func TestListCategories_EmptyIsArray(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"categories":[]`), w.Body.String())
}
