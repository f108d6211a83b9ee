// Catalog HTTP handlers.
//
// Public browse endpoints:
//   - GET /files          (list, paginated, optional category/free filters)
//   - GET /files/{id}     (single entry)
//   - GET /categories     (all categories)
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
)

// ListFilesResponse wraps a page of catalog entries.
type ListFilesResponse struct {
	Files      []domain.File `json:"files"`
	Pagination Pagination    `json:"pagination"`
}

// ListCategoriesResponse wraps all categories.
type ListCategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

// ListFiles godoc
// @ID          listFiles
// @Summary     Browse the catalog
// @Description Returns a page of catalog files. Download locations are never included.
// @Tags        Catalog
// @Produce     json
// @Param       category   query  string  false  "Category id"
// @Param       free       query  bool    false  "Only free (true) or only paid (false) files"
// @Param       page       query  int     false  "Page (>=1)"           default(1)
// @Param       page_size  query  int     false  "Page size (1..100)"   default(20)
// @Success     200  {object}  handlers.ListFilesResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /files [get]
func (h *Handlers) ListFiles(c *gin.Context) {
	filter := repo.FileFilter{CategoryID: strings.TrimSpace(c.Query("category"))}
	if raw := strings.TrimSpace(c.Query("free")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "free must be true or false")
			return
		}
		filter.Free = &b
	}
	page, size := clampPagination(c)

	files, total, err := h.catalog.ListFiles(c.Request.Context(), filter, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	if files == nil {
		files = []domain.File{}
	}
	ok(c, http.StatusOK, ListFilesResponse{Files: files, Pagination: newPagination(page, size, total)})
}

// GetFile godoc
// @ID          getFile
// @Summary     Get a catalog file
// @Tags        Catalog
// @Produce     json
// @Param       id   path  string  true  "File ID"
// @Success     200  {object}  domain.File
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /files/{id} [get]
func (h *Handlers) GetFile(c *gin.Context) {
	f, err := h.catalog.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, f)
}

// ListCategories godoc
// @ID          listCategories
// @Summary     List categories
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.ListCategoriesResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	cats, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	ok(c, http.StatusOK, ListCategoriesResponse{Categories: cats})
}
