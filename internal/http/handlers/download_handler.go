// Download HTTP handlers.
//
//   - POST /files/{id}/downloads   (record an authorized download)
//   - GET  /me/downloads           (download history)
//
// A download request may carry an Idempotency-Key. The first request with a
// key counts a download and remembers the resulting record; retries with the
// same key return that record unchanged.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/http/middleware"
)

// HeaderIdempotentReplayed marks a response served from an earlier request.
const HeaderIdempotentReplayed = "Idempotent-Replayed"

// DownloadResponse is returned by RecordDownload.
type DownloadResponse struct {
	Download    *domain.DownloadRecord `json:"download"`
	DownloadURL string                 `json:"download_url" example:"https://cdn.example.com/f/abc.pdf"`
}

// DownloadHistoryResponse wraps the caller's download rows.
type DownloadHistoryResponse struct {
	Downloads []domain.DownloadRecord `json:"downloads"`
}

// RecordDownload godoc
// @ID          recordDownload
// @Summary     Download a file
// @Description Records an authorized download and returns the download location. Free files are open to any signed-in user; paid files need an approved purchase. Retries carrying the same Idempotency-Key are not counted again.
// @Tags        Downloads
// @Produce     json
// @Param       Authorization    header  string  true   "Bearer token"
// @Param       Idempotency-Key  header  string  false  "Client retry key"
// @Param       id               path    string  true   "File ID"
// @Success     200  {object}  handlers.DownloadResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse  "not_entitled"
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /files/{id}/downloads [post]
func (h *Handlers) RecordDownload(c *gin.Context) {
	ctx := c.Request.Context()
	uid, fileID := middleware.UserID(c), c.Param("id")

	if prior, replay := middleware.ReplayOf(c); replay {
		rec, err := h.market.ReplayDownload(ctx, uid, fileID, prior)
		if err != nil {
			failErr(c, err)
			return
		}
		h.respondDownload(c, rec, true)
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	rec, replayed, err := h.market.RecordDownloadOnce(ctx, uid, fileID, key)
	if err != nil {
		failErr(c, err)
		return
	}
	h.respondDownload(c, rec, replayed)
}

func (h *Handlers) respondDownload(c *gin.Context, rec *domain.DownloadRecord, replayed bool) {
	f, err := h.catalog.GetFile(c.Request.Context(), rec.FileID)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header(HeaderIdempotentReplayed, "true")
	}
	ok(c, http.StatusOK, DownloadResponse{Download: rec, DownloadURL: f.DownloadURL})
}

// ListMyDownloads godoc
// @ID          listMyDownloads
// @Summary     My download history
// @Description Returns the caller's download rows. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Downloads
// @Produce     json
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       If-None-Match  header  string  false  "Weak ETag from a previous response"
// @Success     200  {object}  handlers.DownloadHistoryResponse
// @Success     304  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /me/downloads [get]
func (h *Handlers) ListMyDownloads(c *gin.Context) {
	uid := middleware.UserID(c)
	ctx := c.Request.Context()

	st, err := h.market.DownloadsStats(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	var lastUnix int64
	if st.LastDownloadedAt != nil {
		lastUnix = st.LastDownloadedAt.UnixNano()
	}
	if notModified(c, fmt.Sprintf(`W/"downloads:%s:%d:%d:%d"`, uid, st.Rows, st.Downloads, lastUnix)) {
		return
	}

	rows, err := h.market.DownloadHistory(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	if rows == nil {
		rows = []domain.DownloadRecord{}
	}
	ok(c, http.StatusOK, DownloadHistoryResponse{Downloads: rows})
}
