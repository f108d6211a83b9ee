package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/http/middleware"
)

// RevokeSession godoc
// @ID          revokeSession
// @Summary     Sign out
// @Description Revokes the presented bearer token. Later requests with it are rejected with 401.
// @Tags        Session
// @Param       Authorization  header  string  true  "Bearer token"
// @Success     204  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /session/revoke [post]
func (h *Handlers) RevokeSession(c *gin.Context) {
	if h.sessions == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "session revocation is not available")
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), middleware.TokenFrom(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
