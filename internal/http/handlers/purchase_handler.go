// Purchase HTTP handlers.
//
// This file exposes the buyer side of the purchase flow:
//   - GET  /files/{id}/entitlement   (storefront view for the caller)
//   - POST /files/{id}/purchases     (initiate; 201 new, 200 existing)
//   - GET  /me/purchases             (paginated, weak ETag)
//   - GET  /payment-methods          (enabled wallet tags)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/http/middleware"
	"github.com/tbourn/go-filemarket-backend/internal/services"
)

// InitiatePurchaseRequest is the JSON payload for buying a file.
type InitiatePurchaseRequest struct {
	// PaymentMethod is one of the enabled wallet tags (case-insensitive).
	PaymentMethod string `json:"payment_method" binding:"required,max=32" example:"esewa"`
}

// PurchaseResponse wraps a purchase. Existing is true when the caller already
// had a pending or approved purchase and no new one was created.
type PurchaseResponse struct {
	Purchase *domain.Purchase `json:"purchase"`
	Existing bool             `json:"existing"`
}

// ListPurchasesResponse wraps a page of purchases.
type ListPurchasesResponse struct {
	Purchases  []domain.Purchase `json:"purchases"`
	Pagination Pagination        `json:"pagination"`
}

// PaymentMethodsResponse lists the wallet tags InitiatePurchase accepts.
type PaymentMethodsResponse struct {
	PaymentMethods []string `json:"payment_methods" example:"esewa,khalti"`
}

// ListPaymentMethods godoc
// @ID          listPaymentMethods
// @Summary     Enabled payment methods
// @Tags        Purchases
// @Produce     json
// @Success     200  {object}  handlers.PaymentMethodsResponse
// @Router      /payment-methods [get]
func (h *Handlers) ListPaymentMethods(c *gin.Context) {
	ok(c, http.StatusOK, PaymentMethodsResponse{PaymentMethods: h.market.EnabledPaymentMethods()})
}

// GetEntitlement godoc
// @ID          getEntitlement
// @Summary     Storefront view of a file
// @Description Reports whether the file is free, whether the caller already owns it or has a purchase pending, and whether a purchase may be started. Anonymous callers get the public view.
// @Tags        Purchases
// @Produce     json
// @Param       Authorization  header  string  false  "Bearer token"
// @Param       id             path    string  true   "File ID"
// @Success     200  {object}  services.Browse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /files/{id}/entitlement [get]
func (h *Handlers) GetEntitlement(c *gin.Context) {
	b, err := h.market.BrowseEntitlement(c.Request.Context(), c.Param("id"), middleware.TokenFrom(c))
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, b)
}

// InitiatePurchase godoc
// @ID          initiatePurchase
// @Summary     Start a purchase
// @Description Creates a pending purchase at the current catalog price. If the caller already has a pending or approved purchase for the file, that purchase is returned with 200 and existing=true.
// @Tags        Purchases
// @Accept      json
// @Produce     json
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       id             path    string  true  "File ID"
// @Param       body           body    handlers.InitiatePurchaseRequest  true  "Payment method"
// @Success     201  {object}  handlers.PurchaseResponse
// @Success     200  {object}  handlers.PurchaseResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /files/{id}/purchases [post]
func (h *Handlers) InitiatePurchase(c *gin.Context) {
	var req InitiatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payment_method is required")
		return
	}

	p, err := h.market.InitiatePurchase(c.Request.Context(), middleware.UserID(c), c.Param("id"), strings.TrimSpace(req.PaymentMethod))
	switch {
	case errors.Is(err, services.ErrDuplicatePurchase) && p != nil:
		ok(c, http.StatusOK, PurchaseResponse{Purchase: p, Existing: true})
	case err != nil:
		failErr(c, err)
	default:
		c.Header("Location", "/me/purchases")
		ok(c, http.StatusCreated, PurchaseResponse{Purchase: p})
	}
}

// ListMyPurchases godoc
// @ID          listMyPurchases
// @Summary     List my purchases (paginated)
// @Description Returns the caller's purchases, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Purchases
// @Produce     json
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       If-None-Match  header  string  false  "Weak ETag from a previous response"
// @Param       page           query   int     false  "Page (>=1)"          default(1)
// @Param       page_size      query   int     false  "Page size (1..100)"  default(20)
// @Success     200  {object}  handlers.ListPurchasesResponse
// @Success     304  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /me/purchases [get]
func (h *Handlers) ListMyPurchases(c *gin.Context) {
	uid := middleware.UserID(c)
	ctx := c.Request.Context()

	count, last, err := h.market.PurchasesStats(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	var lastUnix int64
	if last != nil {
		lastUnix = last.UnixNano()
	}
	page, size := clampPagination(c)
	etag := fmt.Sprintf(`W/"purchases:%s:%d:%d:%d:%d"`, uid, count, lastUnix, page, size)
	if notModified(c, etag) {
		return
	}

	items, total, err := h.market.ListUserPurchases(ctx, uid, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Purchase{}
	}
	ok(c, http.StatusOK, ListPurchasesResponse{Purchases: items, Pagination: newPagination(page, size, total)})
}
