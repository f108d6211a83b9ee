// Admin HTTP handlers.
//
// All routes in this file sit behind middleware.RequireAdmin; the services
// re-check the admin flag on the identity they are given.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/http/middleware"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/services"
)

// DecisionRequest is the admin verdict on a pending purchase.
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve decline" example:"approve"`
}

// UpsertFileRequest is the writable part of a catalog entry.
type UpsertFileRequest struct {
	Title       string  `json:"title"        binding:"required,max=255" example:"Annual report 2024"`
	Description string  `json:"description"  binding:"max=10000"`
	PreviewURL  string  `json:"preview_url"  binding:"max=1024"`
	DownloadURL string  `json:"download_url" binding:"max=1024"`
	CategoryID  *string `json:"category_id"`
	Price       int64   `json:"price"        example:"1500"`
	IsFree      bool    `json:"is_free"`
}

// CreateCategoryRequest creates a category; Slug is derived from Name when empty.
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required,max=120" example:"Reports"`
	Slug string `json:"slug" binding:"max=120"          example:"reports"`
}

// ListInvoicesResponse wraps a page of invoices.
type ListInvoicesResponse struct {
	Invoices   []domain.Invoice `json:"invoices"`
	Pagination Pagination       `json:"pagination"`
}

// ListActivityResponse wraps a page of activity entries.
type ListActivityResponse struct {
	Activity   []domain.ActivityLog `json:"activity"`
	Pagination Pagination           `json:"pagination"`
}

// ListPurchases godoc
// @ID          adminListPurchases
// @Summary     List all purchases (admin)
// @Tags        Admin
// @Produce     json
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       status         query   string  false  "pending | approved | declined"
// @Param       page           query   int     false  "Page (>=1)"          default(1)
// @Param       page_size      query   int     false  "Page size (1..100)"  default(20)
// @Success     200  {object}  handlers.ListPurchasesResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/purchases [get]
func (h *Handlers) ListPurchases(c *gin.Context) {
	status := domain.PurchaseStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	page, size := clampPagination(c)

	items, total, err := h.market.ListAllPurchases(c.Request.Context(), middleware.IdentityFrom(c), status, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Purchase{}
	}
	ok(c, http.StatusOK, ListPurchasesResponse{Purchases: items, Pagination: newPagination(page, size, total)})
}

// DecidePurchase godoc
// @ID          adminDecidePurchase
// @Summary     Approve or decline a pending purchase (admin)
// @Description Moves a pending purchase to approved or declined. Approval issues an invoice. A purchase that is no longer pending answers 409 already_finalized.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       id             path    string  true  "Purchase ID"
// @Param       body           body    handlers.DecisionRequest  true  "Decision"
// @Success     200  {object}  domain.Purchase
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "already_finalized"
// @Router      /admin/purchases/{id}/decision [post]
func (h *Handlers) DecidePurchase(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "decision must be approve or decline")
		return
	}
	p, err := h.market.DecidePurchase(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), domain.Decision(req.Decision))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpsertFile godoc
// @ID          adminUpsertFile
// @Summary     Create or replace a catalog file (admin)
// @Description A free file must have price 0; negative prices are rejected.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       id             path    string  true  "File ID"
// @Param       body           body    handlers.UpsertFileRequest  true  "File"
// @Success     200  {object}  domain.File
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown category"
// @Router      /admin/files/{id} [put]
func (h *Handlers) UpsertFile(c *gin.Context) {
	var req UpsertFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	f, err := h.catalog.UpsertFile(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), services.FileInput{
		Title:       req.Title,
		Description: req.Description,
		PreviewURL:  req.PreviewURL,
		DownloadURL: req.DownloadURL,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		IsFree:      req.IsFree,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, f)
}

// CreateCategory godoc
// @ID          adminCreateCategory
// @Summary     Create a category (admin)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       body           body    handlers.CreateCategoryRequest  true  "Category"
// @Success     201  {object}  domain.Category
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /admin/categories [post]
func (h *Handlers) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}
	cat, err := h.catalog.CreateCategory(c.Request.Context(), middleware.IdentityFrom(c), req.Name, req.Slug)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

// ListInvoices godoc
// @ID          adminListInvoices
// @Summary     List invoices (admin)
// @Tags        Admin
// @Produce     json
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       page           query   int     false  "Page (>=1)"          default(1)
// @Param       page_size      query   int     false  "Page size (1..100)"  default(20)
// @Success     200  {object}  handlers.ListInvoicesResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/invoices [get]
func (h *Handlers) ListInvoices(c *gin.Context) {
	page, size := clampPagination(c)
	items, total, err := h.audit.ListInvoices(c.Request.Context(), middleware.IdentityFrom(c), page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Invoice{}
	}
	ok(c, http.StatusOK, ListInvoicesResponse{Invoices: items, Pagination: newPagination(page, size, total)})
}

// ListActivity godoc
// @ID          adminListActivity
// @Summary     List activity log entries (admin)
// @Tags        Admin
// @Produce     json
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       actor          query   string  false  "Actor user id"
// @Param       resource_type  query   string  false  "purchase | download | file"
// @Param       page           query   int     false  "Page (>=1)"          default(1)
// @Param       page_size      query   int     false  "Page size (1..100)"  default(20)
// @Success     200  {object}  handlers.ListActivityResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/activity [get]
func (h *Handlers) ListActivity(c *gin.Context) {
	filter := repo.ActivityFilter{
		ActorID:      strings.TrimSpace(c.Query("actor")),
		ResourceType: domain.ResourceType(strings.TrimSpace(c.Query("resource_type"))),
	}
	page, size := clampPagination(c)
	items, total, err := h.audit.ListActivity(c.Request.Context(), middleware.IdentityFrom(c), filter, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.ActivityLog{}
	}
	ok(c, http.StatusOK, ListActivityResponse{Activity: items, Pagination: newPagination(page, size, total)})
}
