// Package handlers exposes the marketplace over JSON/HTTP.
//
// Handlers are transport-thin: they read the caller identity placed in the
// context by middleware.Authenticate, validate input, call the services and
// translate results into HTTP responses. They never decide entitlement
// themselves.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// CatalogService reads and manages the catalog.
type CatalogService interface {
	GetFile(ctx context.Context, id string) (*domain.File, error)
	ListFiles(ctx context.Context, filter repo.FileFilter, page, pageSize int) ([]domain.File, int64, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpsertFile(ctx context.Context, actor identity.Identity, id string, in services.FileInput) (*domain.File, error)
	CreateCategory(ctx context.Context, actor identity.Identity, name, slug string) (*domain.Category, error)
}

// MarketService is the entitlement engine as seen by the transport.
type MarketService interface {
	InitiatePurchase(ctx context.Context, userID, fileID, paymentMethod string) (*domain.Purchase, error)
	DecidePurchase(ctx context.Context, actor identity.Identity, purchaseID string, decision domain.Decision) (*domain.Purchase, error)
	RecordDownloadOnce(ctx context.Context, userID, fileID, key string) (*domain.DownloadRecord, bool, error)
	ReplayDownload(ctx context.Context, userID, fileID, downloadID string) (*domain.DownloadRecord, error)
	BrowseEntitlement(ctx context.Context, fileID, token string) (*services.Browse, error)
	ListUserPurchases(ctx context.Context, userID string, page, pageSize int) ([]domain.Purchase, int64, error)
	PurchasesStats(ctx context.Context, userID string) (int64, *time.Time, error)
	ListAllPurchases(ctx context.Context, actor identity.Identity, status domain.PurchaseStatus, page, pageSize int) ([]domain.Purchase, int64, error)
	DownloadHistory(ctx context.Context, userID string) ([]domain.DownloadRecord, error)
	DownloadsStats(ctx context.Context, userID string) (repo.DownloadStats, error)
	EnabledPaymentMethods() []string
}

// AuditService serves the admin audit views.
type AuditService interface {
	ListInvoices(ctx context.Context, actor identity.Identity, page, pageSize int) ([]domain.Invoice, int64, error)
	ListActivity(ctx context.Context, actor identity.Identity, filter repo.ActivityFilter, page, pageSize int) ([]domain.ActivityLog, int64, error)
}

//
// Handler wiring
//

// Handlers groups all HTTP endpoints.
type Handlers struct {
	catalog  CatalogService
	market   MarketService
	audit    AuditService
	sessions identity.Revoker
}

// Deps are the collaborators of Handlers. Sessions may be nil, in which case
// revocation answers 503.
type Deps struct {
	Catalog  CatalogService
	Market   MarketService
	Audit    AuditService
	Sessions identity.Revoker
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{
		catalog:  d.Catalog,
		market:   d.Market,
		audit:    d.Audit,
		sessions: d.Sessions,
	}
}
