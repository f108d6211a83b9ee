package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/events"
	"github.com/tbourn/go-filemarket-backend/internal/http/middleware"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/services"
)

// ---------- test DB + wiring ----------

func newHandlersDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type harness struct {
	t      *testing.T
	db     *gorm.DB
	jwt    *identity.JWTResolver
	market *services.EntitlementService
	r      *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlersDB(t)
	jr := identity.NewJWTResolver("test-secret", "filemarket-test", time.Hour, identity.NewMemoryDenylist())
	market := services.NewEntitlementService(db, jr, events.Nop{})
	market.IdempotencyTTL = time.Hour
	ledger := repo.IdempotencyLedger{DB: db}

	h := New(Deps{
		Catalog:  services.NewCatalogService(db, repo.Catalog{}),
		Market:   market,
		Audit:    &services.AuditService{DB: db},
		Sessions: jr,
	})

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Authenticate(jr),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{
			Routes: []string{"/files/:id/downloads"},
		}, ledger.Lookup),
	)
	r.GET("/files", h.ListFiles)
	r.GET("/files/:id", h.GetFile)
	r.GET("/categories", h.ListCategories)
	r.GET("/files/:id/entitlement", h.GetEntitlement)
	r.GET("/payment-methods", h.ListPaymentMethods)

	user := r.Group("", middleware.RequireUser())
	user.POST("/files/:id/purchases", h.InitiatePurchase)
	user.POST("/files/:id/downloads", h.RecordDownload)
	user.GET("/me/purchases", h.ListMyPurchases)
	user.GET("/me/downloads", h.ListMyDownloads)
	user.POST("/session/revoke", h.RevokeSession)

	admin := r.Group("/admin", middleware.RequireAdmin())
	admin.GET("/purchases", h.ListPurchases)
	admin.POST("/purchases/:id/decision", h.DecidePurchase)
	admin.PUT("/files/:id", h.UpsertFile)
	admin.POST("/categories", h.CreateCategory)
	admin.GET("/invoices", h.ListInvoices)
	admin.GET("/activity", h.ListActivity)

	return &harness{t: t, db: db, jwt: jr, market: market, r: r}
}

func (h *harness) token(userID string, admin bool) string {
	h.t.Helper()
	tok, err := h.jwt.Issue(userID, admin)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) seedFile(id string, price int64, free bool) {
	h.t.Helper()
	require.NoError(h.t, repo.UpsertFile(context.Background(), h.db, &domain.File{
		ID: id, Title: "File " + id, Price: price, IsFree: free, DownloadURL: "https://cdn.test/" + id,
	}))
}

// do performs a request. body may be nil, a string, or any JSON-encodable value.
func (h *harness) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

// approve drives a purchase of fileID by userID to approved.
func (h *harness) approve(userID, fileID string) *domain.Purchase {
	h.t.Helper()
	ctx := context.Background()
	p, err := h.market.InitiatePurchase(ctx, userID, fileID, "esewa")
	require.NoError(h.t, err)
	p, err = h.market.DecidePurchase(ctx, identity.Identity{UserID: "admin", IsAdmin: true}, p.ID, domain.DecisionApprove)
	require.NoError(h.t, err)
	return p
}
