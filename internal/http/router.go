// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, idempotency, rate limiting, CORS and security headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Identity resolved once per request, before anything keyed by user
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/config"
	"github.com/tbourn/go-filemarket-backend/internal/events"
	"github.com/tbourn/go-filemarket-backend/internal/http/handlers"
	"github.com/tbourn/go-filemarket-backend/internal/http/middleware"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/services"
)

// IdentityProvider resolves and revokes bearer tokens.
type IdentityProvider interface {
	identity.Resolver
	identity.Revoker
}

// Deps are the runtime collaborators of the HTTP layer.
type Deps struct {
	DB       *gorm.DB
	Identity IdentityProvider
	Events   events.Publisher
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the marketplace API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics and gzip
//  7. Authenticate (everything below may key on the user)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint; compress everything else
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Identity
	r.Use(middleware.Authenticate(d.Identity))

	// 8) Idempotency validation (before rate limiting). Only downloads replay.
	ledger := repo.IdempotencyLedger{DB: d.DB}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		MaxLen: 200,
		Routes: []string{joinPath(cfg.APIBasePath, "/files/:id/downloads")},
	}, ledger.Lookup))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		PrivatePrefixes: []string{joinPath(apiBase, "/me"), joinPath(apiBase, "/admin")},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/readiness
	r.GET("/health", healthHandler(d.DB))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/identity/events
	market := services.NewEntitlementService(d.DB, d.Identity, d.Events)
	market.PaymentMethods = services.NewPaymentMethods(cfg.Market.PaymentMethods...)
	market.TaxBPS = cfg.Market.InvoiceTaxBPS
	market.StoreTimeout = cfg.DB.StoreTimeout
	market.IdempotencyTTL = cfg.IdempotencyTTL

	h := handlers.New(handlers.Deps{
		Catalog:  services.NewCatalogService(d.DB, repo.Catalog{}),
		Market:   market,
		Audit:    &services.AuditService{DB: d.DB},
		Sessions: d.Identity,
	})

	api := groupWithPrefix(r, apiBase)
	{
		// Catalog
		api.GET("/files", h.ListFiles)
		api.GET("/files/:id", h.GetFile)
		api.GET("/categories", h.ListCategories)
		api.GET("/payment-methods", h.ListPaymentMethods)

		// Storefront view (anonymous allowed)
		api.GET("/files/:id/entitlement", h.GetEntitlement)
	}

	user := api.Group("", middleware.RequireUser())
	{
		user.POST("/files/:id/purchases", h.InitiatePurchase)
		user.POST("/files/:id/downloads", h.RecordDownload)
		user.GET("/me/purchases", h.ListMyPurchases)
		user.GET("/me/downloads", h.ListMyDownloads)
		user.POST("/session/revoke", h.RevokeSession)
	}

	admin := api.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/purchases", h.ListPurchases)
		admin.POST("/purchases/:id/decision", h.DecidePurchase)
		admin.PUT("/files/:id", h.UpsertFile)
		admin.POST("/categories", h.CreateCategory)
		admin.GET("/invoices", h.ListInvoices)
		admin.GET("/activity", h.ListActivity)
	}
}

// corsMiddleware returns the CORS chain. With no allowlist every origin is
// accepted without credentials.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", handlers.HeaderIdempotentReplayed}
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// healthHandler reports ok when the store answers a ping within a second.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("health: store ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
