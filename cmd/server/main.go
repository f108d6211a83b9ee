// Command server runs the file marketplace HTTP API.
//
// Configuration comes from the environment (optionally seeded from a .env
// file). See internal/config for the full list of variables.
//
//	@title          File Marketplace API
//	@version        1.0
//	@description    Catalog browsing, manual-approval purchases and download accounting.
//	@BasePath       /api/v1
//	@securityDefinitions.apikey  BearerAuth
//	@in             header
//	@name           Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-filemarket-backend/docs"
	"github.com/tbourn/go-filemarket-backend/internal/config"
	"github.com/tbourn/go-filemarket-backend/internal/events"
	httpapi "github.com/tbourn/go-filemarket-backend/internal/http"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
	"github.com/tbourn/go-filemarket-backend/internal/observability"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/sysutil"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version string

// purgeInterval is how often expired idempotency keys are deleted.
const purgeInterval = 15 * time.Minute

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.Version(version)

	lvl := sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	log.Info().Str("version", ver).Str("db_driver", cfg.DB.Driver).Stringer("level", lvl).Msg("starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(rootCtx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	denylist, closeDenylist := newDenylist(rootCtx, cfg.Redis)
	defer closeDenylist()
	idp := identity.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, denylist)

	pub := newPublisher(cfg.Kafka)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("event publisher close")
		}
	}()

	go purgeIdempotency(rootCtx, db)

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Identity: idp, Events: pub}, cfg)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

// newDenylist returns the shared Redis revocation list when REDIS_ADDR is
// set, and a process-local one otherwise.
func newDenylist(ctx context.Context, cfg config.RedisConfig) (identity.Denylist, func()) {
	if cfg.Addr == "" {
		log.Warn().Msg("REDIS_ADDR not set; token revocation is process-local")
		return identity.NewMemoryDenylist(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// Resolution reports the provider as unavailable until Redis answers.
		log.Error().Err(err).Str("addr", cfg.Addr).Msg("redis ping failed")
	} else {
		log.Info().Str("addr", cfg.Addr).Msg("redis connected")
	}
	return identity.NewRedisDenylist(rdb), func() { _ = rdb.Close() }
}

// newPublisher returns a Kafka publisher when brokers are configured and a
// log publisher otherwise.
func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return events.LogPublisher{Logger: log.With().Str("component", "events").Logger()}
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka publisher initialized")
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged expired idempotency keys")
			}
		}
	}
}
