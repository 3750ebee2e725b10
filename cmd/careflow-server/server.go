package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/careflow/internal/config"
	"github.com/ehr/careflow/internal/domain/admission"
	"github.com/ehr/careflow/internal/domain/registry"
	"github.com/ehr/careflow/internal/domain/stats"
	"github.com/ehr/careflow/internal/domain/workload"
	"github.com/ehr/careflow/internal/platform/auth"
	"github.com/ehr/careflow/internal/platform/cache"
	"github.com/ehr/careflow/internal/platform/db"
	"github.com/ehr/careflow/internal/platform/middleware"
	"github.com/ehr/careflow/internal/platform/validate"
	"github.com/ehr/careflow/pkg/caldate"
)

const requestTimeout = 30 * time.Second

type services struct {
	registry    *registry.Service
	recommender *workload.Recommender
	admissions  *admission.Service
	stats       *stats.Service
}

func newServices(pool db.Pool, kv cache.KV, cfg *config.Config, loc *time.Location, logger zerolog.Logger) *services {
	clock := caldate.SystemClock(loc)
	v := validate.New(clock)

	s := &services{
		registry:    registry.NewService(registry.NewRepo(pool), v, logger),
		recommender: workload.NewRecommender(workload.NewRepo(pool)),
		admissions:  admission.NewService(admission.NewRepo(pool), v, logger),
		stats:       stats.NewService(stats.NewRepo(pool), kv, cfg.StatsCacheTTL, clock, logger),
	}
	s.admissions.SetStatsInvalidator(s.stats)
	return s
}

func newRouter(cfg *config.Config, logger zerolog.Logger, s *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: []byte(cfg.AuthSigningKey)}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}

	apiV1 := e.Group("/api/v1", authMW, middleware.Audit(logger))

	workload.NewHandler(s.recommender).RegisterRoutes(apiV1)
	registry.NewHandler(s.registry).RegisterRoutes(apiV1)
	admission.NewHandler(s.admissions).RegisterRoutes(apiV1)
	stats.NewHandler(s.stats).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	kv, closeKV := openCache(ctx, cfg, logger)
	defer closeKV()

	s := newServices(pool, kv, cfg, loc, logger)
	if err := s.stats.Flush(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to flush statistics cache")
	}

	e := newRouter(cfg, logger, s)
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openCache picks the statistics cache backend: Redis when configured and
// reachable, else an in-process store. A non-positive TTL disables caching.
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.KV, func()) {
	if cfg.StatsCacheTTL <= 0 {
		logger.Info().Msg("statistics cache disabled")
		return cache.Nop{}, func() {}
	}
	if cfg.RedisURL != "" {
		rkv, err := cache.Open(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info().Msg("connected to redis")
			return rkv, func() { _ = rkv.Close() }
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-process statistics cache")
	}
	return cache.NewMemory(), func() {}
}
