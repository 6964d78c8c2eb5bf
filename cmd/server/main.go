// Command tn-server starts the tenant notes REST API and its gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/tenant-notes/internal/config"
	"github.com/and161185/tenant-notes/internal/limiter"
	"github.com/and161185/tenant-notes/internal/migrate"
	"github.com/and161185/tenant-notes/internal/quota"
	"github.com/and161185/tenant-notes/internal/ratelimit"
	"github.com/and161185/tenant-notes/internal/repository/postgres"
	grpcserver "github.com/and161185/tenant-notes/internal/server/grpc"
	httpserver "github.com/and161185/tenant-notes/internal/server/http"
	"github.com/and161185/tenant-notes/internal/service"
	"github.com/and161185/tenant-notes/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// logger config depends on cfg; fall back to a production logger
		l, _ := zap.NewProduction()
		l.Fatal("config", zap.Error(err))
	}

	logger, _ := zap.NewProduction()
	if !cfg.Production() {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("env", cfg.AppEnv),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	if v, err := migrate.Version(ctx, cfg.DatabaseDSN); err == nil {
		logger.Info("schema", zap.Int64("version", v))
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	users := postgres.NewUserRepo(db)
	tenants := postgres.NewTenantRepo(db)
	notes := postgres.NewNoteRepo(db)

	issuer := token.NewIssuer(users, token.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Production:    cfg.Production(),
	})
	lim := limiter.NewPGWithQuerier(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)
	engine := quota.NewEngine(tenants, notes, logger)

	// Services
	authSvc := service.NewAuthService(service.AuthDeps{
		Users:       users,
		Tenants:     tenants,
		Issuer:      issuer,
		Limiter:     lim,
		AdminEmails: cfg.AdminEmails,
		Logger:      logger,
	})
	noteSvc := service.NewNoteService(notes, engine)
	tenantSvc := service.NewTenantService(engine)

	authStore := ratelimit.NewStore(cfg.AuthRateRPS, cfg.AuthRateBurst)
	authStore.StartJanitor(ctx)

	var stats ratelimit.StatsRecorder
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, rate-limit stats disabled", zap.Error(err))
		} else {
			stats = ratelimit.NewRedisStats(rdb)
		}
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Auth:        authSvc,
		Notes:       noteSvc,
		Tenants:     tenantSvc,
		DB:          db,
		Logger:      logger,
		Cookie:      issuer.CookiePolicy(),
		CORSOrigin:  cfg.CORSOrigin,
		TrustXFF:    cfg.TrustXFF,
		AuthLimiter: authStore,
		AuthStats:   stats,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Health
	hs := grpcserver.NewHealth(db, logger, 10*time.Second)
	go hs.Watch(ctx)
	hlis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		logger.Fatal("listen health", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("health listening", zap.String("addr", cfg.HealthAddr))
		errCh <- hs.Serve(hlis)
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("serve", zap.Error(err))
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	hs.Stop(cfg.ShutdownTimeout)
	logger.Info("stopped")
}
