// Command perimgate starts the perimeter authorization gateway in front of
// an upstream page renderer.
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"perimgate/internal/acl"
	"perimgate/internal/config"
	"perimgate/internal/epoch"
	"perimgate/internal/limiter"
	"perimgate/internal/migrate"
	"perimgate/internal/repository/postgres"
	"perimgate/internal/server/httpserver"
	"perimgate/internal/service"
	"perimgate/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP gateway.
func main() {
	cfg, err := config.Load()
	if err != nil {
		// config problems are fatal at startup, not at first request
		fallback, _ := zap.NewProduction()
		fallback.Fatal("config", zap.Error(err))
	}

	logger, _ := zap.NewProduction()
	if !cfg.Production {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.Bool("production", cfg.Production),
	)

	if cfg.DSN == "" {
		logger.Fatal("missing database DSN (DATABASE_DSN)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	rules := acl.Empty()
	if cfg.ACLPath != "" {
		rules, err = acl.LoadFile(cfg.ACLPath)
		if err != nil {
			logger.Fatal("load ACL rules", zap.Error(err))
		}
	}

	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	codec := token.New(cfg.SessionSecret, cfg.BaselineVersion, cfg.SessionTTL)
	epochs := epoch.NewPG(pool)
	lim := limiter.NewPG(pool, cfg.RateMaxAttempts, cfg.RateWindow)

	authSvc := service.NewAuthService(userRepo, codec, epochs, cfg.AllowWrites)

	srv := httpserver.New(logger, authSvc, codec, epochs, lim, rules, httpserver.Options{
		Production:      cfg.Production,
		GuardedPrefixes: cfg.GuardedPrefixes,
		CSRFTTL:         cfg.CSRFTTL,
	})

	// The upstream renderer is an external collaborator; the reference
	// deployment proxies to it.
	app := upstream(logger)

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// periodic limiter sweep keeps the attempts table bounded
	go func() {
		t := time.NewTicker(cfg.RateWindow)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := lim.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("limiter sweep", zap.Error(err))
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

// upstream builds the pass-through handler for the protected trees. With
// UPSTREAM_URL set it reverse-proxies; otherwise it serves a placeholder so
// the gateway can run standalone in development.
func upstream(logger *zap.Logger) http.Handler {
	raw := os.Getenv("UPSTREAM_URL")
	if raw == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("ok\n"))
		})
	}
	u, err := url.Parse(raw)
	if err != nil {
		logger.Fatal("parse UPSTREAM_URL", zap.Error(err))
	}
	return httputil.NewSingleHostReverseProxy(u)
}
