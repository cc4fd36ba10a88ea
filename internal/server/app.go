// Package server wires the session core together and runs the HTTP API
// until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/audit"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/bruteforce"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/tokencache"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	cache  *tokencache.Cache
	guard  bruteforce.Guard
	router http.Handler

	// closers run in reverse order on shutdown.
	closers []func() error
}

// NewApp opens the database, migrates it and builds every component. Any
// partially built resources are released when it fails.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.NewJSONLogger(logging.ParseLevel(c.LogLevel))
	app := &App{config: c, logger: logger}

	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	tx := dbx.NewSQLTransactor(db, nil)

	keys, err := auth.NewKeyProvider(c.Environment, c.SigningKeyPath, c.SigningKeyID)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	if c.SigningKeyPath == "" {
		logger.Warn(ctx, "using ephemeral signing key, access tokens will not survive a restart")
	}
	signer := auth.NewSigner(keys, auth.SignerConfig{
		Issuer:   c.Issuer,
		Audience: c.Audience,
		TTL:      c.AccessTokenTTL,
	})

	registry := prometheus.NewRegistry()
	m, err := metrics.New(metrics.Options{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	app.cache = tokencache.New(tokencache.Config{
		Capacity:        c.CacheCapacity,
		TTL:             c.CacheTTL(),
		CleanupInterval: c.CacheCleanupInterval,
	}, logger, tokencache.WithObserver(m))
	app.closers = append(app.closers, func() error { app.cache.Stop(); return nil })

	// a cold cache is still correct, every miss falls through to the store
	if _, err := app.cache.Warm(ctx, repos.RefreshTokens(tx.Conn())); err != nil {
		logger.Warn(ctx, "token cache warm-up failed", "error", err)
	}

	guard, closeGuard, err := newGuard(c, logger)
	if err != nil {
		return nil, err
	}
	app.guard = guard
	app.closers = append(app.closers, closeGuard)

	publisher, closePublisher, err := newPublisher(c, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closePublisher)

	issuer := services.NewTokenIssuer(signer, tx, repos, app.cache, c.RefreshTokenTTL, logger)
	svc := services.NewAuthService(services.AuthServiceDeps{
		Guard:       guard,
		Credentials: services.NewCredentialValidator(tx, repos, nil, c.PasswordVerifyConcurrency, logger),
		Issuer:      issuer,
		Rotator: services.NewRefreshRotator(tx, repos, app.cache, issuer,
			services.NewDeviceFingerprintValidator(), logger),
		Revocation: services.NewRevocationManager(tx, repos, app.cache, logger),
		Parser:     signer,
		Publisher:  publisher,
		Recorder:   m,
	}, logger)

	handler := httpapi.NewAuthHandler(svc, httpapi.CookiePolicy{
		Production: c.Production(),
		MaxAge:     c.RefreshTokenTTL,
	}, logger)

	app.router, err = httpapi.NewRouter(handler, m, httpapi.RouterConfig{
		TrustedProxies: c.TrustedProxies,
		Gatherer:       registry,
	})
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	return app, nil
}

// newGuard picks the brute force backend. The returned func releases it.
func newGuard(c *config.Config, logger logging.Logger) (bruteforce.Guard, func() error, error) {
	cfg := bruteforce.Config{MaxAttempts: c.BruteForceMaxAttempts, Window: c.BruteForceWindow}

	switch c.BruteForceBackend {
	case config.BruteForceRedis:
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		return bruteforce.NewRedisGuard(client, cfg, ""), client.Close, nil
	case config.BruteForceMemory, "":
		g := bruteforce.NewMemoryGuard(cfg, logger)
		return g, func() error { g.Stop(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown brute force backend %q", c.BruteForceBackend)
	}
}

// newPublisher sends audit events to Kafka when brokers are configured and
// to the log otherwise.
func newPublisher(c *config.Config, logger logging.Logger) (audit.Publisher, func() error, error) {
	if len(c.KafkaBrokers) == 0 {
		return audit.NewLogPublisher(logger), func() error { return nil }, nil
	}

	p, err := audit.NewKafkaPublisher(audit.KafkaConfig{Brokers: c.KafkaBrokers, Topic: c.KafkaTopic}, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a signal arrives, then shuts the
// server down and releases every component.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.HTTPAddr, "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	app.cache.Start(ctx)
	if g, ok := app.guard.(*bruteforce.MemoryGuard); ok {
		g.Start(ctx)
	}

	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	app.close(context.Background())
	app.logger.Info(context.Background(), "app stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(ctx, "shutdown step failed", "error", err)
		}
	}
	app.closers = nil
}
