package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/CaioWing/harbor-console/internal/api"
	"github.com/CaioWing/harbor-console/internal/api/middleware"
	"github.com/CaioWing/harbor-console/internal/auth"
	"github.com/CaioWing/harbor-console/internal/config"
	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/logstream"
	"github.com/CaioWing/harbor-console/internal/repository/memory"
	"github.com/CaioWing/harbor-console/internal/repository/postgres"
	"github.com/CaioWing/harbor-console/internal/service"
	"github.com/CaioWing/harbor-console/internal/storage/local"
	"github.com/CaioWing/harbor-console/internal/transfer"
)

// memoryAuditLimit bounds the audit trail kept without a database.
const memoryAuditLimit = 10000

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
		slog.SetDefault(log)

		if err := run(cfg, log); err != nil {
			log.Error("fatal", "err", err)
			return err
		}
		return nil
	},
}

func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("starting harbor console",
		"listen", cfg.ListenAddr(),
		"backend", cfg.Backend.URL,
		"db_enabled", cfg.DB.Enabled,
		"staging", cfg.Storage.Path,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	var (
		auditRepo     domain.AuditRepository
		viewStateRepo domain.ViewStateRepository
	)
	if cfg.DB.Enabled {
		log.Info("running database migrations")
		if err := postgres.RunMigrations(cfg.DB.DSN()); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("migrations completed")

		pool, err := pgxpool.New(ctx, cfg.DB.DSN())
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping db: %w", err)
		}
		log.Info("database connected", "db_host", cfg.DB.Host)

		auditRepo = postgres.NewAuditRepo(pool)
		viewStateRepo = postgres.NewViewStateRepo(pool)
	} else {
		log.Info("database disabled, keeping audit and view state in memory")
		auditRepo = memory.NewAuditRepo(memoryAuditLimit)
		viewStateRepo = memory.NewViewStateRepo()
	}

	// Staging storage
	store, err := local.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	log.Info("storage initialized", "path", cfg.Storage.Path)

	// Backend
	backend, err := connect(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	// Services
	auditSvc := service.NewAuditService(auditRepo, log)
	viewState := service.NewViewStateService(viewStateRepo, cfg.Grid.StateCutoff, log)
	metrics := middleware.NewMetrics()

	views, err := service.NewViews(service.ViewDeps{
		Fetcher:      backend,
		Mutator:      backend,
		Store:        viewState,
		Audit:        auditSvc,
		PollInterval: cfg.Grid.PollInterval,
		RefreshDelay: cfg.Grid.RefreshDelay,
		PageLength:   cfg.Grid.PageLength,
		Logger:       log,
	}, backend)
	if err != nil {
		return fmt.Errorf("init views: %w", err)
	}
	for _, name := range views.Names() {
		name := name
		view, _ := views.Get(name)
		view.Watch(func(err error) { metrics.RecordRefresh(name, err) })
	}

	banners := &service.Banners{}
	ctrl := transfer.New(backend,
		transfer.WithChunkSize(cfg.Transfer.ChunkSize),
		transfer.WithSettleDelay(cfg.Transfer.SettleDelay),
		transfer.WithFailurePolicy(transfer.ParseFailurePolicy(cfg.Transfer.HaltOnError)),
		transfer.WithLogger(log),
		transfer.WithObserver(banners),
		transfer.WithObserver(metrics),
		transfer.WithObserver(transfer.SettledFunc(views.Software.RefreshSoon)),
	)
	transfers := service.NewTransferService(ctx, ctrl, store, banners, auditSvc, log)

	cleanup := service.NewCleanupService(store, cfg.Storage.Retention, transfers.InUse, auditSvc, log)
	go cleanup.StartScheduler(ctx, cfg.Storage.CleanupInterval)

	// Auth
	creds, err := auth.NewCredentials(cfg.Auth.AdminUser, cfg.Auth.AdminPassword, cfg.Auth.AdminPasswordHash)
	if err != nil {
		return fmt.Errorf("operator credentials: %w", err)
	}
	jwtMgr := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)

	dialLogs := func(ctx context.Context, device string) (*logstream.Stream, error) {
		return logstream.Dial(ctx, backend.BaseURL(), device, backend.AuthHeader(), log)
	}

	views.Start(ctx)
	defer views.Close()

	// Router
	router := api.NewRouter(api.RouterDeps{
		Views:       views,
		Transfers:   transfers,
		AuditSvc:    auditSvc,
		Staging:     store,
		MaxStaged:   cfg.Storage.MaxSize,
		LogDialer:   dialLogs,
		JWTManager:  jwtMgr,
		Credentials: creds,
		Metrics:     metrics,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Logger:      log,
	})

	// HTTP Server
	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Stops a running transfer; the session ends failed.
	cancel()
	transfers.Wait()

	log.Info("server stopped")
	return nil
}
