package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/audit"
	"github.com/grantsops/grants-engine/pkg/auth"
	"github.com/grantsops/grants-engine/pkg/config"
	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/handlers"
	"github.com/grantsops/grants-engine/pkg/logging"
	"github.com/grantsops/grants-engine/pkg/middleware"
	"github.com/grantsops/grants-engine/pkg/repositories"
	"github.com/grantsops/grants-engine/pkg/retry"
	"github.com/grantsops/grants-engine/pkg/services"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load(version)
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Env, cfg.Version)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("engine exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrate(cfg, logger); err != nil {
		return err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	var kf jwt.Keyfunc
	if cfg.Auth.EnableVerification {
		kf, err = auth.NewJWKSKeyfunc(ctx, cfg.Auth.JWKSURL)
		if err != nil {
			return err
		}
	}
	authMw := auth.NewMiddleware(kf, cfg.Auth.EnableVerification, logger)

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Audit.ErrorWriteRetries
	security := audit.NewSecurityAuditor(logger)

	userRepo := repositories.NewUserRepository(db)
	divisionRepo := repositories.NewDivisionRepository(db)
	canRepo := repositories.NewCANRepository(db)
	agreementRepo := repositories.NewAgreementRepository(db)
	scRepo := repositories.NewServicesComponentRepository(db)
	crRepo := repositories.NewChangeRequestRepository(db)
	bliRepo := repositories.NewBudgetLineItemRepository(db, crRepo)
	auditRepo := repositories.NewAuditRecordRepository(db)

	auditSvc := services.NewAuditService(auditRepo, retryCfg, logger)
	historySvc := services.NewHistoryService(auditRepo, agreementRepo, userRepo, logger)
	agreementSvc := services.NewAgreementService(db, agreementRepo, userRepo, auditSvc, logger)
	bliSvc := services.NewBudgetLineItemService(db, bliRepo, crRepo, canRepo, agreementRepo, scRepo, auditSvc, security, logger)
	reviewSvc := services.NewChangeReviewService(db, crRepo, bliRepo, canRepo, divisionRepo, auditSvc, security, logger)

	mux := http.NewServeMux()
	wrap := middleware.Chain(middleware.RequestLogger(logger), authMw.RequireAuth)

	handlers.NewHealthHandler(db.Pool, cfg.Version).RegisterRoutes(mux)
	handlers.NewBudgetLineItemHandler(bliSvc, logger).RegisterRoutes(mux, wrap)
	handlers.NewChangeRequestHandler(reviewSvc, logger).RegisterRoutes(mux, wrap)
	handlers.NewAgreementHandler(agreementSvc, historySvc, logger).RegisterRoutes(mux, wrap)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("engine listening", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}
