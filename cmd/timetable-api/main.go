package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/server"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// @title SMA Timetable API
// @version 1.0.0
// @description School timetable management with an automatic assignment engine.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var (
		cacheRepo service.CacheRepository
		proposals service.ProposalStore
	)
	redisClient, err := cache.NewRedis(cfg.Redis)
	switch {
	case err == nil:
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	case errors.Is(err, cache.ErrDisabled):
		logr.Info("redis disabled, proposals kept in memory")
	default:
		logr.Warn("redis unavailable, proposals kept in memory", zap.Error(err))
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Snapshot.CacheTTL, logr, cacheRepo != nil)
	if cacheSvc.Enabled() {
		proposals = service.NewCacheProposalStore(cacheSvc)
	} else {
		proposals = service.NewMemoryProposalStore()
	}

	snapshotRepo := repository.NewSnapshotRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	solver := timetable.NewSolver(logr, timetable.Options{
		Seed:     cfg.Scheduler.Seed,
		MaxSteps: cfg.Scheduler.MaxSteps,
	})

	snapshotSvc := service.NewSnapshotService(snapshotRepo, assignmentRepo, db, cacheSvc, validate, logr).
		WithMetrics(metrics).
		WithProposals(proposals)
	generatorSvc := service.NewScheduleGeneratorService(snapshotSvc, solver, assignmentRepo, db, proposals, metrics, validate, logr,
		service.ScheduleGeneratorConfig{
			ProposalTTL:  cfg.Scheduler.ProposalTTL,
			SolveTimeout: cfg.Scheduler.SolveTimeout,
			GreedyFill:   cfg.Scheduler.GreedyFill,
		})
	runSvc := service.NewSolveRunService(generatorSvc, metrics, validate, logr,
		service.SolveRunConfig{Workers: cfg.Scheduler.RunWorkers, Retention: cfg.Scheduler.RunRetention})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, snapshotSvc, validate, logr)
	exportSvc := service.NewExportService(snapshotSvc, validate, logr, nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runSvc.Start(ctx)

	router := server.NewRouter(server.Deps{
		Config:      cfg,
		Logger:      logr,
		Metrics:     metrics,
		Tokens:      middleware.NewTokenValidator(cfg.JWT.Secret, cfg.JWT.Issuer),
		SolveLimits: middleware.NewRateLimiter(cfg.Scheduler.RatePerMinute, cfg.Scheduler.RateBurst, logr),
	}, server.Handlers{
		Snapshot:    handler.NewSnapshotHandler(snapshotSvc),
		Generator:   handler.NewScheduleGeneratorHandler(generatorSvc),
		Runs:        handler.NewSolveRunHandler(runSvc),
		Assignments: handler.NewAssignmentHandler(assignmentSvc),
		Export:      handler.NewExportHandler(exportSvc),
		Metrics:     handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("db", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
	runSvc.Stop()
	logr.Info("server stopped")
}
