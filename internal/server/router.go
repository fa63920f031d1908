// Package server assembles the gin engine for the timetable API.
package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// Handlers bundles the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Snapshot    *handler.SnapshotHandler
	Generator   *handler.ScheduleGeneratorHandler
	Runs        *handler.SolveRunHandler
	Assignments *handler.AssignmentHandler
	Export      *handler.ExportHandler
	Metrics     *handler.MetricsHandler
}

// Deps carries the cross-cutting pieces the router needs.
type Deps struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *service.MetricsService
	Tokens      *middleware.TokenValidator
	SolveLimits *middleware.RateLimiter
}

// NewRouter mounts every route. Reads need a valid token; writes additionally need an
// administrator role.
func NewRouter(deps Deps, h Handlers) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta(), middleware.JWT(deps.Tokens))
	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	api.GET("/metrics/stats", admin, h.Metrics.Stats)

	timetable := api.Group("/timetable")
	timetable.GET("/snapshot", h.Snapshot.Get)
	timetable.PUT("/snapshot", admin, h.Snapshot.Import)
	timetable.POST("/generate", admin, deps.SolveLimits.Middleware(), h.Generator.Generate)
	timetable.GET("/proposals/:id", h.Generator.Proposal)
	timetable.POST("/apply", admin, h.Generator.Apply)
	timetable.POST("/runs", admin, deps.SolveLimits.Middleware(), h.Runs.Submit)
	timetable.GET("/runs/:id", h.Runs.Get)
	timetable.DELETE("/runs/:id", admin, h.Runs.Cancel)
	timetable.GET("/export", h.Export.Export)

	assignments := api.Group("/assignments")
	assignments.GET("", h.Assignments.List)
	assignments.POST("", admin, h.Assignments.Create)
	assignments.POST("/check", h.Assignments.Check)
	assignments.PATCH("/:id/move", admin, h.Assignments.Move)
	assignments.DELETE("/:id", admin, h.Assignments.Delete)

	return r
}
