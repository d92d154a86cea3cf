package api

import (
	"github.com/gin-gonic/gin"

	"github.com/maribel/gemlens/internal/api/handler"
	"github.com/maribel/gemlens/internal/api/middleware"
	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/logger"
	"github.com/maribel/gemlens/internal/service"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(
	orchestrator *service.Orchestrator,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	if log == nil {
		log = logger.GetDefault()
	}

	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	uploadHandler := handler.NewUploadHandler(orchestrator)
	jobHandler := handler.NewJobHandler(orchestrator)
	analysisHandler := handler.NewAnalysisHandler(orchestrator)
	modesHandler := handler.NewModesHandler(cfg.Modes)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	v1.GET("/modes", modesHandler.List)

	authed := v1.Group("")
	authed.Use(middleware.Identity())
	{
		authed.POST("/uploads", uploadHandler.Upload)
		authed.GET("/jobs", jobHandler.List)
		authed.GET("/jobs/:id", jobHandler.Get)
		authed.GET("/analyses", analysisHandler.List)
		authed.GET("/analyses/:id", analysisHandler.Get)
		authed.GET("/stats", analysisHandler.Stats)
	}

	return r
}
