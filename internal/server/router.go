package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/scriptwell/scriptwell-backend/internal/handlers"
	"github.com/scriptwell/scriptwell-backend/internal/middleware"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	AllowedOrigins  []string
	AuthMiddleware  *middleware.AuthMiddleware
	ChatHandler     *handlers.ChatHandler
	ScriptHandler   *handlers.ScriptHandler
	AnalysisHandler *handlers.AnalysisHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("scriptwell-backend"))
	router.Use(middleware.AttachRequestContext())
	router.Use(middleware.RequestLogger(cfg.Log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Chat
	api.POST("/scripts/:id/chat", cfg.ChatHandler.Stream)

	// Script writes
	api.POST("/scripts/:id/update", cfg.ScriptHandler.UpdateWithCAS)
	api.POST("/scripts/:id/crdt", cfg.ScriptHandler.StoreCRDTUpdate)
	api.GET("/scripts/:id/crdt", cfg.ScriptHandler.LoadCRDT)
	api.GET("/scripts/:id/snapshot", cfg.ScriptHandler.Snapshot)
	api.POST("/scripts/:id/import", cfg.ScriptHandler.Import)

	// Realtime
	api.GET("/scenes/:id/crdt", cfg.ScriptHandler.LoadSceneCRDT)
	api.GET("/scenes/:id/stream", cfg.ScriptHandler.StreamScene)
	api.POST("/scenes/:id/awareness", cfg.ScriptHandler.PublishAwareness)

	// Analysis
	api.POST("/scripts/:id/analyze", cfg.AnalysisHandler.Analyze)
	api.POST("/scenes/:id/changed", cfg.AnalysisHandler.SceneChanged)
	api.GET("/jobs/dead", cfg.AnalysisHandler.DeadJobs)

	return router
}
