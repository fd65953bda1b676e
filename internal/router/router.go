package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/config"
	"github.com/neudev/attemptd/internal/handler"
	"github.com/neudev/attemptd/internal/middleware"
	"github.com/neudev/attemptd/internal/response"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(cfg *config.Config, handlers *Handlers, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Every reply carries its request id in meta.
	router.Use(response.RequestIDMiddleware())
	router.Use(response.AccessLog(log))

	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── Attempts ──────────────────────────────────────────────────────
	// Attempt state changes every second; nothing here may be cached.
	runLimiter := middleware.NewRateLimiter(30, time.Minute)

	api := router.Group("/api/v1/attempts/:activity_id")
	api.Use(middleware.RequireIdentity(cfg.JWTSecret), middleware.NoStore())
	{
		api.POST("/start", handlers.Attempt.Start)
		api.GET("/state", handlers.Attempt.State)
		api.POST("/focus", handlers.Attempt.FocusItem)
		api.POST("/language", handlers.Attempt.SelectLanguage)

		api.PUT("/files/active", handlers.Attempt.EditActiveFile)
		api.POST("/files", handlers.Attempt.AddFile)
		api.POST("/files/:file_id/select", handlers.Attempt.SelectFile)
		api.PATCH("/files/:file_id", handlers.Attempt.RenameFile)
		api.DELETE("/files/:file_id", handlers.Attempt.DeleteFile)

		api.POST("/run", runLimiter.Middleware(), handlers.Attempt.Run)
		api.POST("/check", runLimiter.Middleware(), handlers.Attempt.Check)

		api.POST("/finish", middleware.RequireRole(auth.RoleStudent), handlers.Attempt.Finish)
		api.DELETE("", handlers.Attempt.Close)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	// Browsers cannot set headers on upgrade; RequireIdentity also reads ?token=.
	wsGroup := router.Group("/ws/v1/attempts/:activity_id")
	wsGroup.Use(middleware.RequireIdentity(cfg.JWTSecret))
	{
		wsGroup.GET("/events", handlers.WS.AttemptEvents)
	}

	return router
}
