package handler

import (
	"time"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP API. apiKeyMiddleware may be nil, in which case the
// management endpoints are open.
func NewRouter(
	linkService service.LinkService,
	store Pinger,
	metrics *middleware.Metrics,
	apiKeyMiddleware gin.HandlerFunc,
	corsOrigins []string,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	if metrics != nil {
		router.Use(metrics.Middleware())
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	router.Use(cors.New(corsConfig(corsOrigins)))

	linkHandler := NewLinkHandler(linkService, logger)

	management := []gin.HandlerFunc{}
	if apiKeyMiddleware != nil {
		management = append(management, apiKeyMiddleware)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck(store, logger))

		links := v1.Group("/links", management...)
		links.POST("", linkHandler.CreateLink)
		links.GET("/:slug/stats", linkHandler.GetStats)
		links.DELETE("/:slug", linkHandler.DeleteLink)
	}

	legacy := router.Group("/api", management...)
	{
		legacy.POST("/shorten", linkHandler.Shorten)
		legacy.GET("/stats/:slug", linkHandler.GetStats)
		legacy.DELETE("/links/:slug", linkHandler.DeleteLink)
	}

	// Redirects stay public.
	router.GET("/:slug", linkHandler.Redirect)

	AddSwaggerRoutes(router)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-API-Key", PasswordHeader},
		ExposeHeaders: []string{"Location"},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	return cfg
}
