package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/bulletin-comb/app/metrics"
)

type ServerOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
	Debug          bool
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, opts ServerOptions) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/metrics", "/api/health"},
	}))

	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	setupRoutes(r, handler, opts)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, opts ServerOptions) {
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	public := r.Group("/api")
	public.Use(rateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst))
	{
		public.GET("/eventos", handler.ListEvents)
		public.GET("/eventos/rss", handler.GetEventsFeed)
		public.GET("/eventos/:id", handler.GetEvent)
		public.GET("/categorias", handler.ListCategories)
		public.GET("/health", handler.GetHealth)
		public.POST("/admin/login", handler.Login)
	}

	admin := r.Group("/api/admin")
	admin.Use(authMiddleware(handler.auth))
	{
		admin.GET("/fuentes", handler.ListSources)
		admin.POST("/fuentes", handler.CreateSource)
		admin.GET("/fuentes/:id", handler.GetSource)
		admin.PUT("/fuentes/:id", handler.UpdateSource)
		admin.DELETE("/fuentes/:id", handler.DeleteSource)
		admin.POST("/fuentes/:id/toggle", handler.ToggleSource)

		admin.POST("/upload", handler.UploadDocument)
		admin.DELETE("/upload", handler.DeleteDocument)

		admin.POST("/extract-events/:source_key", handler.ExtractEvents)
		admin.POST("/trigger-update", handler.TriggerUpdate)

		admin.GET("/logs", handler.ListRuns)
		admin.GET("/events", handler.ListAdminEvents)
		admin.DELETE("/events/:id", handler.DeleteEvent)
	}

	if handler.auth == nil {
		slog.Warn("Admin endpoints disabled (no admin password configured)")
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "Bulletin Comb",
			"version":     handler.version,
			"description": "Events extracted from municipal bulletins with an LLM, normalized and deduplicated",
			"endpoints": map[string]string{
				"events":     "/api/eventos",
				"event":      "/api/eventos/<id>",
				"rss":        "/api/eventos/rss",
				"categories": "/api/categorias",
				"health":     "/api/health",
				"metrics":    "/metrics",
				"admin":      "/api/admin/* (requires Authorization: Bearer <token> from /api/admin/login)",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
