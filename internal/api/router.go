package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/moodtune/internal/api/handler"
	"github.com/timmy/moodtune/internal/api/middleware"
	"github.com/timmy/moodtune/internal/config"
	"github.com/timmy/moodtune/internal/logger"
)

// Router is the configured HTTP handler plus the background state it owns.
type Router struct {
	*gin.Engine
	limiter *middleware.RateLimiter
}

// Close stops background work started by SetupRouter.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}

// SetupRouter configures the Gin router with all routes
// Parameters:
//   - uploads: upload service.
//   - warmer: readiness check; nil reports always ready.
//   - cfg: server configuration.
//   - log: base request logger; nil uses the default logger.
// Returns:
//   - *Router: ready router; call Close on shutdown.
func SetupRouter(
	uploads handler.Uploader,
	warmer handler.Warmer,
	cfg *config.ServerConfig,
	log *logger.Logger,
) *Router {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	if log == nil {
		log = logger.Default()
	}

	maxBytes := int64(cfg.MaxUploadMB) << 20

	r := gin.New()
	r.MaxMultipartMemory = maxBytes

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(warmer)
	uploadHandler := handler.NewUploadHandler(uploads, maxBytes)

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter, rateLimit := middleware.RateLimitFromConfig(cfg.RateLimit)

	v1 := r.Group("/api/v1")
	{
		// Uploads run inference, so only they are rate limited.
		if rateLimit != nil {
			v1.POST("/upload", rateLimit, uploadHandler.Upload)
		} else {
			v1.POST("/upload", uploadHandler.Upload)
		}

		v1.GET("/recommendations/:id", uploadHandler.GetRecommendations)
		v1.GET("/stats", uploadHandler.GetStats)
	}

	return &Router{Engine: r, limiter: limiter}
}
