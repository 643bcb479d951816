package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/patient-intake/internal/handler/health"
	"github.com/jwalitptl/patient-intake/internal/handler/prometheus"
	"github.com/jwalitptl/patient-intake/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine     *gin.Engine
	auth       *middleware.AuthMiddleware
	userH      Handler
	patientH   Handler
	referenceH Handler
	healthH    *health.Handler
	metricsH   *prometheus.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	SizeLimit        middleware.SizeLimitConfig

	// MaxMultipartMemory is how much of an upload gin keeps in memory.
	MaxMultipartMemory int64
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	userH Handler,
	patientH Handler,
	referenceH Handler,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	config RouterConfig,
) *Router {
	engine := gin.New()
	if config.MaxMultipartMemory > 0 {
		engine.MaxMultipartMemory = config.MaxMultipartMemory
	}

	r := &Router{
		engine:     engine,
		auth:       auth,
		userH:      userH,
		patientH:   patientH,
		referenceH: referenceH,
		healthH:    healthH,
		metricsH:   metricsH,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		metricsH.Middleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.Use(middleware.SizeLimit(config.SizeLimit))

	return r
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.metricsH.Handler())

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Public routes
	r.userH.RegisterRoutes(api)
	r.referenceH.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.patientH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
