package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resaletix/resaletix-backend/config"
	"github.com/resaletix/resaletix-backend/handlers"
	"github.com/resaletix/resaletix-backend/middleware"
	"github.com/resaletix/resaletix-backend/services"
	"go.uber.org/zap"
)

// Dependencies holds everything SetupRouter wires into routes.
type Dependencies struct {
	Config         *config.Config
	JWTVerifier    *middleware.JWTVerifier
	ListingHandler *handlers.ListingHandler
	HealthHandler  *handlers.HealthHandler
	RateLimiter    services.RateLimiterInterface
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.SugaredLogger
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if err := r.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil && deps.Logger != nil {
		deps.Logger.Warnw("Invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.SecurityHeadersMiddleware(deps.Config))
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Health and metrics, no auth
	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		// Browsing is public; a valid token unlocks the caller's own pending
		// and rejected listings.
		public := v1.Group("")
		public.Use(middleware.OptionalAuthMiddleware(deps.JWTVerifier))
		{
			public.GET("/listings", deps.ListingHandler.ListListingsHandler)
			public.GET("/listings/:id", deps.ListingHandler.GetListingHandler)
		}

		authRoutes := v1.Group("")
		authRoutes.Use(middleware.AuthMiddleware(deps.JWTVerifier))
		{
			window := time.Duration(deps.Config.RateLimit.WindowSeconds) * time.Second
			authRoutes.POST("/tickets/upload",
				middleware.UploadRateLimiter(deps.RateLimiter, deps.Config.RateLimit.UploadsPerWindow, window),
				deps.ListingHandler.UploadTicketHandler,
			)
			authRoutes.POST("/tickets/parse", deps.ListingHandler.ParseTicketHandler)
			authRoutes.PUT("/listings/:id", deps.ListingHandler.UpdateListingHandler)
			authRoutes.POST("/listings/:id/confirm", deps.ListingHandler.ConfirmListingHandler)
			authRoutes.GET("/me/listings", deps.ListingHandler.ListMyListingsHandler)
		}
	}

	return r
}
