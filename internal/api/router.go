package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"booking-backend/config"
	"booking-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		// Behind a reverse proxy the client IP arrives in a header; the
		// rate limiter keys on it.
		r.TrustedPlatform = cfg.RequestIPHeader
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), 5)
	caching := mw.Cache(h.cache, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/resources", caching, h.ListResources)
		api.POST("/resources", h.CreateResource)

		api.GET("/resources/:resource_id/allocations", caching, h.ListAllocations)
		api.POST("/resources/:resource_id/allocations", h.CreateAllocation)

		api.GET("/resources/:resource_id/availability", caching, h.GetAvailability)

		api.GET("/resources/:resource_id/reservations", h.ListReservations)
		api.POST("/resources/:resource_id/reservations", h.CreateReservation)
		api.POST("/reservations/:reservation_id/confirm", h.ConfirmReservation)
		api.DELETE("/reservations/:reservation_id", h.CancelReservation)

		api.GET("/reports/monthly", caching, h.MonthlyReport)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
