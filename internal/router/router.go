// Package router registers the HTTP routes of the booking engine and
// binds the middleware chain (authentication, role enforcement, rate
// limiting and response caching) to the right route groups.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Fuad208/MovieStore1-sub000/internal/config"
	"github.com/Fuad208/MovieStore1-sub000/internal/handler"
	"github.com/Fuad208/MovieStore1-sub000/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the seat availability and reservation
// lifecycle routes.
//
// The availability read is public and served through the Redis
// response cache.  Lifecycle mutations require a valid access token
// and run behind the token-bucket rate limiter; check-in, refunds,
// reporting and the manual sweep are fenced to staff roles.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, cfg *config.Config, cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	// Public seat snapshot, cached per showtime.
	e.GET("/v1/showtimes/:id/seats", h.AvailableSeats, middleware.NewRedisCache(cacheCfg, rdb))

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))
	auth.Use(middleware.NewTokenBucket(rlCfg, rdb))

	// Customer lifecycle.
	auth.POST("/reservations", h.CreateHold)
	auth.POST("/reservations/:id/confirm", h.Confirm)
	auth.POST("/reservations/:id/cancel", h.Cancel)

	// Reads.
	auth.GET("/my-reservations", h.ListMyReservations)
	auth.GET("/reservations/upcoming", h.ListUpcoming)
	auth.GET("/reservations/:id", h.GetReservation)

	// Staff operations.
	staff := auth.Group("")
	staff.Use(middleware.RequireRole("STAFF", "ADMIN"))
	staff.POST("/reservations/:id/refund", h.ProcessRefund)
	staff.POST("/reservations/:id/checkin", h.PerformCheckin)
	staff.POST("/reservations/sweep", h.ExpireSweep)
	staff.GET("/reservations", h.ListByDateRange)
	staff.GET("/reservations/statistics", h.Statistics)
}
