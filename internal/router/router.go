// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/kinohaus/seat-booking/internal/config"
	"github.com/kinohaus/seat-booking/internal/handler"
	"github.com/kinohaus/seat-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, sh *handler.ShowHandler) {
	e.GET("/healthz", handler.Health)
	// Seat availability is public so guests can browse before
	// authenticating to hold seats.
	e.GET("/v1/shows/:id/availability", sh.Availability)
}

// RegisterBooking registers the authenticated booking flow.  Every
// route requires a valid access token and a known role; the Redis
// token bucket shields the contended write endpoints.
func RegisterBooking(e *echo.Echo, rh *handler.ReservationHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("CUSTOMER", "ADMIN"))
	g.Use(middleware.NewTokenBucket(rl, rdb))

	g.POST("/shows/:id/hold", rh.Hold)
	g.DELETE("/shows/:id/hold", rh.ReleaseHold)
	g.POST("/shows/:id/confirm", rh.Confirm)

	g.GET("/bookings", rh.List)
	g.GET("/bookings/:id", rh.Get)
	g.POST("/bookings/:id/cancel", rh.Cancel)
}
