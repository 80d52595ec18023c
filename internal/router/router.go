// Package router wires handlers and route-scoped middleware onto an Echo
// instance.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ferry-reservation/internal/config"
	"github.com/iliyamo/ferry-reservation/internal/handler"
	"github.com/iliyamo/ferry-reservation/internal/middleware"
)

// Handlers bundles everything the route table dispatches to.
type Handlers struct {
	Sailings *handler.SailingHandler
	Bookings *handler.BookingHandler
	Scan     *handler.ScanHandler
	Payments *handler.PaymentHandler
}

// Options configure the Redis backed middleware.  A nil Redis client turns
// both the response cache and the rate limit into pass-throughs.
type Options struct {
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *slog.Logger
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the /v1 API.  Schedule search is served through
// the response cache; booking creation and the scan gate are rate limited.
func RegisterAPI(e *echo.Echo, h Handlers, opts Options) {
	cache := middleware.NewRedisCache(opts.Cache, opts.Redis, opts.Log)
	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis, opts.Log)

	v1 := e.Group("/v1")

	s := v1.Group("/sailings")
	s.GET("/search", h.Sailings.Search, cache)
	s.GET("/:id", h.Sailings.Get)
	s.PATCH("/:id/status", h.Sailings.UpdateStatus)

	b := v1.Group("/bookings")
	b.POST("", h.Bookings.Create, limit)
	b.GET("/:id", h.Bookings.Get)
	b.GET("/ref/:reference", h.Bookings.GetByReference)
	b.POST("/:id/confirm", h.Bookings.Confirm)
	b.POST("/:id/cancel", h.Bookings.Cancel)

	v1.GET("/tickets/:id", h.Bookings.GetTicket)
	v1.POST("/scan", h.Scan.Scan, limit)
	v1.POST("/payments/webhook", h.Payments.Webhook)
}
