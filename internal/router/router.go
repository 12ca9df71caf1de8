// Package router wires the HTTP surface: the public webhook and
// payment endpoints, operator auth, and the protected admin console.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/pickleplay/court-reservation/internal/config"
	"github.com/pickleplay/court-reservation/internal/handler"
	"github.com/pickleplay/court-reservation/internal/middleware"
)

// RegisterRoutes registers unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterWebhook mounts the inbound WhatsApp webhook behind the
// per-sender rate limiter.
func RegisterWebhook(e *echo.Echo, w *handler.WebhookHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.POST("/v1/twilio/inbound", w.Inbound, middleware.NewTokenBucket(rlCfg, rdb))
}

// RegisterPayment mounts the payment page data endpoints and the
// gateway callbacks.  These are unauthenticated: the reservation id
// in the payment link is the capability, and the webhook carries its
// own signature.
func RegisterPayment(e *echo.Echo, p *handler.PaymentHandler) {
	g := e.Group("/v1/payment")
	g.GET("/reservations/:id", p.Show)
	g.POST("/reservations/:id/order", p.CreateOrder)
	g.POST("/verify", p.Verify)
	g.POST("/webhook", p.Webhook)
	g.GET("/reservations/:id/receipt", p.Receipt)
}

// RegisterAuth registers operator login plus the token-protected /me
// probe.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("OPERATOR"))
	auth.GET("/me", a.Me)
	auth.POST("/operators", a.CreateOperator)
}

// RegisterAdmin mounts the operator console under /v1/admin.  Every
// route requires a valid operator token.
func RegisterAdmin(e *echo.Echo, h *handler.AdminReservationHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("OPERATOR"))

	g.GET("/reservations", h.List)
	g.GET("/reservations/:id", h.Get)
	g.GET("/reservations/code/:code", h.GetByCode)
	g.POST("/reservations/:id/checkin", h.CheckIn)
	g.POST("/reservations/:id/cancel", h.Cancel)
	g.POST("/reservations/:id/modify", h.Modify)
}
