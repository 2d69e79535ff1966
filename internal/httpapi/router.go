package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vpnmarket/internal/metrics"
)

// Deps collects everything the router needs wired in.
type Deps struct {
	Auth     *AuthHandler
	User     *UserHandler
	Public   *PublicHandler
	Webhooks *WebhookHandler

	AuthMW   *AuthMiddleware
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Logger   *slog.Logger

	// Ready reports whether downstream dependencies are reachable.
	Ready func(ctx context.Context) error

	Production bool
}

func NewServer(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Validator = NewValidator()
	e.HTTPErrorHandler = NewErrorHandler(d.Production)

	e.Use(echomw.Recover())
	e.Use(RequestLogger(d.Logger))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware)
	}

	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/refresh", d.Auth.Refresh)
	authGroup.POST("/logout", d.Auth.Logout, d.AuthMW.RequireAuth)
	authGroup.POST("/forgot-password", d.Auth.ForgotPassword)
	authGroup.POST("/reset-password", d.Auth.ResetPassword)

	api.GET("/pricing-plans", d.Public.PricingPlans)

	user := api.Group("/user", d.AuthMW.RequireAuth)
	user.GET("/profile", d.User.Profile)
	user.PUT("/profile", d.User.UpdateProfile)
	user.GET("/subscriptions", d.User.Subscriptions)
	user.POST("/subscriptions/purchase", d.User.Purchase)
	user.PUT("/subscriptions/:id/cancel", d.User.CancelSubscription)
	user.GET("/vpn-configs", d.User.VpnConfigs)
	user.GET("/payments", d.User.Payments)

	webhooks := api.Group("/payments")
	webhooks.POST("/click", d.Webhooks.ClickWebhook)
	webhooks.POST("/payme", d.Webhooks.PaymeWebhook)

	return e
}
