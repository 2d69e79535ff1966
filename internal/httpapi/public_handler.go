package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"vpnmarket/internal/pricing"
)

type PublicHandler struct {
	Pricing *pricing.Service
}

func (h *PublicHandler) PricingPlans(c echo.Context) error {
	plans, err := h.Pricing.ActivePlans(c.Request().Context())
	if err != nil {
		return err
	}
	return OK(c, http.StatusOK, plans, "Pricing plans retrieved successfully")
}
