package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"vpnmarket/internal/apperr"
	"vpnmarket/internal/store"
	"vpnmarket/internal/subscription"
)

type UserHandler struct {
	Store *store.Store
	Subs  *subscription.Service
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=2,max=64"`
	LastName  *string `json:"last_name" validate:"omitempty,max=64"`
	Language  *string `json:"language" validate:"omitempty,oneof=ru uz en"`
}

type purchaseRequest struct {
	PlanID   string `json:"plan_id" validate:"required,uuid"`
	Provider string `json:"provider" validate:"required,oneof=click payme"`
}

func (h *UserHandler) Profile(c echo.Context) error {
	user, err := h.Store.UserByID(c.Request().Context(), UserID(c))
	if err != nil {
		return err
	}
	return OK(c, http.StatusOK, user, "Profile retrieved successfully")
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.Store.UserByID(ctx, UserID(c))
	if err != nil {
		return err
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Language != nil {
		user.Language = *req.Language
	}
	if err := h.Store.SaveUser(ctx, user); err != nil {
		return err
	}
	return OK(c, http.StatusOK, user, "Profile updated successfully")
}

func (h *UserHandler) Subscriptions(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	subs, pg, err := h.Subs.Subscriptions(c.Request().Context(), UserID(c), page, limit)
	if err != nil {
		return err
	}
	return OK(c, http.StatusOK, PagedData{Data: subs, Pagination: pg}, "Subscriptions retrieved successfully")
}

func (h *UserHandler) Purchase(c echo.Context) error {
	var req purchaseRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return &ValidationError{Messages: []string{"plan_id must be a valid UUID"}}
	}
	result, err := h.Subs.Purchase(c.Request().Context(), UserID(c), planID, req.Provider)
	if err != nil {
		return err
	}
	return OK(c, http.StatusCreated, result, "Payment initiated successfully")
}

func (h *UserHandler) CancelSubscription(c echo.Context) error {
	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("Subscription not found")
	}
	if err := h.Subs.Cancel(c.Request().Context(), UserID(c), subID); err != nil {
		return err
	}
	return OK(c, http.StatusOK, nil, "Subscription cancelled successfully")
}

func (h *UserHandler) VpnConfigs(c echo.Context) error {
	accounts, err := h.Subs.VpnConfigs(c.Request().Context(), UserID(c))
	if err != nil {
		return err
	}
	return OK(c, http.StatusOK, accounts, "VPN configurations retrieved successfully")
}

func (h *UserHandler) Payments(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	payments, pg, err := h.Subs.Payments(c.Request().Context(), UserID(c), page, limit)
	if err != nil {
		return err
	}
	return OK(c, http.StatusOK, PagedData{Data: payments, Pagination: pg}, "Payment history retrieved successfully")
}
