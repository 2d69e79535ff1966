package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"vpnmarket/internal/logging"
	"vpnmarket/internal/metrics"
	"vpnmarket/internal/models"
	"vpnmarket/internal/payment"
	"vpnmarket/internal/store"
	"vpnmarket/internal/subscription"
)

// Payme error codes per the merchant API protocol.
const (
	paymeErrAuth          = -32504
	paymeErrMethod        = -32601
	paymeErrWrongAmount   = -31001
	paymeErrOrderNotFound = -31050
	paymeErrInternal      = -31008
)

// WebhookHandler terminates the Click and Payme callback protocols. Both
// providers require HTTP 200 with protocol-level error codes in the body,
// so failures never propagate to the echo error handler.
type WebhookHandler struct {
	Store   *store.Store
	Subs    *subscription.Service
	Click   *payment.ClickGateway
	Payme   *payment.PaymeGateway
	Metrics *metrics.Metrics
}

func (h *WebhookHandler) countWebhook(provider, outcome string) {
	if h.Metrics != nil {
		h.Metrics.PaymentWebhooks.WithLabelValues(provider, outcome).Inc()
	}
}

func (h *WebhookHandler) clickReply(c echo.Context, n payment.ClickNotification, code int, note string) error {
	outcome := "ok"
	if code != payment.ClickOK {
		outcome = "rejected"
	}
	h.countWebhook(payment.ProviderClick, outcome)
	return c.JSON(http.StatusOK, payment.ClickResponse{
		ClickTransID:    n.ClickTransID,
		MerchantTransID: n.MerchantTransID,
		Error:           code,
		ErrorNote:       note,
	})
}

func (h *WebhookHandler) ClickWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx)

	if !h.Click.AllowedSource(c.RealIP()) {
		l.Warn("click webhook from disallowed source", "ip", c.RealIP())
		h.countWebhook(payment.ProviderClick, "rejected")
		return c.NoContent(http.StatusForbidden)
	}

	var n payment.ClickNotification
	if err := c.Bind(&n); err != nil {
		return h.clickReply(c, n, payment.ClickErrSign, "SIGN CHECK FAILED")
	}
	if !h.Click.VerifySign(n) {
		l.Warn("click webhook signature mismatch", "click_trans_id", n.ClickTransID)
		return h.clickReply(c, n, payment.ClickErrSign, "SIGN CHECK FAILED")
	}

	paymentID, err := uuid.Parse(n.MerchantTransID)
	if err != nil {
		return h.clickReply(c, n, payment.ClickErrTransactionNotFound, "Transaction not found")
	}
	p, err := h.Store.PaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return h.clickReply(c, n, payment.ClickErrTransactionNotFound, "Transaction not found")
		}
		l.Error("click webhook payment lookup failed", "error", err)
		return h.clickReply(c, n, payment.ClickErrInternal, "Internal error")
	}
	if n.Amount != p.Amount {
		return h.clickReply(c, n, payment.ClickErrIncorrectAmount, "Incorrect amount")
	}

	switch n.Action {
	case payment.ClickActionPrepare:
		// Prepare only validates; the payment stays pending until complete.
		return h.clickReply(c, n, payment.ClickOK, "Success")
	case payment.ClickActionComplete:
		succeeded := n.Error >= 0
		txnID := strconv.FormatInt(n.ClickTransID, 10)
		if err := h.Subs.ConfirmPayment(ctx, paymentID, payment.ProviderClick, txnID, succeeded); err != nil {
			l.Error("click webhook confirmation failed", "payment_id", paymentID, "error", err)
			return h.clickReply(c, n, payment.ClickErrInternal, "Internal error")
		}
		return h.clickReply(c, n, payment.ClickOK, "Success")
	default:
		return h.clickReply(c, n, payment.ClickErrSign, "Unknown action")
	}
}

func (h *WebhookHandler) paymeReply(c echo.Context, resp payment.PaymeResponse) error {
	outcome := "ok"
	if resp.Error != nil {
		outcome = "rejected"
	}
	h.countWebhook(payment.ProviderPayme, outcome)
	return c.JSON(http.StatusOK, resp)
}

func paymeFail(code int, message string) payment.PaymeResponse {
	return payment.PaymeResponse{Error: &payment.PaymeError{Code: code, Message: message}}
}

func (h *WebhookHandler) PaymeWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx)

	if !h.Payme.VerifyAuth(c.Request().Header.Get(echo.HeaderAuthorization)) {
		l.Warn("payme webhook auth failure", "ip", c.RealIP())
		return h.paymeReply(c, paymeFail(paymeErrAuth, "Insufficient privileges"))
	}

	var req payment.PaymeRequest
	if err := c.Bind(&req); err != nil {
		return h.paymeReply(c, paymeFail(paymeErrMethod, "Could not parse request"))
	}

	p, resp := h.paymePayment(c, req)
	if resp != nil {
		return h.paymeReply(c, *resp)
	}

	switch req.Method {
	case payment.PaymeCheckPerform:
		return h.paymeReply(c, payment.PaymeResponse{Result: map[string]any{"allow": true}})
	case payment.PaymeCreate:
		if err := h.Store.AttachTransaction(ctx, p.ID, payment.ProviderPayme, req.Params.ID); err != nil {
			l.Error("payme webhook transaction attach failed", "payment_id", p.ID, "error", err)
			return h.paymeReply(c, paymeFail(paymeErrInternal, "Could not create transaction"))
		}
		return h.paymeReply(c, payment.PaymeResponse{Result: map[string]any{
			"create_time": req.Params.Time,
			"transaction": p.ID.String(),
			"state":       1,
		}})
	case payment.PaymePerform:
		if err := h.Subs.ConfirmPayment(ctx, p.ID, payment.ProviderPayme, req.Params.ID, true); err != nil {
			l.Error("payme webhook confirmation failed", "payment_id", p.ID, "error", err)
			return h.paymeReply(c, paymeFail(paymeErrInternal, "Could not perform transaction"))
		}
		return h.paymeReply(c, payment.PaymeResponse{Result: map[string]any{
			"perform_time": time.Now().UnixMilli(),
			"transaction":  p.ID.String(),
			"state":        2,
		}})
	case payment.PaymeCancel:
		if err := h.Subs.ConfirmPayment(ctx, p.ID, payment.ProviderPayme, req.Params.ID, false); err != nil {
			l.Error("payme webhook cancellation failed", "payment_id", p.ID, "error", err)
			return h.paymeReply(c, paymeFail(paymeErrInternal, "Could not cancel transaction"))
		}
		return h.paymeReply(c, payment.PaymeResponse{Result: map[string]any{
			"cancel_time": time.Now().UnixMilli(),
			"transaction": p.ID.String(),
			"state":       -1,
		}})
	default:
		return h.paymeReply(c, paymeFail(paymeErrMethod, "Method not found"))
	}
}

// paymePayment resolves the payment a request refers to. Check and create
// calls carry our reference in params.account; perform and cancel only carry
// the Payme transaction id attached at create time. A non-nil response means
// the request is rejected.
func (h *WebhookHandler) paymePayment(c echo.Context, req payment.PaymeRequest) (*models.PaymentLog, *payment.PaymeResponse) {
	ctx := c.Request().Context()

	var (
		p   *models.PaymentLog
		err error
	)
	switch {
	case req.Params.Account != nil:
		var paymentID uuid.UUID
		paymentID, err = uuid.Parse(req.Params.Account.SubscriptionID)
		if err == nil {
			p, err = h.Store.PaymentByID(ctx, paymentID)
		}
	case req.Params.ID != "":
		p, err = h.Store.PaymentByProviderTxn(ctx, payment.ProviderPayme, req.Params.ID)
	default:
		err = gorm.ErrRecordNotFound
	}
	if err != nil {
		fail := paymeFail(paymeErrOrderNotFound, "Payment not found")
		return nil, &fail
	}
	if req.Params.Amount != 0 && int64(req.Params.Amount) != payment.ToTiyin(p.Amount) {
		fail := paymeFail(paymeErrWrongAmount, "Incorrect amount")
		return nil, &fail
	}
	return p, nil
}
