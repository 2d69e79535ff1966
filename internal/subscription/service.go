package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpnmarket/internal/apperr"
	"vpnmarket/internal/logging"
	"vpnmarket/internal/marzban"
	"vpnmarket/internal/models"
	"vpnmarket/internal/payment"
	"vpnmarket/internal/pricing"
	"vpnmarket/internal/store"
)

// Provisioner is the panel surface the lifecycle depends on.
type Provisioner interface {
	CreateUser(ctx context.Context, req marzban.CreateUserRequest) (*marzban.UserResponse, error)
	GetUser(ctx context.Context, username string) (*marzban.UserResponse, error)
	DisableUser(ctx context.Context, username string) error
}

type OpsNotifier interface {
	Notify(ctx context.Context, format string, args ...any)
}

// Service orchestrates purchase, webhook-driven activation, cancellation
// and the ownership-scoped listings.
type Service struct {
	Store     *store.Store
	Plans     *pricing.Service
	Panel     Provisioner
	Click     *payment.ClickGateway
	Payme     *payment.PaymeGateway
	Ops       OpsNotifier
	PublicURL string
	DataLimit int64
}

type PurchaseResult struct {
	PaymentURL string `json:"paymentUrl"`
	PaymentID  string `json:"paymentId"`
}

// Purchase is a reservation, not a charge: it records a pending PaymentLog
// and hands back the gateway redirect. No subscription or VPN account
// exists until a webhook confirms the payment.
func (s *Service) Purchase(ctx context.Context, userID, planID uuid.UUID, provider string) (*PurchaseResult, error) {
	plan, err := s.Plans.ActivePlanByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Pricing plan not found")
		}
		return nil, err
	}

	p := &models.PaymentLog{
		UserID:        userID,
		PlanID:        plan.ID,
		Amount:        plan.Price,
		Currency:      plan.Currency,
		Provider:      models.PaymentPending, // settled by the webhook
		TransactionID: fmt.Sprintf("temp_%d", time.Now().UnixMilli()),
		Status:        models.PaymentPending,
	}
	if err := s.Store.CreatePaymentLog(ctx, p); err != nil {
		return nil, err
	}

	return &PurchaseResult{
		PaymentURL: s.checkoutURL(p, provider),
		PaymentID:  p.ID.String(),
	}, nil
}

func (s *Service) checkoutURL(p *models.PaymentLog, provider string) string {
	switch provider {
	case payment.ProviderClick:
		return s.Click.CheckoutURL(p.ID.String(), p.Amount, s.PublicURL+"/payment/success")
	case payment.ProviderPayme:
		return s.Payme.CheckoutURL(p.ID.String(), p.Amount)
	default:
		return fmt.Sprintf("%s/pay/%s", s.PublicURL, p.ID)
	}
}

// ConfirmPayment drives a PaymentLog out of pending. It is idempotent: a
// redelivered webhook for a settled payment is acknowledged untouched.
//
// On success the panel account is provisioned first, then one transaction
// completes the payment and creates the Subscription and VpnAccount rows.
// A panel failure leaves the payment pending and returns an error so the
// provider redelivers; the panel username is derived from the payment id,
// so the retry reuses the account instead of minting a second one.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID uuid.UUID, provider, transactionID string, succeeded bool) error {
	l := logging.FromContext(ctx).With("svc", "subscription.confirm", "payment_id", paymentID)

	p, err := s.Store.PaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Payment not found")
		}
		return err
	}

	// Both settled states are terminal: pending -> completed | failed and
	// nothing after that. A success signal for a failed payment is a
	// provider anomaly, acknowledged without reprocessing.
	if p.Status == models.PaymentCompleted {
		l.Info("payment already completed, ignoring redelivery")
		return nil
	}
	if p.Status == models.PaymentFailed {
		l.Warn("ignoring confirmation for a failed payment", "provider", provider, "succeeded", succeeded)
		return nil
	}

	if !succeeded {
		l.Info("payment failed", "provider", provider)
		return s.Store.FailPayment(ctx, p.ID)
	}

	if p.Plan == nil {
		return fmt.Errorf("payment %s has no plan attached", p.ID)
	}

	account, expiresAt, err := s.provision(ctx, p)
	if err != nil {
		return fmt.Errorf("provisioning failed for payment %s: %w", p.ID, err)
	}

	p.Status = models.PaymentCompleted
	p.Provider = provider
	p.TransactionID = transactionID

	sub := &models.Subscription{
		UserID:    p.UserID,
		PlanID:    p.PlanID,
		Status:    models.SubscriptionActive,
		ExpiresAt: expiresAt,
	}
	account.UserID = p.UserID

	if err := s.Store.ConfirmPayment(ctx, p, sub, account); err != nil {
		return err
	}

	l.Info("payment completed, subscription activated",
		"subscription_id", sub.ID, "provider", provider, "plan", p.Plan.Name)
	if s.Ops != nil {
		s.Ops.Notify(ctx, "Payment %s completed via %s: %s %.2f %s",
			p.ID, provider, p.Plan.Name, p.Amount, p.Currency)
	}
	return nil
}

func (s *Service) provision(ctx context.Context, p *models.PaymentLog) (*models.VpnAccount, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(p.Plan.DurationDays) * 24 * time.Hour)
	username := panelUsername(p.ID)

	panelUser, err := s.Panel.CreateUser(ctx, marzban.CreateUserRequest{
		Username:  username,
		Expire:    expiresAt.Unix(),
		DataLimit: s.DataLimit,
		Status:    marzban.StatusActive,
	})
	if err != nil {
		// A previous attempt may have created the account right before the
		// DB write failed; reuse it instead of failing the retry.
		if existing, getErr := s.Panel.GetUser(ctx, username); getErr == nil {
			panelUser = existing
		} else {
			return nil, time.Time{}, err
		}
	}

	account := &models.VpnAccount{
		MarzbanUsername: panelUser.Username,
		SubscriptionURL: panelUser.SubscriptionURL,
		Links:           strings.Join(panelUser.Links, "\n"),
		DataLimit:       panelUser.DataLimit,
		Status:          models.VpnAccountActive,
		ExpiresAt:       expiresAt,
	}
	return account, expiresAt, nil
}

// panelUsername is deterministic per payment so webhook retries are safe.
func panelUsername(paymentID uuid.UUID) string {
	return "vm_" + strings.ReplaceAll(paymentID.String(), "-", "")[:16]
}

// Cancel flips the subscription and then tries to disable its panel
// accounts. A panel failure does not roll back the cancellation; the
// background checker retries the disable.
func (s *Service) Cancel(ctx context.Context, userID, subID uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "subscription.cancel", "subscription_id", subID)

	sub, err := s.Store.SubscriptionForUser(ctx, userID, subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Subscription not found")
		}
		return err
	}

	if sub.Status == models.SubscriptionCancelled {
		return apperr.BadRequest("Subscription is already cancelled")
	}

	if err := s.Store.UpdateSubscriptionStatus(ctx, sub.ID, models.SubscriptionCancelled); err != nil {
		return err
	}

	for _, account := range sub.VpnAccounts {
		if account.Status != models.VpnAccountActive {
			continue
		}
		if err := s.Panel.DisableUser(ctx, account.MarzbanUsername); err != nil {
			l.Error("failed to disable panel account, leaving for checker",
				"username", account.MarzbanUsername, "error", err)
			continue
		}
		if err := s.Store.MarkVpnAccountDisabled(ctx, account.ID); err != nil {
			l.Error("failed to mark account disabled", "account_id", account.ID, "error", err)
		}
	}

	l.Info("subscription cancelled")
	return nil
}

func (s *Service) Subscriptions(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Subscription, store.Pagination, error) {
	return s.Store.SubscriptionsPage(ctx, userID, page, limit)
}

// VpnConfigs lists accounts that are still ahead of their expiry. An
// account past expiry drops out of this view without any stored state
// changing.
func (s *Service) VpnConfigs(ctx context.Context, userID uuid.UUID) ([]models.VpnAccount, error) {
	return s.Store.ActiveVpnAccounts(ctx, userID, time.Now())
}

func (s *Service) Payments(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.PaymentLog, store.Pagination, error) {
	return s.Store.PaymentsPage(ctx, userID, page, limit)
}
