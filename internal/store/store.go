package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vpnmarket/internal/models"
)

// Store is the consistency boundary over the relational model: uniqueness,
// ownership-scoped reads and the payment-confirmation transaction live here.
type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func paginate(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Create(user).Error
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	return s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).Error
}

// Pricing plans

func (s *Store) ActivePlans(ctx context.Context) ([]models.PricingPlan, error) {
	var plans []models.PricingPlan
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price ASC").
		Order("duration_days ASC").
		Find(&plans).Error
	return plans, err
}

func (s *Store) ActivePlanByID(ctx context.Context, id uuid.UUID) (*models.PricingPlan, error) {
	var plan models.PricingPlan
	err := s.DB.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Store) SavePlan(ctx context.Context, plan *models.PricingPlan) error {
	return s.DB.WithContext(ctx).Save(plan).Error
}

// Payments

func (s *Store) CreatePaymentLog(ctx context.Context, p *models.PaymentLog) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *Store) PaymentByID(ctx context.Context, id uuid.UUID) (*models.PaymentLog, error) {
	var p models.PaymentLog
	if err := s.DB.WithContext(ctx).Preload("Plan").First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) PaymentByProviderTxn(ctx context.Context, provider, transactionID string) (*models.PaymentLog, error) {
	var p models.PaymentLog
	err := s.DB.WithContext(ctx).Preload("Plan").
		First(&p, "provider = ? AND transaction_id = ?", provider, transactionID).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AttachTransaction records the provider's transaction reference on a still
// pending payment, so later provider calls can address it by that reference.
func (s *Store) AttachTransaction(ctx context.Context, id uuid.UUID, provider, transactionID string) error {
	return s.DB.WithContext(ctx).Model(&models.PaymentLog{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(map[string]any{"provider": provider, "transaction_id": transactionID}).Error
}

func (s *Store) PaymentsPage(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.PaymentLog, Pagination, error) {
	var (
		payments []models.PaymentLog
		total    int64
	)

	q := s.DB.WithContext(ctx).Model(&models.PaymentLog{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, Pagination{}, err
	}

	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, Pagination{}, err
	}

	return payments, paginate(page, limit, total), nil
}

// Subscriptions

func (s *Store) SubscriptionsPage(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Subscription, Pagination, error) {
	var (
		subs  []models.Subscription
		total int64
	)

	q := s.DB.WithContext(ctx).Model(&models.Subscription{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, Pagination{}, err
	}

	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("VpnAccounts").
		Preload("Plan").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, Pagination{}, err
	}

	return subs, paginate(page, limit, total), nil
}

// SubscriptionForUser scopes the lookup by owner; a foreign subscription id
// behaves exactly like a missing one.
func (s *Store) SubscriptionForUser(ctx context.Context, userID, subID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", subID, userID).
		Preload("VpnAccounts").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, subID uuid.UUID, status string) error {
	return s.DB.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", subID).
		Update("status", status).Error
}

// VPN accounts

// ActiveVpnAccounts returns accounts whose expiry is still ahead of now.
// Expiry is a read-time predicate; no status flip is involved.
func (s *Store) ActiveVpnAccounts(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.VpnAccount, error) {
	var accounts []models.VpnAccount
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Preload("Subscription").
		Order("created_at DESC").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) MarkVpnAccountDisabled(ctx context.Context, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&models.VpnAccount{}).
		Where("id = ?", id).
		Update("status", models.VpnAccountDisabled).Error
}

// Worker queries

func (s *Store) SubscriptionsExpiringBetween(ctx context.Context, start, end time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.DB.WithContext(ctx).
		Preload("User").
		Where("status = ? AND expires_at BETWEEN ? AND ?", models.SubscriptionActive, start, end).
		Find(&subs).Error
	return subs, err
}

func (s *Store) ExpiredActiveSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.DB.WithContext(ctx).
		Preload("User").
		Preload("VpnAccounts").
		Where("status = ? AND expires_at < ?", models.SubscriptionActive, now).
		Find(&subs).Error
	return subs, err
}

// CancelledSubscriptionsWithLiveAccounts finds cancellations whose panel
// disable has not gone through yet, so the worker can retry it.
func (s *Store) CancelledSubscriptionsWithLiveAccounts(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.DB.WithContext(ctx).
		Preload("VpnAccounts", "status = ?", models.VpnAccountActive).
		Where("status = ?", models.SubscriptionCancelled).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}

	out := subs[:0]
	for _, sub := range subs {
		if len(sub.VpnAccounts) > 0 {
			out = append(out, sub)
		}
	}
	return out, nil
}

// ConfirmPayment applies the activation atomically: the payment flips to
// completed, the subscription and its VPN account appear together.
func (s *Store) ConfirmPayment(ctx context.Context, payment *models.PaymentLog, sub *models.Subscription, account *models.VpnAccount) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(payment).Error; err != nil {
			return err
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		account.SubscriptionID = sub.ID
		return tx.Create(account).Error
	})
}

// FailPayment marks a pending payment failed. A payment that already
// settled is left alone, which keeps webhook redelivery harmless.
func (s *Store) FailPayment(ctx context.Context, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&models.PaymentLog{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Update("status", models.PaymentFailed).Error
}
