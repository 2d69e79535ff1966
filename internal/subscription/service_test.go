package subscription

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vpnmarket/internal/apperr"
	"vpnmarket/internal/cache"
	"vpnmarket/internal/marzban"
	"vpnmarket/internal/models"
	"vpnmarket/internal/payment"
	"vpnmarket/internal/pricing"
	"vpnmarket/internal/store"
)

// fakePanel records panel calls and can be told to fail.
type fakePanel struct {
	users      map[string]*marzban.UserResponse
	disabled   []string
	createErr  error
	disableErr error
}

func newFakePanel() *fakePanel {
	return &fakePanel{users: make(map[string]*marzban.UserResponse)}
}

func (f *fakePanel) CreateUser(ctx context.Context, req marzban.CreateUserRequest) (*marzban.UserResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u := &marzban.UserResponse{
		Username:        req.Username,
		Status:          req.Status,
		DataLimit:       req.DataLimit,
		SubscriptionURL: "https://panel.example.com/sub/" + req.Username,
		Links:           []string{"vless://" + req.Username},
	}
	f.users[req.Username] = u
	return u, nil
}

func (f *fakePanel) GetUser(ctx context.Context, username string) (*marzban.UserResponse, error) {
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, errors.New("panel api error: not found (status: 404)")
}

func (f *fakePanel) DisableUser(ctx context.Context, username string) error {
	if f.disableErr != nil {
		return f.disableErr
	}
	f.disabled = append(f.disabled, username)
	return nil
}

func newTestService(t *testing.T) (*Service, *store.Store, *fakePanel) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.PricingPlan{},
		&models.Subscription{},
		&models.VpnAccount{},
		&models.PaymentLog{},
	))

	st := store.New(db)
	panel := newFakePanel()
	svc := &Service{
		Store:     st,
		Plans:     pricing.NewService(st, cache.NewMemory()),
		Panel:     panel,
		Click:     payment.NewClickGateway(12345, "merchant", "secret", nil),
		Payme:     payment.NewPaymeGateway("payme-merchant", "payme-key"),
		PublicURL: "https://vpnmarket.example.com",
		DataLimit: 100 << 30,
	}
	return svc, st, panel
}

func seedUserAndPlan(t *testing.T, st *store.Store) (*models.User, *models.PricingPlan) {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Email: "user@example.com", PasswordHash: "hash", FirstName: "Test"}
	require.NoError(t, st.CreateUser(ctx, user))
	plan := &models.PricingPlan{Name: "month", Price: 50000, Currency: "UZS", DurationDays: 30, IsActive: true}
	require.NoError(t, st.SavePlan(ctx, plan))
	return user, plan
}

func TestPurchaseCreatesPendingPayment(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	assert.Contains(t, result.PaymentURL, "my.click.uz")
	assert.Contains(t, result.PaymentURL, result.PaymentID)

	paymentID, err := uuid.Parse(result.PaymentID)
	require.NoError(t, err)
	p, err := st.PaymentByID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status)
	assert.Equal(t, models.PaymentPending, p.Provider)
	assert.True(t, strings.HasPrefix(p.TransactionID, "temp_"))
	assert.Equal(t, plan.Price, p.Amount)

	// No subscription until a webhook settles the payment.
	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPurchaseUnknownPlan(t *testing.T) {
	svc, st, _ := newTestService(t)
	user, _ := seedUserAndPlan(t, st)

	_, err := svc.Purchase(context.Background(), user.ID, uuid.New(), payment.ProviderClick)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "Pricing plan not found", ae.Message)
}

func TestConfirmPaymentActivatesSubscription(t *testing.T) {
	svc, st, panel := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)

	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))

	p, err := st.PaymentByID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Equal(t, payment.ProviderClick, p.Provider)
	assert.Equal(t, "99001", p.TransactionID)

	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionActive, subs[0].Status)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), subs[0].ExpiresAt, time.Minute)

	require.Len(t, subs[0].VpnAccounts, 1)
	account := subs[0].VpnAccounts[0]
	assert.Equal(t, panelUsername(paymentID), account.MarzbanUsername)
	assert.NotNil(t, panel.users[account.MarzbanUsername])
	assert.Equal(t, models.VpnAccountActive, account.Status)
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)

	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))
	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))

	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, subs, 1, "redelivery must not duplicate the subscription")
}

func TestConfirmPaymentFailure(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderPayme)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)

	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderPayme, "txn", false))

	p, err := st.PaymentByID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, p.Status)

	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestConfirmPaymentFailedIsTerminal(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)

	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", false))

	// A late success signal must not resurrect a settled failure.
	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))

	p, err := st.PaymentByID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, p.Status)

	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestConfirmPaymentPanelFailureLeavesPending(t *testing.T) {
	svc, st, panel := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)

	panel.createErr = errors.New("panel down")
	err = svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true)
	require.Error(t, err)

	p, err := st.PaymentByID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status, "payment stays pending so the provider redelivers")

	// The provider retries, the panel has recovered.
	panel.createErr = nil
	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))
}

func TestConfirmPaymentReusesOrphanedPanelAccount(t *testing.T) {
	svc, st, panel := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)

	// The account already exists on the panel from a half-finished attempt.
	username := panelUsername(paymentID)
	_, err = panel.CreateUser(ctx, marzban.CreateUserRequest{Username: username, Status: marzban.StatusActive})
	require.NoError(t, err)
	panel.createErr = errors.New("user already exists")

	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))

	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Len(t, subs[0].VpnAccounts, 1)
	assert.Equal(t, username, subs[0].VpnAccounts[0].MarzbanUsername)
}

func TestConfirmPaymentUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.ConfirmPayment(context.Background(), uuid.New(), payment.ProviderClick, "99001", true)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)
}

func TestCancelDisablesPanelAccounts(t *testing.T) {
	svc, st, panel := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)
	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))

	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	require.NoError(t, svc.Cancel(ctx, user.ID, subs[0].ID))

	got, err := st.SubscriptionForUser(ctx, user.ID, subs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, got.Status)
	require.Len(t, got.VpnAccounts, 1)
	assert.Equal(t, models.VpnAccountDisabled, got.VpnAccounts[0].Status)
	assert.Contains(t, panel.disabled, got.VpnAccounts[0].MarzbanUsername)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	sub := &models.Subscription{
		UserID: user.ID, PlanID: plan.ID,
		Status: models.SubscriptionCancelled, ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, st.DB.Create(sub).Error)

	err := svc.Cancel(ctx, user.ID, sub.ID)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "Subscription is already cancelled", ae.Message)
}

func TestCancelForeignSubscriptionIsNotFound(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	intruder := &models.User{Email: "intruder@example.com", PasswordHash: "hash", FirstName: "X"}
	require.NoError(t, st.CreateUser(ctx, intruder))

	sub := &models.Subscription{
		UserID: user.ID, PlanID: plan.ID,
		Status: models.SubscriptionActive, ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, st.DB.Create(sub).Error)

	err := svc.Cancel(ctx, intruder.ID, sub.ID)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)

	got, err := st.SubscriptionForUser(ctx, user.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, got.Status)
}

func TestCancelPanelFailureStillCancels(t *testing.T) {
	svc, st, panel := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)

	result, err := svc.Purchase(ctx, user.ID, plan.ID, payment.ProviderClick)
	require.NoError(t, err)
	paymentID := uuid.MustParse(result.PaymentID)
	require.NoError(t, svc.ConfirmPayment(ctx, paymentID, payment.ProviderClick, "99001", true))

	subs, _, err := st.SubscriptionsPage(ctx, user.ID, 1, 10)
	require.NoError(t, err)

	panel.disableErr = errors.New("panel down")
	require.NoError(t, svc.Cancel(ctx, user.ID, subs[0].ID))

	got, err := st.SubscriptionForUser(ctx, user.ID, subs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, got.Status)
	// The account stays live for the background checker to pick up.
	require.Len(t, got.VpnAccounts, 1)
	assert.Equal(t, models.VpnAccountActive, got.VpnAccounts[0].Status)
}

func TestVpnConfigsExcludesExpired(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	user, plan := seedUserAndPlan(t, st)
	now := time.Now()

	sub := &models.Subscription{
		UserID: user.ID, PlanID: plan.ID,
		Status: models.SubscriptionActive, ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, st.DB.Create(sub).Error)
	require.NoError(t, st.DB.Create(&models.VpnAccount{
		UserID: user.ID, SubscriptionID: sub.ID,
		MarzbanUsername: "vm_past", Status: models.VpnAccountActive,
		ExpiresAt: now.Add(-time.Second),
	}).Error)
	require.NoError(t, st.DB.Create(&models.VpnAccount{
		UserID: user.ID, SubscriptionID: sub.ID,
		MarzbanUsername: "vm_live", Status: models.VpnAccountActive,
		ExpiresAt: now.Add(time.Hour),
	}).Error)

	accounts, err := svc.VpnConfigs(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "vm_live", accounts[0].MarzbanUsername)
}

func TestPanelUsernameDeterministic(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, panelUsername(id), panelUsername(id))
	assert.True(t, strings.HasPrefix(panelUsername(id), "vm_"))
	assert.Len(t, panelUsername(id), len("vm_")+16)
}
