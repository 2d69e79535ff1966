package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vpnmarket/internal/cache"
	"vpnmarket/internal/models"
	"vpnmarket/internal/store"
	"vpnmarket/internal/subscription"
)

type Mailer interface {
	Send(to, subject, body string) error
}

type OpsNotifier interface {
	Notify(ctx context.Context, format string, args ...any)
}

// Checker sweeps subscriptions on a fixed interval: it warns users a day
// before expiry, disables expired accounts on the panel and retries panel
// disables that a cancellation could not complete.
type Checker struct {
	Store    *store.Store
	Cache    cache.Store
	Panel    subscription.Provisioner
	Mailer   Mailer
	Ops      OpsNotifier
	Interval time.Duration
	Log      *slog.Logger
}

func NewChecker(st *store.Store, c cache.Store, panel subscription.Provisioner, mailer Mailer, ops OpsNotifier, log *slog.Logger) *Checker {
	return &Checker{
		Store:    st,
		Cache:    c,
		Panel:    panel,
		Mailer:   mailer,
		Ops:      ops,
		Interval: time.Hour,
		Log:      log,
	}
}

func (c *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	c.Log.Info("background subscription checker started")

	// Run once at start
	c.CheckSubscriptions(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckSubscriptions(ctx)
		}
	}
}

func (c *Checker) CheckSubscriptions(ctx context.Context) {
	now := time.Now()
	c.Log.Info("running subscription check cycle")

	c.warnExpiringSoon(ctx, now)
	c.sweepExpired(ctx, now)
	c.retryCancelledDisables(ctx)
}

// warnExpiringSoon notifies users whose subscription ends in roughly a day.
// The dedupe key outlives the window so one expiry produces one mail.
func (c *Checker) warnExpiringSoon(ctx context.Context, now time.Time) {
	start := now.Add(23 * time.Hour)
	end := now.Add(25 * time.Hour)

	expiringSoon, err := c.Store.SubscriptionsExpiringBetween(ctx, start, end)
	if err != nil {
		c.Log.Error("error querying expiring subscriptions", "error", err)
		return
	}

	for _, sub := range expiringSoon {
		if sub.User == nil {
			continue
		}
		key := fmt.Sprintf("notified_24h_%s", sub.ID)
		if _, err := c.Cache.Get(ctx, key); err == nil {
			continue
		}

		body := fmt.Sprintf("Your VPN subscription expires on %s. Renew it to keep your access.",
			sub.ExpiresAt.Format(time.RFC1123))
		if err := c.Mailer.Send(sub.User.Email, "Your subscription expires in 24 hours", body); err != nil {
			c.Log.Error("failed to send expiry warning", "user_id", sub.UserID, "error", err)
			continue
		}
		if err := c.Cache.Set(ctx, key, "true", 48*time.Hour); err != nil {
			c.Log.Error("failed to set notification dedupe key", "error", err)
		}
		c.Log.Info("sent 24h expiry warning", "subscription_id", sub.ID)
	}
}

func (c *Checker) sweepExpired(ctx context.Context, now time.Time) {
	expired, err := c.Store.ExpiredActiveSubscriptions(ctx, now)
	if err != nil {
		c.Log.Error("error querying expired subscriptions", "error", err)
		return
	}

	for _, sub := range expired {
		if !c.disableAccounts(ctx, sub.VpnAccounts) {
			// Leave the subscription active so the next cycle retries.
			continue
		}
		if err := c.Store.UpdateSubscriptionStatus(ctx, sub.ID, models.SubscriptionExpired); err != nil {
			c.Log.Error("failed to mark subscription expired", "subscription_id", sub.ID, "error", err)
			continue
		}
		c.Log.Info("subscription expired and disabled on panel", "subscription_id", sub.ID)
		if c.Ops != nil {
			c.Ops.Notify(ctx, "Subscription %s expired, panel access disabled", sub.ID)
		}
	}
}

func (c *Checker) retryCancelledDisables(ctx context.Context) {
	cancelled, err := c.Store.CancelledSubscriptionsWithLiveAccounts(ctx)
	if err != nil {
		c.Log.Error("error querying cancelled subscriptions", "error", err)
		return
	}

	for _, sub := range cancelled {
		c.disableAccounts(ctx, sub.VpnAccounts)
	}
}

func (c *Checker) disableAccounts(ctx context.Context, accounts []models.VpnAccount) bool {
	allDone := true
	for _, account := range accounts {
		if account.Status != models.VpnAccountActive {
			continue
		}
		if err := c.Panel.DisableUser(ctx, account.MarzbanUsername); err != nil {
			c.Log.Error("failed to disable panel account",
				"username", account.MarzbanUsername, "error", err)
			allDone = false
			continue
		}
		if err := c.Store.MarkVpnAccountDisabled(ctx, account.ID); err != nil {
			c.Log.Error("failed to mark account disabled", "account_id", account.ID, "error", err)
			allDone = false
		}
	}
	return allDone
}
