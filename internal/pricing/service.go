package pricing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"vpnmarket/internal/cache"
	"vpnmarket/internal/logging"
	"vpnmarket/internal/models"
	"vpnmarket/internal/store"
)

const (
	activePlansKey = "pricing_plans:active"
	cacheTTL       = time.Hour
)

// Service serves the public plan listing through a read-through cache.
// Plan mutations must call InvalidateCache; the cache itself never learns
// about writes.
type Service struct {
	Store *store.Store
	Cache cache.Store
}

func NewService(st *store.Store, c cache.Store) *Service {
	return &Service{Store: st, Cache: c}
}

func (s *Service) ActivePlans(ctx context.Context) ([]models.PricingPlan, error) {
	l := logging.FromContext(ctx).With("svc", "pricing")

	if raw, err := s.Cache.Get(ctx, activePlansKey); err == nil {
		var plans []models.PricingPlan
		if err := json.Unmarshal([]byte(raw), &plans); err == nil {
			return plans, nil
		}
		l.Warn("dropping undecodable pricing cache entry")
		_ = s.Cache.Delete(ctx, activePlansKey)
	}

	plans, err := s.Store.ActivePlans(ctx)
	if err != nil {
		return nil, err
	}

	if buf, err := json.Marshal(plans); err == nil {
		if err := s.Cache.Set(ctx, activePlansKey, string(buf), cacheTTL); err != nil {
			l.Warn("failed to cache pricing plans", "error", err)
		}
	}

	return plans, nil
}

func (s *Service) ActivePlanByID(ctx context.Context, id uuid.UUID) (*models.PricingPlan, error) {
	return s.Store.ActivePlanByID(ctx, id)
}

func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.Cache.Delete(ctx, activePlansKey)
}
