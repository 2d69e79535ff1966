package pricing

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vpnmarket/internal/cache"
	"vpnmarket/internal/models"
	"vpnmarket/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PricingPlan{}))

	st := store.New(db)
	return NewService(st, cache.NewMemory()), st
}

func addPlan(t *testing.T, st *store.Store, name string, price float64) *models.PricingPlan {
	t.Helper()
	plan := &models.PricingPlan{Name: name, Price: price, DurationDays: 30, IsActive: true}
	require.NoError(t, st.SavePlan(context.Background(), plan))
	return plan
}

func TestActivePlansServedFromCache(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	addPlan(t, st, "month", 50)

	first, err := svc.ActivePlans(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A write the cache never heard about stays invisible until the TTL
	// or an explicit invalidation.
	addPlan(t, st, "year", 400)

	second, err := svc.ActivePlans(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestInvalidateCache(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	addPlan(t, st, "month", 50)

	_, err := svc.ActivePlans(ctx)
	require.NoError(t, err)

	addPlan(t, st, "year", 400)
	require.NoError(t, svc.InvalidateCache(ctx))

	plans, err := svc.ActivePlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}

func TestCorruptCacheEntryRecomputed(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	addPlan(t, st, "month", 50)

	require.NoError(t, svc.Cache.Set(ctx, "pricing_plans:active", "{not json", 0))

	plans, err := svc.ActivePlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestActivePlanByIDPassthrough(t *testing.T) {
	svc, st := newTestService(t)
	plan := addPlan(t, st, "month", 50)

	got, err := svc.ActivePlanByID(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)
}
