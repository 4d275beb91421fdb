package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/pkg/metrics"
	"github.com/agripulse/agri_go_server/internal/repository"
	"github.com/agripulse/agri_go_server/internal/testutil"
)

func setupEntitlementGate(t *testing.T) (*EntitlementGate, *gorm.DB, *metrics.Metrics, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	m := metrics.New(prometheus.NewRegistry())
	gate := NewEntitlementGate(repository.NewSubscriptionRepository(db), m)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return gate, db, m, cleanup
}

func subscriptionWith(plan model.Plan, status model.SubscriptionStatus) *model.Subscription {
	def, _ := model.LookupPlan(plan)
	return &model.Subscription{Plan: plan, Status: status, Limits: def.Limits}
}

// 免费套餐：只读面板可用，定制报表不可用
func TestCanUse_FreePlan(t *testing.T) {
	sub := subscriptionWith(model.PlanFree, model.StatusActive)

	assert.True(t, CanUse(sub, model.CapabilityDashboard))
	assert.False(t, CanUse(sub, model.CapabilityCustom))
	assert.False(t, CanUse(sub, model.CapabilityAPI))
	assert.False(t, CanUse(sub, model.CapabilityExport))
}

func TestCanUse_NilSubscriptionIsFree(t *testing.T) {
	assert.True(t, CanUse(nil, model.CapabilityDashboard))
	assert.False(t, CanUse(nil, model.CapabilityCustom))
	assert.False(t, CanUse(nil, model.CapabilityAPI))
}

func TestCanUse_StatusGating(t *testing.T) {
	capabilities := []model.Capability{
		model.CapabilityAPI,
		model.CapabilityExport,
		model.CapabilityDashboard,
		model.CapabilityCustom,
	}

	tests := []struct {
		status  model.SubscriptionStatus
		allowed bool
	}{
		{model.StatusActive, true},
		{model.StatusPastDue, true},
		{model.StatusTrialing, false},
		{model.StatusExpired, false},
		{model.StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sub := subscriptionWith(model.PlanEnterprise, tt.status)
			for _, c := range capabilities {
				assert.Equal(t, tt.allowed, CanUse(sub, c), "capability %s", c)
			}
		})
	}
}

func TestCanUse_Limits(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		used    int
		allowed bool
	}{
		{"below limit", 10, 9, true},
		{"at limit", 10, 10, false},
		{"over limit", 10, 12, false},
		{"zero limit", 0, 0, false},
		{"unlimited", model.Unlimited, 1000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := subscriptionWith(model.PlanInsights, model.StatusActive)
			sub.Limits.APIRequests = tt.limit
			sub.Usage.APIRequests = tt.used
			assert.Equal(t, tt.allowed, CanUse(sub, model.CapabilityAPI))
		})
	}
}

func TestCanUse_DashboardNone(t *testing.T) {
	sub := subscriptionWith(model.PlanInsights, model.StatusActive)
	sub.Limits.DashboardAccess = model.DashboardNone
	assert.False(t, CanUse(sub, model.CapabilityDashboard))
}

func TestEntitlementGate_RecordUsage_UntilLimit(t *testing.T) {
	gate, db, _, cleanup := setupEntitlementGate(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, account.ID,
		testutil.WithPlan(model.PlanInsights),
		testutil.WithLimits(3, 1),
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, gate.RecordUsage(account.ID, model.CapabilityAPI))
	}
	assert.ErrorIs(t, gate.RecordUsage(account.ID, model.CapabilityAPI), ErrQuotaExceeded)

	sub, err := gate.Snapshot(account.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Usage.APIRequests)
	assert.False(t, CanUse(sub, model.CapabilityAPI))

	require.NoError(t, gate.RecordUsage(account.ID, model.CapabilityExport))
	assert.ErrorIs(t, gate.RecordUsage(account.ID, model.CapabilityExport), ErrQuotaExceeded)
}

// 并发计量：恰好 N 次成功，之后拒绝
func TestEntitlementGate_RecordUsage_Concurrent(t *testing.T) {
	gate, db, _, cleanup := setupEntitlementGate(t)
	defer cleanup()

	const limit = 20
	account := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, account.ID,
		testutil.WithPlan(model.PlanInsights),
		testutil.WithLimits(limit, 0),
	)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed, rejected := 0, 0
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.RecordUsage(account.ID, model.CapabilityAPI)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				allowed++
			case errors.Is(err, ErrQuotaExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed)
	assert.Equal(t, limit, rejected)

	sub, err := gate.Snapshot(account.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, sub.Usage.APIRequests)
	assert.False(t, CanUse(sub, model.CapabilityAPI))
}

// 剩一次额度时两个并发请求只有一个成功
func TestEntitlementGate_RecordUsage_LastUnit(t *testing.T) {
	gate, db, _, cleanup := setupEntitlementGate(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, account.ID,
		testutil.WithPlan(model.PlanInsights),
		testutil.WithStatus(model.StatusActive),
		testutil.WithUsage(4999, 0),
	)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = gate.RecordUsage(account.ID, model.CapabilityAPI)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	}
	assert.Equal(t, 1, succeeded)

	sub, _ := gate.Snapshot(account.ID)
	assert.Equal(t, 5000, sub.Usage.APIRequests)
}

func TestEntitlementGate_RecordUsage_Unlimited(t *testing.T) {
	gate, db, _, cleanup := setupEntitlementGate(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, account.ID,
		testutil.WithPlan(model.PlanEnterprise),
		testutil.WithLimits(model.Unlimited, model.Unlimited),
	)

	for i := 0; i < 50; i++ {
		require.NoError(t, gate.RecordUsage(account.ID, model.CapabilityAPI))
	}

	sub, _ := gate.Snapshot(account.ID)
	assert.Equal(t, 50, sub.Usage.APIRequests)
	assert.True(t, CanUse(sub, model.CapabilityAPI))
}

func TestEntitlementGate_RecordUsage_Denied(t *testing.T) {
	gate, db, _, cleanup := setupEntitlementGate(t)
	defer cleanup()

	tests := []struct {
		name string
		opts []func(*model.Subscription)
		want error
	}{
		{"expired", []func(*model.Subscription){testutil.WithPlan(model.PlanInsights), testutil.WithStatus(model.StatusExpired)}, ErrNotEntitled},
		{"cancelled", []func(*model.Subscription){testutil.WithPlan(model.PlanInsights), testutil.WithStatus(model.StatusCancelled)}, ErrNotEntitled},
		{"trialing", []func(*model.Subscription){testutil.WithPendingPayment(model.MethodBankTransfer, "AGRI-denied"), testutil.WithPlan(model.PlanInsights)}, ErrNotEntitled},
		{"free plan", nil, ErrNotEntitled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := testutil.TestAccount(t, db)
			testutil.TestSubscription(t, db, account.ID, tt.opts...)

			err := gate.RecordUsage(account.ID, model.CapabilityAPI)
			assert.ErrorIs(t, err, tt.want)

			sub, _ := gate.Snapshot(account.ID)
			assert.Equal(t, 0, sub.Usage.APIRequests)
		})
	}

	t.Run("no subscription", func(t *testing.T) {
		assert.ErrorIs(t, gate.RecordUsage(123456, model.CapabilityAPI), ErrNotEntitled)
	})
}

func TestEntitlementGate_Authorize(t *testing.T) {
	gate, db, m, cleanup := setupEntitlementGate(t)
	defer cleanup()

	free := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, free.ID)

	enterprise := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, enterprise.ID, testutil.WithPlan(model.PlanEnterprise))

	assert.NoError(t, gate.Authorize(free.ID, model.CapabilityDashboard))
	assert.ErrorIs(t, gate.Authorize(free.ID, model.CapabilityCustom), ErrNotEntitled)
	assert.NoError(t, gate.Authorize(enterprise.ID, model.CapabilityCustom))
	assert.NoError(t, gate.Authorize(enterprise.ID, model.CapabilityExport))

	// 非计量能力不计入用量
	sub, _ := gate.Snapshot(enterprise.ID)
	assert.Equal(t, 1, sub.Usage.DataExports)
	assert.Equal(t, 0, sub.Usage.APIRequests)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.EntitlementDecisions.WithLabelValues("custom", "not_entitled")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EntitlementDecisions.WithLabelValues("custom", "allowed")))
}

func TestEntitlementGate_Refund(t *testing.T) {
	gate, db, _, cleanup := setupEntitlementGate(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, account.ID, testutil.WithPlan(model.PlanInsights), testutil.WithUsage(0, 2))

	require.NoError(t, gate.Refund(account.ID, model.CapabilityExport))
	require.NoError(t, gate.Refund(account.ID, model.CapabilityDashboard))

	sub, _ := gate.Snapshot(account.ID)
	assert.Equal(t, 1, sub.Usage.DataExports)
}

func TestEntitlementGate_Snapshot_NoRow(t *testing.T) {
	gate, _, _, cleanup := setupEntitlementGate(t)
	defer cleanup()

	sub, err := gate.Snapshot(55)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, sub.Plan)
	assert.Equal(t, model.StatusActive, sub.Status)
	assert.Equal(t, int64(55), sub.AccountID)
}
