package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/repository"
	"github.com/agripulse/agri_go_server/internal/service"
	"github.com/agripulse/agri_go_server/internal/testutil"
)

func setupGate(t *testing.T) (*service.EntitlementGate, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	gate := service.NewEntitlementGate(repository.NewSubscriptionRepository(db), nil)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return gate, db, cleanup
}

func entitledRouter(gate Gate, accountID int64, capability model.Capability, status int) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(AccountIDKey, accountID)
		c.Next()
	})
	router.Use(Entitle(gate, capability))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(status, gin.H{})
	})
	return router
}

func serve(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func usage(t *testing.T, db *gorm.DB, accountID int64) model.Usage {
	t.Helper()
	var sub model.Subscription
	require.NoError(t, db.Where("account_id = ?", accountID).First(&sub).Error)
	return sub.Usage
}

func TestEntitle_MeteredUntilLimit(t *testing.T) {
	gate, db, cleanup := setupGate(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, account.ID, testutil.WithPlan(model.PlanInsights), testutil.WithLimits(2, 0))

	router := entitledRouter(gate, account.ID, model.CapabilityAPI, http.StatusOK)

	assert.Equal(t, http.StatusOK, serve(router).Code)
	assert.Equal(t, http.StatusOK, serve(router).Code)

	w := serve(router)
	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.CodeQuotaExceeded, resp.Code)
	assert.Equal(t, 2, usage(t, db, account.ID).APIRequests)
}

func TestEntitle_RefundOnHandlerError(t *testing.T) {
	gate, db, cleanup := setupGate(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, account.ID, testutil.WithPlan(model.PlanInsights), testutil.WithLimits(5, 5))

	router := entitledRouter(gate, account.ID, model.CapabilityExport, http.StatusConflict)
	assert.Equal(t, http.StatusConflict, serve(router).Code)
	assert.Equal(t, 0, usage(t, db, account.ID).DataExports)
}

func TestEntitle_NotEntitled(t *testing.T) {
	gate, db, cleanup := setupGate(t)
	defer cleanup()

	freeAccount := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, freeAccount.ID)
	noSub := testutil.TestAccount(t, db)
	expired := testutil.TestAccount(t, db)
	testutil.TestSubscription(t, db, expired.ID, testutil.WithPlan(model.PlanEnterprise), testutil.WithStatus(model.StatusExpired))

	tests := []struct {
		name       string
		accountID  int64
		capability model.Capability
		wantStatus int
	}{
		{"free plan has no api requests", freeAccount.ID, model.CapabilityAPI, http.StatusForbidden},
		{"free plan has no custom reports", freeAccount.ID, model.CapabilityCustom, http.StatusForbidden},
		{"free plan reads dashboard", freeAccount.ID, model.CapabilityDashboard, http.StatusOK},
		{"missing subscription behaves as free", noSub.ID, model.CapabilityDashboard, http.StatusOK},
		{"missing subscription cannot export", noSub.ID, model.CapabilityExport, http.StatusForbidden},
		{"expired enterprise", expired.ID, model.CapabilityCustom, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(entitledRouter(gate, tt.accountID, tt.capability, http.StatusOK))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, response.CodePermissionDenied, parseResponse(t, w).Code)
			}
		})
	}
}

func TestEntitle_RequiresAccount(t *testing.T) {
	gate, _, cleanup := setupGate(t)
	defer cleanup()

	router := gin.New()
	router.Use(Entitle(gate, model.CapabilityAPI))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router).Code)
}
