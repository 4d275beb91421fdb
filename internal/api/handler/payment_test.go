package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agripulse/agri_go_server/internal/api/middleware"
	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/paystack"
	"github.com/agripulse/agri_go_server/internal/pkg/pubsub"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/repository"
	"github.com/agripulse/agri_go_server/internal/service"
	"github.com/agripulse/agri_go_server/internal/testutil"
)

type paymentHandlers struct {
	payment *PaymentHandler
	webhook *WebhookHandler
	admin   *AdminHandler
}

// setupPaymentHandlers 不接入 Paystack/Stripe 网关，只覆盖免费、转账和回调路径
func setupPaymentHandlers(t *testing.T) (*paymentHandlers, *testContext, func()) {
	t.Helper()

	ctx, cleanup := newTestContext(t)
	ledger := ctx.ledger()
	svc := service.NewPaymentService(
		ledger,
		repository.NewAccountRepository(ctx.DB),
		repository.NewPaymentEventRepository(ctx.DB),
		nil,
		nil,
		pubsub.NewPublisher(ctx.Redis),
		ctx.Queue,
		nil,
		ctx.Cfg,
	)

	return &paymentHandlers{
		payment: NewPaymentHandler(svc),
		webhook: NewWebhookHandler(svc),
		admin:   NewAdminHandler(svc, ledger),
	}, ctx, cleanup
}

func pendingBankAccount(t *testing.T, ctx *testContext, reference string) *model.Account {
	t.Helper()
	account := testutil.TestAccount(t, ctx.DB)
	testutil.TestSubscription(t, ctx.DB, account.ID,
		testutil.WithPlan(model.PlanInsights),
		testutil.WithPendingPayment(model.MethodBankTransfer, reference),
	)
	return account
}

func TestPaymentHandler_Plans(t *testing.T) {
	h, _, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	router := gin.New()
	router.GET("/plans", h.payment.Plans)

	w := performRequest(router, "GET", "/plans", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Plans []model.PlanDefinition `json:"plans"`
	}
	decodeData(t, parseResponse(t, w), &data)
	assert.Len(t, data.Plans, len(model.Catalog()))
}

func TestPaymentHandler_Checkout(t *testing.T) {
	h, ctx, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	account := testutil.TestAccount(t, ctx.DB)

	router := gin.New()
	router.POST("/checkout", mockAuth(account.ID), h.payment.Checkout)

	tests := []struct {
		name       string
		body       dto.CheckoutRequest
		wantStatus int
		wantCode   int
	}{
		{"unknown plan", dto.CheckoutRequest{Plan: "platinum"}, http.StatusBadRequest, response.CodePlanNotFound},
		{"bad method", dto.CheckoutRequest{Plan: "insights", PaymentMethod: "cash"}, http.StatusBadRequest, response.CodeParamError},
		{"paystack not configured", dto.CheckoutRequest{Plan: "insights", PaymentMethod: "paystack"}, http.StatusBadGateway, response.CodeGatewayUnavailable},
		{"free", dto.CheckoutRequest{Plan: "free"}, http.StatusOK, response.CodeSuccess},
		{"bank transfer", dto.CheckoutRequest{Plan: "insights", PaymentMethod: "bank_transfer"}, http.StatusOK, response.CodeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, "POST", "/checkout", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, parseResponse(t, w).Code)
		})
	}

	// 转账下单后返回银行信息和 reference
	w := performRequest(router, "POST", "/checkout", dto.CheckoutRequest{Plan: "insights", PaymentMethod: "bank_transfer"})
	var resp dto.CheckoutResponse
	decodeData(t, parseResponse(t, w), &resp)
	assert.Equal(t, "trialing", resp.Status)
	require.NotNil(t, resp.BankDetails)
	assert.Contains(t, resp.BankDetails.Instructions, resp.Reference)
}

func TestPaymentHandler_Status_DefaultsToFree(t *testing.T) {
	h, ctx, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	account := testutil.TestAccount(t, ctx.DB)

	router := gin.New()
	router.GET("/status", mockAuth(account.ID), h.payment.Status)

	w := performRequest(router, "GET", "/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var info dto.SubscriptionInfo
	decodeData(t, parseResponse(t, w), &info)
	assert.Equal(t, "free", info.Plan)
}

func TestPaymentHandler_SubmitProof(t *testing.T) {
	h, ctx, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	account := pendingBankAccount(t, ctx, "AGRI-PROOF-1")

	router := gin.New()
	router.POST("/proof", mockAuth(account.ID), h.payment.SubmitProof)

	w := performRequest(router, "POST", "/proof", dto.ConfirmPaymentRequest{Reference: "AGRI-PROOF-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(router, "POST", "/proof", dto.ConfirmPaymentRequest{Reference: "AGRI-OTHER", Proof: "receipt.png"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(router, "POST", "/proof", dto.ConfirmPaymentRequest{Reference: "AGRI-PROOF-1", Proof: "receipt.png"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentHandler_Cancel(t *testing.T) {
	h, ctx, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	account := testutil.TestAccount(t, ctx.DB)
	testutil.TestSubscription(t, ctx.DB, account.ID, testutil.WithPlan(model.PlanInsights))

	router := gin.New()
	router.POST("/cancel", mockAuth(account.ID), h.payment.Cancel)

	w := performRequest(router, "POST", "/cancel", dto.CancelRequest{AtPeriodEnd: true})
	assert.Equal(t, http.StatusOK, w.Code)

	var info dto.SubscriptionInfo
	decodeData(t, parseResponse(t, w), &info)
	assert.True(t, info.CancelAtPeriodEnd)
	assert.False(t, info.AutoRenew)
}

func paystackRequest(t *testing.T, router http.Handler, body []byte, header, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set(header, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Paystack(t *testing.T) {
	h, ctx, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	account := pendingBankAccount(t, ctx, "PSK-HOOK-1")

	router := gin.New()
	router.POST("/webhook/paystack", h.webhook.Paystack)

	body, err := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": "PSK-HOOK-1", "status": "success"},
	})
	require.NoError(t, err)
	sig := paystack.Sign(body, "sk_test_paystack")

	t.Run("bad signature leaves ledger untouched", func(t *testing.T) {
		w := paystackRequest(t, router, body, "X-Paystack-Signature", "deadbeef")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.CodeSignatureInvalid, parseResponse(t, w).Code)

		var sub model.Subscription
		require.NoError(t, ctx.DB.Where("account_id = ?", account.ID).First(&sub).Error)
		assert.Equal(t, model.PaymentPending, sub.Payment.Status)
	})

	t.Run("missing signature", func(t *testing.T) {
		w := paystackRequest(t, router, body, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("fallback header activates", func(t *testing.T) {
		w := paystackRequest(t, router, body, "X-Signature", sig)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.PaymentActionResponse
		decodeData(t, parseResponse(t, w), &resp)
		assert.True(t, resp.Applied)
		assert.Equal(t, "active", resp.Status)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		w := paystackRequest(t, router, body, "X-Paystack-Signature", sig)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.PaymentActionResponse
		decodeData(t, parseResponse(t, w), &resp)
		assert.False(t, resp.Applied)
	})

	t.Run("unknown reference acknowledged", func(t *testing.T) {
		other, _ := json.Marshal(map[string]interface{}{
			"event": "charge.success",
			"data":  map[string]interface{}{"reference": "PSK-NOPE"},
		})
		w := paystackRequest(t, router, other, "X-Paystack-Signature", paystack.Sign(other, "sk_test_paystack"))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestWebhookHandler_OversizedBody(t *testing.T) {
	h, _, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	router := gin.New()
	router.POST("/webhook/paystack", h.webhook.Paystack)
	router.POST("/webhook/stripe", h.webhook.Stripe)

	body := bytes.Repeat([]byte("a"), maxWebhookBody+1)

	w := paystackRequest(t, router, body, "X-Paystack-Signature", paystack.Sign(body, "sk_test_paystack"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, response.CodePayloadTooLarge, parseResponse(t, w).Code)

	req := httptest.NewRequest("POST", "/webhook/stripe", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestWebhookHandler_Stripe_NotConfigured(t *testing.T) {
	h, _, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	router := gin.New()
	router.POST("/webhook/stripe", h.webhook.Stripe)

	w := performRequest(router, "POST", "/webhook/stripe", map[string]string{"type": "checkout.session.completed"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminHandler_ConfirmAndFail(t *testing.T) {
	h, ctx, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	pendingBankAccount(t, ctx, "AGRI-ADMIN-1")
	pendingBankAccount(t, ctx, "AGRI-ADMIN-2")

	router := gin.New()
	admin := router.Group("/admin", middleware.AdminKey("admin-key"))
	admin.POST("/payments/confirm", h.admin.ConfirmPayment)
	admin.POST("/payments/fail", h.admin.FailPayment)

	t.Run("requires admin key", func(t *testing.T) {
		w := performRequest(router, "POST", "/admin/payments/confirm", dto.ConfirmPaymentRequest{Reference: "AGRI-ADMIN-1"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	do := func(path string, body interface{}) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.AdminKeyHeader, "admin-key")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("confirm", func(t *testing.T) {
		w := do("/admin/payments/confirm", dto.ConfirmPaymentRequest{Reference: "AGRI-ADMIN-1", TxHash: "0xabc"})
		assert.Equal(t, http.StatusOK, w.Code)
		resp := parseResponse(t, w)
		assert.Equal(t, "Payment confirmed", resp.Message)

		w = do("/admin/payments/confirm", dto.ConfirmPaymentRequest{Reference: "AGRI-ADMIN-1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Payment already processed", parseResponse(t, w).Message)
	})

	t.Run("fail", func(t *testing.T) {
		w := do("/admin/payments/fail", dto.FailPaymentRequest{Reference: "AGRI-ADMIN-2", Reason: "no funds"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown reference", func(t *testing.T) {
		w := do("/admin/payments/confirm", dto.ConfirmPaymentRequest{Reference: "AGRI-MISSING"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAdminHandler_ResetUsage(t *testing.T) {
	h, ctx, cleanup := setupPaymentHandlers(t)
	defer cleanup()

	account := testutil.TestAccount(t, ctx.DB)
	testutil.TestSubscription(t, ctx.DB, account.ID,
		testutil.WithPlan(model.PlanInsights),
		testutil.WithUsage(40, 3),
	)

	router := gin.New()
	router.POST("/admin/subscriptions/:account_id/reset-usage", h.admin.ResetUsage)

	w := performRequest(router, "POST", "/admin/subscriptions/abc/reset-usage", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(router, "POST", fmt.Sprintf("/admin/subscriptions/%d/reset-usage", account.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var info dto.SubscriptionInfo
	decodeData(t, parseResponse(t, w), &info)
	assert.Equal(t, 0, info.APIRequests.Used)
	assert.Equal(t, 0, info.DataExports.Used)
}
