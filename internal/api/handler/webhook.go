package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

const maxWebhookBody = 65536

// readWebhookBody 读取原始请求体，超过上限时回 413 而不是截断后让签名校验失败
func readWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLargeError(c, "")
			return nil, false
		}
		response.ParamError(c, "failed to read body")
		return nil, false
	}
	return body, true
}

type WebhookHandler struct {
	paymentService *service.PaymentService
}

func NewWebhookHandler(paymentService *service.PaymentService) *WebhookHandler {
	return &WebhookHandler{paymentService: paymentService}
}

// Paystack 回调，签名基于原始请求体
// POST /api/v1/payment/webhook/paystack
func (h *WebhookHandler) Paystack(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}

	signature := c.GetHeader("X-Paystack-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Signature")
	}

	resp, err := h.paymentService.HandlePaystackWebhook(c.Request.Context(), body, signature)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// Stripe 回调
// POST /api/v1/payment/webhook/stripe
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}

	resp, err := h.paymentService.HandleStripeWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}
