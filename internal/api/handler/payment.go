package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// Plans 套餐目录
// GET /api/v1/payment/plans
func (h *PaymentHandler) Plans(c *gin.Context) {
	response.Success(c, gin.H{"plans": h.paymentService.Plans()})
}

// Checkout 选择套餐与支付方式
// POST /api/v1/payment/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.Checkout(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// Status 当前订阅状态
// GET /api/v1/payment/status
func (h *PaymentHandler) Status(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	info, err := h.paymentService.Status(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, info)
}

// Cancel 取消订阅
// POST /api/v1/payment/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	info, err := h.paymentService.Cancel(c.Request.Context(), id, req.AtPeriodEnd)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Subscription cancelled", info)
}

// SubmitProof 提交银行转账或 USDT 凭证
// POST /api/v1/payment/proof
func (h *PaymentHandler) SubmitProof(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if req.Proof == "" && req.TxHash == "" {
		response.ParamError(c, "proof or tx_hash is required")
		return
	}

	if err := h.paymentService.SubmitProof(id, &req); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Payment proof received. We will confirm your payment shortly.", gin.H{"reference": req.Reference})
}
