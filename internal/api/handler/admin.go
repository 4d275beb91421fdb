package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

type AdminHandler struct {
	paymentService *service.PaymentService
	ledger         *service.LedgerService
}

func NewAdminHandler(paymentService *service.PaymentService, ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{
		paymentService: paymentService,
		ledger:         ledger,
	}
}

// ConfirmPayment 确认银行转账/USDT 到账
// POST /api/v1/admin/payments/confirm
func (h *AdminHandler) ConfirmPayment(c *gin.Context) {
	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.ConfirmManual(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Payment confirmed"
	if !resp.Applied {
		message = "Payment already processed"
	}
	response.SuccessWithMessage(c, message, resp)
}

// FailPayment 标记支付失败
// POST /api/v1/admin/payments/fail
func (h *AdminHandler) FailPayment(c *gin.Context) {
	var req dto.FailPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.FailManual(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// ResetUsage 清零账户用量
// POST /api/v1/admin/subscriptions/:account_id/reset-usage
func (h *AdminHandler) ResetUsage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("account_id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid account id")
		return
	}

	sub, err := h.ledger.ResetUsageByAccount(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Usage reset", service.BuildSubscriptionInfo(sub))
}
