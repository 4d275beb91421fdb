package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/api/middleware"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

// respondError 把服务层的哨兵错误映射为统一响应
func respondError(c *gin.Context, err error) {
	var validationErr *service.RecordValidationError

	switch {
	case errors.As(err, &validationErr):
		response.ErrorWithData(c, response.CodeParamError, "Validation failed", validationErr.Details)

	case errors.Is(err, service.ErrInvalidCredentials):
		response.AuthError(c, err.Error())

	case errors.Is(err, service.ErrNotEntitled),
		errors.Is(err, service.ErrReportExpired),
		errors.Is(err, service.ErrReportNotReady):
		response.PermissionError(c, err.Error())

	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, err.Error())

	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrSubscriptionNotFound),
		errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrReferenceNotFound):
		response.NotFoundError(c, err.Error())

	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrMonthlyReportExists):
		response.DuplicateError(c, err.Error())

	case errors.Is(err, service.ErrPlanNotFound):
		response.PlanNotFoundError(c, err.Error())

	case errors.Is(err, service.ErrSignatureInvalid):
		response.SignatureError(c, err.Error())

	case errors.Is(err, service.ErrGatewayUnavailable):
		log.Printf("[handler] %s %s: %v", c.Request.Method, c.FullPath(), err)
		response.GatewayError(c, "")

	case errors.Is(err, service.ErrInvalidVerifyCode),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidPayload),
		errors.Is(err, service.ErrPaymentNotPending),
		errors.Is(err, service.ErrSubscriptionNotActive),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, service.ErrUnknownQuery):
		response.ParamError(c, err.Error())

	case errors.Is(err, service.ErrContactUnavailable):
		log.Printf("[handler] contact: %v", err)
		response.ServerError(c, service.ErrContactUnavailable.Error())

	default:
		log.Printf("[handler] %s %s: %v", c.Request.Method, c.FullPath(), err)
		response.ServerError(c, "")
	}
}

// accountID 读取认证中间件写入的账户 ID，缺失时直接返回 401
func accountID(c *gin.Context) (int64, bool) {
	id, ok := middleware.GetAccountID(c)
	if !ok {
		response.AuthError(c, "")
	}
	return id, ok
}
