package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess            = 0
	CodeParamError         = 1000
	CodeAuthFailed         = 1001
	CodePermissionDenied   = 1002
	CodeResourceNotFound   = 1003
	CodeQuotaExceeded      = 1004
	CodeDuplicateAction    = 1005
	CodePlanNotFound       = 1006
	CodeSignatureInvalid   = 1007
	CodePayloadTooLarge    = 1008
	CodeServerError        = 5000
	CodeGatewayUnavailable = 5002
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:            "success",
	CodeParamError:         "invalid parameters",
	CodeAuthFailed:         "authentication required",
	CodePermissionDenied:   "access denied for current plan",
	CodeResourceNotFound:   "resource not found",
	CodeQuotaExceeded:      "usage limit reached",
	CodeDuplicateAction:    "duplicate action",
	CodePlanNotFound:       "plan not found",
	CodeSignatureInvalid:   "invalid signature",
	CodePayloadTooLarge:    "request body too large",
	CodeServerError:        "internal server error",
	CodeGatewayUnavailable: "payment gateway unavailable",
}

// 错误码对应的 HTTP 状态
var codeStatus = map[int]int{
	CodeParamError:         http.StatusBadRequest,
	CodeAuthFailed:         http.StatusUnauthorized,
	CodePermissionDenied:   http.StatusForbidden,
	CodeResourceNotFound:   http.StatusNotFound,
	CodeQuotaExceeded:      http.StatusTooManyRequests,
	CodeDuplicateAction:    http.StatusConflict,
	CodePlanNotFound:       http.StatusBadRequest,
	CodeSignatureInvalid:   http.StatusBadRequest,
	CodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
	CodeServerError:        http.StatusInternalServerError,
	CodeGatewayUnavailable: http.StatusBadGateway,
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData 分页数据结构
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Created 创建成功
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: PageData{
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			Items:    items,
		},
	})
}

// StatusFor 错误码对应的 HTTP 状态，未知错误码按 500 处理
func StatusFor(code int) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(StatusFor(code), Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorWithData 附带数据的错误响应（如配额详情）
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(StatusFor(code), Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 当前套餐无权访问
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// QuotaError 配额不足
func QuotaError(c *gin.Context, message string) {
	Error(c, CodeQuotaExceeded, message)
}

// DuplicateError 重复操作
func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

// PlanNotFoundError 套餐不存在
func PlanNotFoundError(c *gin.Context, message string) {
	Error(c, CodePlanNotFound, message)
}

// SignatureError 回调签名校验失败
func SignatureError(c *gin.Context, message string) {
	Error(c, CodeSignatureInvalid, message)
}

// PayloadTooLargeError 请求体超出上限
func PayloadTooLargeError(c *gin.Context, message string) {
	Error(c, CodePayloadTooLarge, message)
}

// GatewayError 支付网关不可用
func GatewayError(c *gin.Context, message string) {
	Error(c, CodeGatewayUnavailable, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}
