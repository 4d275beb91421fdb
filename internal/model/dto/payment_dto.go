package dto

import (
	"github.com/shopspring/decimal"

	"github.com/agripulse/agri_go_server/internal/model"
)

// CheckoutRequest 选择套餐与支付方式
type CheckoutRequest struct {
	Plan          string `json:"plan" binding:"required"`
	PaymentMethod string `json:"payment_method"`
}

// BankDetails 银行转账信息
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	Instructions  string `json:"instructions"`
}

// USDTDetails 加密货币付款信息
type USDTDetails struct {
	WalletAddress string          `json:"wallet_address"`
	Network       string          `json:"network"`
	Amount        decimal.Decimal `json:"amount"`
	Instructions  string          `json:"instructions"`
}

// CheckoutResponse 支付下单结果，按支付方式返回不同字段
type CheckoutResponse struct {
	Plan             string          `json:"plan"`
	Status           string          `json:"status"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	Reference        string          `json:"reference,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	BankDetails      *BankDetails    `json:"bank_details,omitempty"`
	USDT             *USDTDetails    `json:"usdt,omitempty"`
}

// CancelRequest 取消订阅
type CancelRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// ConfirmPaymentRequest 人工确认到账
type ConfirmPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
	Proof     string `json:"proof" binding:"omitempty,max=500"`
	TxHash    string `json:"tx_hash" binding:"omitempty,max=120"`
}

// FailPaymentRequest 人工标记支付失败
type FailPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
	Reason    string `json:"reason" binding:"omitempty,max=500"`
}

// PaymentActionResponse 支付事件处理结果
type PaymentActionResponse struct {
	Reference string `json:"reference"`
	Applied   bool   `json:"applied"`
	Status    string `json:"status,omitempty"`
}

// MeterInfo 计量能力用量
type MeterInfo struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// SubscriptionInfo 订阅信息
type SubscriptionInfo struct {
	Plan              string           `json:"plan"`
	Status            string           `json:"status"`
	Limits            model.PlanLimits `json:"limits"`
	APIRequests       MeterInfo        `json:"api_requests"`
	DataExports       MeterInfo        `json:"data_exports"`
	PeriodStart       string           `json:"period_start,omitempty"`
	PeriodEnd         string           `json:"period_end,omitempty"`
	PaymentMethod     string           `json:"payment_method,omitempty"`
	PaymentStatus     string           `json:"payment_status,omitempty"`
	PaymentReference  string           `json:"payment_reference,omitempty"`
	AutoRenew         bool             `json:"auto_renew"`
	CancelAtPeriodEnd bool             `json:"cancel_at_period_end"`
}
