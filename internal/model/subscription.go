package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	StatusTrialing  SubscriptionStatus = "trialing"
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Entitled 该状态下是否允许使用套餐能力
func (s SubscriptionStatus) Entitled() bool {
	return s == StatusActive || s == StatusPastDue
}

type PaymentMethod string

const (
	MethodPaystack     PaymentMethod = "paystack"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodUSDT         PaymentMethod = "usdt"
	MethodStripe       PaymentMethod = "stripe"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

const (
	IntentSubscription = "subscription"
	IntentOneTime      = "one_time"

	IntervalMonth = "month"
	IntervalYear  = "year"

	CurrencyNGN  = "NGN"
	CurrencyUSD  = "USD"
	CurrencyUSDT = "USDT"
)

// Pricing 订阅价格
type Pricing struct {
	Amount   decimal.Decimal `gorm:"type:decimal(14,2);default:0" json:"amount"`
	Currency string          `gorm:"size:8;default:NGN" json:"currency"`
	Interval string          `gorm:"size:10;default:month" json:"interval"`
}

// Usage 当前周期用量
type Usage struct {
	APIRequests int        `gorm:"default:0" json:"api_requests"`
	DataExports int        `gorm:"default:0" json:"data_exports"`
	LastReset   *time.Time `json:"last_reset,omitempty"`
}

// Period 计费周期
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `gorm:"index" json:"end"`
}

// Payment 最近一次支付尝试
type Payment struct {
	Method      PaymentMethod   `gorm:"size:20" json:"method,omitempty"`
	Intent      string          `gorm:"size:20;default:subscription" json:"intent,omitempty"`
	Reference   string          `gorm:"size:100;index" json:"reference,omitempty"`
	Status      PaymentStatus   `gorm:"size:20;index" json:"status,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	USDTAddress string          `gorm:"size:100" json:"usdt_address,omitempty"`
	USDTNetwork string          `gorm:"size:20" json:"usdt_network,omitempty"`
	USDTAmount  decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"usdt_amount"`
	TxHash      string          `gorm:"size:120" json:"tx_hash,omitempty"`
	Proof       string          `gorm:"size:500" json:"proof,omitempty"`
}

// Subscription 每个账户唯一的订阅记录
type Subscription struct {
	ID                int64              `gorm:"primaryKey" json:"id"`
	AccountID         int64              `gorm:"not null;uniqueIndex" json:"account_id"`
	Plan              Plan               `gorm:"size:20;not null;default:free" json:"plan"`
	Status            SubscriptionStatus `gorm:"size:20;not null;default:active;index" json:"status"`
	Pricing           Pricing            `gorm:"embedded;embeddedPrefix:price_" json:"pricing"`
	Limits            PlanLimits         `gorm:"embedded;embeddedPrefix:limit_" json:"limits"`
	Usage             Usage              `gorm:"embedded;embeddedPrefix:usage_" json:"usage"`
	Period            Period             `gorm:"embedded;embeddedPrefix:period_" json:"period"`
	Payment           Payment            `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	AutoRenew         bool               `gorm:"default:true" json:"auto_renew"`
	CancelAtPeriodEnd bool               `gorm:"default:false" json:"cancel_at_period_end"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
	SignupSource      string             `gorm:"size:50" json:"signup_source,omitempty"`
	Notes             string             `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// NewFreeSubscription 用目录中的免费套餐生成一条已激活订阅
func NewFreeSubscription(accountID int64, now time.Time, periodDays int) *Subscription {
	def := plans[PlanFree]
	return &Subscription{
		AccountID: accountID,
		Plan:      PlanFree,
		Status:    StatusActive,
		Pricing:   Pricing{Amount: decimal.Zero, Currency: CurrencyNGN, Interval: def.Interval},
		Limits:    def.Limits,
		Usage:     Usage{LastReset: &now},
		Period:    Period{Start: now, End: now.AddDate(0, 0, periodDays)},
		AutoRenew: true,
	}
}

// Remaining 计量能力的剩余次数，-1 表示不限
func (s *Subscription) Remaining(c Capability) int {
	var limit, used int
	switch c {
	case CapabilityAPI:
		limit, used = s.Limits.APIRequests, s.Usage.APIRequests
	case CapabilityExport:
		limit, used = s.Limits.DataExports, s.Usage.DataExports
	default:
		return 0
	}
	if limit == Unlimited {
		return Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}
