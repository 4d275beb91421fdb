package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestAccount 创建测试账户
func TestAccount(t *testing.T, db *gorm.DB, opts ...func(*model.Account)) *model.Account {
	t.Helper()

	account := &model.Account{
		Email:        fmt.Sprintf("test_%d_%d@example.com", time.Now().UnixNano(), nextSeq()),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
		Name:         "Test Account",
		Organization: "Test Cooperative",
		UseCase:      "research",
		IsVerified:   true,
	}

	for _, opt := range opts {
		opt(account)
	}

	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}

	return account
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.Account) {
	return func(a *model.Account) {
		a.Email = email
	}
}

// WithPasswordHash 设置密码哈希
func WithPasswordHash(hash string) func(*model.Account) {
	return func(a *model.Account) {
		a.PasswordHash = hash
	}
}

// TestSubscription 为账户创建订阅，默认免费套餐
func TestSubscription(t *testing.T, db *gorm.DB, accountID int64, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := model.NewFreeSubscription(accountID, time.Now().UTC(), 30)

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	// Create 会跳过带默认值的零值字段，这里补写
	if err := db.Model(sub).Updates(map[string]interface{}{
		"status":                 sub.Status,
		"auto_renew":             sub.AutoRenew,
		"limit_api_requests":     sub.Limits.APIRequests,
		"limit_data_exports":     sub.Limits.DataExports,
		"limit_dashboard_access": sub.Limits.DashboardAccess,
		"limit_custom_reports":   sub.Limits.CustomReports,
		"usage_api_requests":     sub.Usage.APIRequests,
		"usage_data_exports":     sub.Usage.DataExports,
	}).Error; err != nil {
		t.Fatalf("Failed to update test subscription: %v", err)
	}

	return sub
}

// WithPlan 设置套餐并带上目录中的限额
func WithPlan(plan model.Plan) func(*model.Subscription) {
	return func(s *model.Subscription) {
		def, ok := model.LookupPlan(plan)
		if !ok {
			return
		}
		s.Plan = plan
		s.Limits = def.Limits
		s.Pricing.Amount = def.PriceNGN
	}
}

// WithStatus 设置订阅状态
func WithStatus(status model.SubscriptionStatus) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// WithLimits 设置计量上限
func WithLimits(apiRequests, dataExports int) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Limits.APIRequests = apiRequests
		s.Limits.DataExports = dataExports
	}
}

// WithUsage 设置已用量
func WithUsage(apiRequests, dataExports int) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Usage.APIRequests = apiRequests
		s.Usage.DataExports = dataExports
	}
}

// WithPendingPayment 设置待确认的支付
func WithPendingPayment(method model.PaymentMethod, reference string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = model.StatusTrialing
		s.Payment = model.Payment{
			Method:    method,
			Intent:    model.IntentSubscription,
			Reference: reference,
			Status:    model.PaymentPending,
		}
	}
}

// WithPeriod 设置计费周期
func WithPeriod(start, end time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Period = model.Period{Start: start, End: end}
	}
}

// TestRecord 创建测试农业记录
func TestRecord(t *testing.T, db *gorm.DB, opts ...func(*model.AgriRecord)) *model.AgriRecord {
	t.Helper()

	planted := time.Now().UTC().AddDate(0, -1, 0)
	record := &model.AgriRecord{
		SourceID:            fmt.Sprintf("src_%d", nextSeq()),
		CooperativeID:       "coop_1",
		Region:              "north-central",
		State:               "Benue",
		LGA:                 "Makurdi",
		CropType:            "maize",
		PlantingDate:        planted,
		ExpectedHarvestDate: planted.AddDate(0, 4, 0),
		YieldMin:            2.0,
		YieldMax:            3.0,
		MarketPrice:         200,
		MarketName:          "Wurukum Market",
		QualityCompleteness: 0.9,
		QualityAccuracy:     0.8,
		QualityTimeliness:   0.7,
		QualityOverall:      0.8,
		IsAnonymized:        true,
		ProcessingDate:      time.Now().UTC(),
		ValidationStatus:    model.ValidationValidated,
	}

	for _, opt := range opts {
		opt(record)
	}

	if err := db.Create(record).Error; err != nil {
		t.Fatalf("Failed to create test record: %v", err)
	}

	return record
}

// WithRegionCrop 设置区域与作物
func WithRegionCrop(region, crop string) func(*model.AgriRecord) {
	return func(r *model.AgriRecord) {
		r.Region = region
		r.CropType = crop
	}
}

// WithPrice 设置市场价格
func WithPrice(market string, price float64) func(*model.AgriRecord) {
	return func(r *model.AgriRecord) {
		r.MarketName = market
		r.MarketPrice = price
	}
}

// WithPlanted 设置种植日期，预计收获为四个月后
func WithPlanted(at time.Time) func(*model.AgriRecord) {
	return func(r *model.AgriRecord) {
		r.PlantingDate = at
		r.ExpectedHarvestDate = at.AddDate(0, 4, 0)
	}
}

// WithRisk 追加风险因素
func WithRisk(riskType, severity string) func(*model.AgriRecord) {
	return func(r *model.AgriRecord) {
		r.RiskFactors = append(r.RiskFactors, model.RiskFactor{Type: riskType, Severity: severity})
	}
}
