package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agripulse/agri_go_server/internal/model"
)

// entitledStatuses 允许消耗配额的订阅状态
var entitledStatuses = []string{string(model.StatusActive), string(model.StatusPastDue)}

// upsertColumns 按账户覆盖写入时更新的列
var upsertColumns = []string{
	"plan",
	"status",
	"price_amount",
	"price_currency",
	"price_interval",
	"limit_api_requests",
	"limit_data_exports",
	"limit_dashboard_access",
	"limit_custom_reports",
	"limit_support_level",
	"usage_api_requests",
	"usage_data_exports",
	"usage_last_reset",
	"period_start",
	"period_end",
	"payment_method",
	"payment_intent",
	"payment_reference",
	"payment_status",
	"payment_confirmed_at",
	"payment_usdt_address",
	"payment_usdt_network",
	"payment_usdt_amount",
	"payment_tx_hash",
	"payment_proof",
	"auto_renew",
	"cancel_at_period_end",
	"cancelled_at",
	"signup_source",
	"updated_at",
}

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(sub *model.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByAccountID(accountID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("account_id = ?", accountID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByReference(reference string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("payment_reference = ?", reference).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Upsert 以 account_id 为自然键写入，已存在则整体覆盖
func (r *SubscriptionRepository) Upsert(sub *model.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(sub).Error; err != nil {
		return err
	}

	var stored model.Subscription
	if err := r.db.Where("account_id = ?", sub.AccountID).First(&stored).Error; err != nil {
		return err
	}
	*sub = stored
	return nil
}

// UpdateFields 按 ID 更新部分字段
func (r *SubscriptionRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Subscription{}).Where("id = ?", id).Updates(fields).Error
}

// ApplyPendingPayment 仅当该 reference 仍处于 pending 时更新，返回受影响行数
func (r *SubscriptionRepository) ApplyPendingPayment(reference string, fields map[string]interface{}) (int64, error) {
	tx := r.db.Model(&model.Subscription{}).
		Where("payment_reference = ? AND payment_status = ?", reference, model.PaymentPending).
		Updates(fields)
	return tx.RowsAffected, tx.Error
}

// RollOver 仅当行仍与快照一致（状态、套餐、支付引用未变且周期仍已结束）时写入，返回受影响行数
func (r *SubscriptionRepository) RollOver(snapshot *model.Subscription, now time.Time, fields map[string]interface{}) (int64, error) {
	tx := r.db.Model(&model.Subscription{}).
		Where("id = ? AND status = ? AND plan = ?", snapshot.ID, snapshot.Status, snapshot.Plan).
		Where("COALESCE(payment_reference, '') = ? AND cancel_at_period_end = ?", snapshot.Payment.Reference, snapshot.CancelAtPeriodEnd).
		Where("period_end <= ?", now).
		Updates(fields)
	return tx.RowsAffected, tx.Error
}

// meterColumns 计量能力对应的用量列与限额列
func meterColumns(c model.Capability) (usageCol, limitCol string, err error) {
	switch c {
	case model.CapabilityAPI:
		return "usage_api_requests", "limit_api_requests", nil
	case model.CapabilityExport:
		return "usage_data_exports", "limit_data_exports", nil
	default:
		return "", "", fmt.Errorf("capability %q is not metered", c)
	}
}

// IncrementUsage 原子地检查并递增用量，超限或状态不允许时不更新（返回 0 行）
func (r *SubscriptionRepository) IncrementUsage(accountID int64, c model.Capability) (int64, error) {
	usageCol, limitCol, err := meterColumns(c)
	if err != nil {
		return 0, err
	}

	tx := r.db.Model(&model.Subscription{}).
		Where("account_id = ? AND status IN ?", accountID, entitledStatuses).
		Where(fmt.Sprintf("(%s = ? OR %s < %s)", limitCol, usageCol, limitCol), model.Unlimited).
		UpdateColumn(usageCol, gorm.Expr(usageCol+" + 1"))
	return tx.RowsAffected, tx.Error
}

// DecrementUsage 归还一次用量（下游失败时回滚计数）
func (r *SubscriptionRepository) DecrementUsage(accountID int64, c model.Capability) error {
	usageCol, _, err := meterColumns(c)
	if err != nil {
		return err
	}
	return r.db.Model(&model.Subscription{}).
		Where("account_id = ? AND "+usageCol+" > 0", accountID).
		UpdateColumn(usageCol, gorm.Expr(usageCol+" - 1")).Error
}

// ResetUsage 用量清零
func (r *SubscriptionRepository) ResetUsage(id int64, at time.Time) error {
	return r.db.Model(&model.Subscription{}).Where("id = ?", id).Updates(map[string]interface{}{
		"usage_api_requests": 0,
		"usage_data_exports": 0,
		"usage_last_reset":   at,
	}).Error
}

// ResetAllUsage 所有订阅用量清零
func (r *SubscriptionRepository) ResetAllUsage(at time.Time) (int64, error) {
	tx := r.db.Model(&model.Subscription{}).Where("1 = 1").Updates(map[string]interface{}{
		"usage_api_requests": 0,
		"usage_data_exports": 0,
		"usage_last_reset":   at,
	})
	return tx.RowsAffected, tx.Error
}

// ListPeriodEnded 周期已结束且仍处于可续期状态的订阅
func (r *SubscriptionRepository) ListPeriodEnded(now time.Time, limit int) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.Where("period_end <= ? AND status IN ?", now, entitledStatuses).
		Order("period_end ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// ListStalePending 超时未确认的待支付订阅
func (r *SubscriptionRepository) ListStalePending(cutoff time.Time, limit int) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.Where("payment_status = ? AND updated_at < ?", model.PaymentPending, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// CountByPlan 各套餐订阅数量
func (r *SubscriptionRepository) CountByPlan() (map[string]int64, error) {
	var rows []struct {
		Plan  string
		Total int64
	}
	err := r.db.Model(&model.Subscription{}).
		Select("plan, COUNT(*) AS total").
		Group("plan").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Plan] = row.Total
	}
	return counts, nil
}
