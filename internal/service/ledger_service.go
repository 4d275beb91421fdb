package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/repository"
)

var (
	ErrPlanNotFound          = errors.New("plan not found")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrSubscriptionNotActive = errors.New("subscription is not active")
	ErrReferenceNotFound     = errors.New("payment reference not found")
)

// PaymentResult 外部支付结果
type PaymentResult struct {
	Outcome string // model.OutcomeSuccess / model.OutcomeFailure
	Proof   string
	TxHash  string
}

// RolloverStats 周期滚动统计
type RolloverStats struct {
	Renewed   int `json:"renewed"`
	PastDue   int `json:"past_due"`
	Expired   int `json:"expired"`
	Cancelled int `json:"cancelled"`
}

const rolloverBatch = 500

type LedgerService struct {
	subRepo *repository.SubscriptionRepository
	cfg     *config.Config
	batch   int
}

func NewLedgerService(subRepo *repository.SubscriptionRepository, cfg *config.Config) *LedgerService {
	return &LedgerService{
		subRepo: subRepo,
		cfg:     cfg,
		batch:   rolloverBatch,
	}
}

func (s *LedgerService) periodDays() int {
	if s.cfg.Subscription.PeriodDays > 0 {
		return s.cfg.Subscription.PeriodDays
	}
	return 30
}

// Create 按套餐默认限额创建订阅，免费套餐直接激活
func (s *LedgerService) Create(accountID int64, plan model.Plan) (*model.Subscription, error) {
	def, ok := model.LookupPlan(plan)
	if !ok {
		return nil, ErrPlanNotFound
	}

	now := time.Now().UTC()
	sub := model.NewFreeSubscription(accountID, now, s.periodDays())
	sub.Plan = def.ID
	sub.Limits = def.Limits
	sub.Pricing = model.Pricing{Amount: def.PriceNGN, Currency: model.CurrencyNGN, Interval: def.Interval}
	sub.SignupSource = "registration"
	if plan != model.PlanFree {
		sub.Status = model.StatusTrialing
	}

	if err := s.subRepo.Create(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// FindActiveByAccount 查询账户订阅，不存在时返回 nil
func (s *LedgerService) FindActiveByAccount(accountID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByAccountID(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// Enroll 以账户为键覆盖写入新的套餐选择，开启新周期并清零用量
func (s *LedgerService) Enroll(accountID int64, def model.PlanDefinition, pricing model.Pricing, payment *model.Payment) (*model.Subscription, error) {
	existing, err := s.FindActiveByAccount(accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Payment.Status == model.PaymentPending && existing.Payment.Reference != "" {
		log.Printf("[ledger] account %d: pending reference %s superseded", accountID, existing.Payment.Reference)
	}

	now := time.Now().UTC()
	sub := model.NewFreeSubscription(accountID, now, s.periodDays())
	sub.Plan = def.ID
	sub.Limits = def.Limits
	sub.Pricing = pricing
	if payment != nil {
		sub.Status = model.StatusTrialing
		// 宽限期内结清同一套餐时保留 past_due，待支付超时后由 ExpireStalePending 收回
		if existing != nil && existing.Status == model.StatusPastDue && existing.Plan == def.ID {
			sub.Status = model.StatusPastDue
		}
		sub.Payment = *payment
	}
	if existing != nil {
		sub.SignupSource = existing.SignupSource
	}

	if err := s.subRepo.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplyPayment 按 reference 应用支付结果，仅 pending 状态会被更新
func (s *LedgerService) ApplyPayment(reference string, result PaymentResult) (bool, error) {
	if reference == "" {
		return false, ErrReferenceNotFound
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{}
	switch result.Outcome {
	case model.OutcomeSuccess:
		fields["status"] = model.StatusActive
		fields["payment_status"] = model.PaymentConfirmed
		fields["payment_confirmed_at"] = now
	case model.OutcomeFailure:
		fields["status"] = model.StatusExpired
		fields["payment_status"] = model.PaymentFailed
	default:
		return false, fmt.Errorf("unknown payment outcome %q", result.Outcome)
	}
	if result.Proof != "" {
		fields["payment_proof"] = result.Proof
	}
	if result.TxHash != "" {
		fields["payment_tx_hash"] = result.TxHash
	}

	rows, err := s.subRepo.ApplyPendingPayment(reference, fields)
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	// 未更新：reference 不存在或已处理过
	if _, err := s.subRepo.GetByReference(reference); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrReferenceNotFound
		}
		return false, err
	}
	return false, nil
}

// FindByReference 按支付 reference 查询订阅
func (s *LedgerService) FindByReference(reference string) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByReference(reference)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrReferenceNotFound
		}
		return nil, err
	}
	return sub, nil
}

// AttachProof 记录用户提交的转账凭证，不改变支付状态
func (s *LedgerService) AttachProof(subscriptionID int64, proof, txHash string) error {
	fields := map[string]interface{}{}
	if proof != "" {
		fields["payment_proof"] = proof
	}
	if txHash != "" {
		fields["payment_tx_hash"] = txHash
	}
	if len(fields) == 0 {
		return nil
	}
	return s.subRepo.UpdateFields(subscriptionID, fields)
}

// ResetUsage 用量清零，可重复调用
func (s *LedgerService) ResetUsage(subscriptionID int64) error {
	if _, err := s.subRepo.GetByID(subscriptionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	}
	return s.subRepo.ResetUsage(subscriptionID, time.Now().UTC())
}

// ResetUsageByAccount 按账户清零用量
func (s *LedgerService) ResetUsageByAccount(accountID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByAccountID(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if err := s.subRepo.ResetUsage(sub.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.subRepo.GetByID(sub.ID)
}

// ResetAllUsage 所有订阅用量清零
func (s *LedgerService) ResetAllUsage() (int64, error) {
	return s.subRepo.ResetAllUsage(time.Now().UTC())
}

// RollOverPeriods 分批处理计费周期已结束的订阅，直到没有剩余。
// 处理过的行都会离开查询条件；某一批没有任何进展时停止。
func (s *LedgerService) RollOverPeriods(now time.Time) (*RolloverStats, error) {
	stats := &RolloverStats{}

	for {
		subs, err := s.subRepo.ListPeriodEnded(now, s.batch)
		if err != nil {
			return stats, err
		}

		progressed := 0
		for i := range subs {
			sub := &subs[i]
			fields, outcome := s.rollover(sub, now)
			n, err := s.subRepo.RollOver(sub, now, fields)
			if err != nil {
				log.Printf("[ledger] rollover subscription %d failed: %v", sub.ID, err)
				continue
			}
			progressed++
			if n == 0 {
				log.Printf("[ledger] subscription %d changed since listed, rollover skipped", sub.ID)
				continue
			}
			switch outcome {
			case model.StatusActive:
				stats.Renewed++
			case model.StatusPastDue:
				stats.PastDue++
			case model.StatusExpired:
				stats.Expired++
			case model.StatusCancelled:
				stats.Cancelled++
			}
		}

		if len(subs) < s.batch || progressed == 0 {
			return stats, nil
		}
	}
}

// rollover 计算单条订阅在周期结束时的状态变化
func (s *LedgerService) rollover(sub *model.Subscription, now time.Time) (map[string]interface{}, model.SubscriptionStatus) {
	renew := map[string]interface{}{
		"usage_api_requests": 0,
		"usage_data_exports": 0,
		"usage_last_reset":   now,
		"period_start":       now,
	}

	switch {
	case sub.CancelAtPeriodEnd:
		return map[string]interface{}{
			"status":       model.StatusCancelled,
			"auto_renew":   false,
			"cancelled_at": now,
		}, model.StatusCancelled

	case sub.Plan == model.PlanFree:
		renew["status"] = model.StatusActive
		renew["period_end"] = now.AddDate(0, 0, s.periodDays())
		return renew, model.StatusActive

	case sub.AutoRenew && sub.Status == model.StatusActive:
		grace := s.cfg.Subscription.GraceDays
		if grace <= 0 {
			grace = 7
		}
		renew["status"] = model.StatusPastDue
		renew["period_end"] = now.AddDate(0, 0, grace)
		return renew, model.StatusPastDue

	default:
		return map[string]interface{}{"status": model.StatusExpired}, model.StatusExpired
	}
}

// ExpireStalePending 超时未确认的支付分批标记为失败
func (s *LedgerService) ExpireStalePending(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	expired := 0
	for {
		subs, err := s.subRepo.ListStalePending(cutoff, s.batch)
		if err != nil {
			return expired, err
		}

		progressed := 0
		for _, sub := range subs {
			applied, err := s.ApplyPayment(sub.Payment.Reference, PaymentResult{Outcome: model.OutcomeFailure})
			if err != nil {
				log.Printf("[ledger] expire pending %s failed: %v", sub.Payment.Reference, err)
				continue
			}
			progressed++
			if applied {
				expired++
			}
		}

		if len(subs) < s.batch || progressed == 0 {
			return expired, nil
		}
	}
}

// Cancel 取消订阅，atPeriodEnd 为 true 时到期后再取消
func (s *LedgerService) Cancel(accountID int64, atPeriodEnd bool) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByAccountID(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	switch sub.Status {
	case model.StatusActive, model.StatusPastDue, model.StatusTrialing:
	default:
		return nil, ErrSubscriptionNotActive
	}

	var fields map[string]interface{}
	if atPeriodEnd {
		fields = map[string]interface{}{
			"cancel_at_period_end": true,
			"auto_renew":           false,
		}
	} else {
		fields = map[string]interface{}{
			"status":       model.StatusCancelled,
			"auto_renew":   false,
			"cancelled_at": time.Now().UTC(),
		}
	}

	if err := s.subRepo.UpdateFields(sub.ID, fields); err != nil {
		return nil, err
	}
	return s.subRepo.GetByID(sub.ID)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
