package service

import (
	"errors"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/pkg/metrics"
	"github.com/agripulse/agri_go_server/internal/repository"
)

var (
	ErrNotEntitled   = errors.New("current plan does not include this capability")
	ErrQuotaExceeded = errors.New("usage limit reached for current period")
)

// CanUse 判断订阅是否允许使用某项能力，nil 订阅按激活的免费套餐处理
func CanUse(sub *model.Subscription, c model.Capability) bool {
	if sub == nil {
		sub = freeTemplate()
	}
	if !sub.Status.Entitled() {
		return false
	}

	switch c {
	case model.CapabilityAPI, model.CapabilityExport:
		return sub.Remaining(c) != 0
	case model.CapabilityDashboard:
		return sub.Limits.DashboardAccess != model.DashboardNone
	case model.CapabilityCustom:
		return sub.Limits.CustomReports
	default:
		return false
	}
}

// freeTemplate 无订阅记录时使用的默认订阅
func freeTemplate() *model.Subscription {
	def, _ := model.LookupPlan(model.PlanFree)
	return &model.Subscription{
		Plan:   model.PlanFree,
		Status: model.StatusActive,
		Limits: def.Limits,
	}
}

// EntitlementGate 套餐能力校验与用量计量
type EntitlementGate struct {
	subRepo *repository.SubscriptionRepository
	metrics *metrics.Metrics
}

func NewEntitlementGate(subRepo *repository.SubscriptionRepository, m *metrics.Metrics) *EntitlementGate {
	return &EntitlementGate{
		subRepo: subRepo,
		metrics: m,
	}
}

// Snapshot 当前订阅，不存在时返回免费模板
func (g *EntitlementGate) Snapshot(accountID int64) (*model.Subscription, error) {
	sub, err := g.load(accountID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = freeTemplate()
		sub.AccountID = accountID
	}
	return sub, nil
}

func (g *EntitlementGate) load(accountID int64) (*model.Subscription, error) {
	sub, err := g.subRepo.GetByAccountID(accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// RecordUsage 原子地检查并计入一次用量
func (g *EntitlementGate) RecordUsage(accountID int64, c model.Capability) error {
	if !c.Metered() {
		return g.check(accountID, c)
	}

	rows, err := g.subRepo.IncrementUsage(accountID, c)
	if err != nil {
		return err
	}
	if rows > 0 {
		g.metrics.Entitlement(string(c), "allowed")
		return nil
	}

	// 未计入：区分状态/套餐拒绝与额度用尽
	sub, err := g.load(accountID)
	if err != nil {
		return err
	}
	err = denyReason(sub, c)
	g.observeDenied(c, err)
	return err
}

// Refund 下游失败时退还一次用量
func (g *EntitlementGate) Refund(accountID int64, c model.Capability) error {
	if !c.Metered() {
		return nil
	}
	return g.subRepo.DecrementUsage(accountID, c)
}

// Authorize 中间件入口：计量能力走 RecordUsage，其余仅做判定
func (g *EntitlementGate) Authorize(accountID int64, c model.Capability) error {
	if c.Metered() {
		return g.RecordUsage(accountID, c)
	}
	return g.check(accountID, c)
}

func (g *EntitlementGate) check(accountID int64, c model.Capability) error {
	sub, err := g.load(accountID)
	if err != nil {
		return err
	}
	if CanUse(sub, c) {
		g.metrics.Entitlement(string(c), "allowed")
		return nil
	}
	err = denyReason(sub, c)
	g.observeDenied(c, err)
	return err
}

func (g *EntitlementGate) observeDenied(c model.Capability, err error) {
	if errors.Is(err, ErrQuotaExceeded) {
		g.metrics.Entitlement(string(c), "quota_exceeded")
		return
	}
	g.metrics.Entitlement(string(c), "not_entitled")
}

// denyReason 被拒绝的原因：状态或套餐不含该能力为 ErrNotEntitled，额度用尽为 ErrQuotaExceeded
func denyReason(sub *model.Subscription, c model.Capability) error {
	if sub == nil {
		sub = freeTemplate()
	}
	if !sub.Status.Entitled() || !c.Metered() {
		return ErrNotEntitled
	}

	limit := sub.Limits.APIRequests
	if c == model.CapabilityExport {
		limit = sub.Limits.DataExports
	}
	if limit == 0 {
		return ErrNotEntitled
	}
	return ErrQuotaExceeded
}
