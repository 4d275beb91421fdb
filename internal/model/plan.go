package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanInsights   Plan = "insights"
	PlanEnterprise Plan = "enterprise"
)

// Unlimited 计量上限哨兵值
const Unlimited = -1

// 控制面板访问级别
const (
	DashboardFull     = "full"
	DashboardReadOnly = "read-only"
	DashboardNone     = "none"
)

// 支持级别
const (
	SupportBasic     = "basic"
	SupportEmail     = "email"
	SupportPriority  = "priority"
	SupportDedicated = "dedicated"
)

// Capability 受套餐控制的能力
type Capability string

const (
	CapabilityAPI       Capability = "api"       // 计量：api_requests
	CapabilityExport    Capability = "export"    // 计量：data_exports
	CapabilityDashboard Capability = "dashboard" // dashboard_access != none
	CapabilityCustom    Capability = "custom"    // custom_reports
)

// Metered 是否按次计量
func (c Capability) Metered() bool {
	return c == CapabilityAPI || c == CapabilityExport
}

// PlanLimits 套餐限额
type PlanLimits struct {
	APIRequests     int    `gorm:"default:0" json:"api_requests"`
	DataExports     int    `gorm:"default:0" json:"data_exports"`
	DashboardAccess string `gorm:"size:20;default:read-only" json:"dashboard_access"`
	CustomReports   bool   `gorm:"default:false" json:"custom_reports"`
	SupportLevel    string `gorm:"size:20;default:basic" json:"support_level"`
}

// PlanDefinition 套餐目录条目
type PlanDefinition struct {
	ID          Plan            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BestFor     string          `json:"best_for"`
	Features    []string        `json:"features"`
	PriceNGN    decimal.Decimal `json:"price"`
	PriceUSD    decimal.Decimal `json:"usd_price"`
	Interval    string          `json:"interval"`
	Limits      PlanLimits      `json:"limits"`
}

// planOrder 目录展示顺序
var planOrder = []Plan{PlanFree, PlanInsights, PlanEnterprise}

// plans 套餐目录，限额与价格的唯一来源
var plans = map[Plan]PlanDefinition{
	PlanFree: {
		ID:          PlanFree,
		Name:        "FREE - Awareness & Trust",
		Description: "For individuals and organizations exploring agricultural data",
		BestFor:     "Researchers, students, first-time users",
		Features: []string{
			"High-level agricultural summaries",
			"Sample regional insights (limited)",
			"Overview of crops and farming activity",
			"Access to published public reports",
		},
		PriceNGN: decimal.Zero,
		PriceUSD: decimal.Zero,
		Interval: IntervalMonth,
		Limits: PlanLimits{
			APIRequests:     0,
			DataExports:     0,
			DashboardAccess: DashboardReadOnly,
			CustomReports:   false,
			SupportLevel:    SupportBasic,
		},
	},
	PlanInsights: {
		ID:          PlanInsights,
		Name:        "INSIGHTS PLAN - Structured, Repeatable Reports",
		Description: "For organizations that need regular, ready-made insights",
		BestFor:     "Buyers, NGOs, analysts, agri-projects monitoring regions",
		Features: []string{
			"Monthly regional insight reports (fixed format)",
			"Crop production trends by location",
			"Seasonal risk insights (weather, pests, input challenges)",
			"Downloadable reports (CSV)",
			"Email support",
		},
		PriceNGN: decimal.NewFromInt(150000),
		PriceUSD: decimal.NewFromInt(99),
		Interval: IntervalMonth,
		Limits: PlanLimits{
			APIRequests:     5000,
			DataExports:     50,
			DashboardAccess: DashboardFull,
			CustomReports:   false,
			SupportLevel:    SupportEmail,
		},
	},
	PlanEnterprise: {
		ID:          PlanEnterprise,
		Name:        "ENTERPRISE PLAN - Decision Support Partner",
		Description: "For organizations needing custom, decision-level intelligence",
		BestFor:     "Large buyers, donors, lenders, government & agribusinesses",
		Features: []string{
			"Everything in the Insights Plan",
			"Custom reports built to your needs",
			"Region-specific supply & risk forecasts",
			"Ability to request specific crops, states, or farm groups",
			"Priority support",
			"Early access to new datasets",
		},
		PriceNGN: decimal.NewFromInt(520000),
		PriceUSD: decimal.NewFromInt(349),
		Interval: IntervalMonth,
		Limits: PlanLimits{
			APIRequests:     10000,
			DataExports:     100,
			DashboardAccess: DashboardFull,
			CustomReports:   true,
			SupportLevel:    SupportPriority,
		},
	},
}

// LookupPlan 按 ID 查找套餐
func LookupPlan(id Plan) (PlanDefinition, bool) {
	def, ok := plans[id]
	return def, ok
}

// ParsePlan 解析客户端传入的套餐 ID，遗留值（basic、explorer）不被接受
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := plans[p]; !ok {
		return "", false
	}
	return p, true
}

// Catalog 按展示顺序返回全部套餐
func Catalog() []PlanDefinition {
	list := make([]PlanDefinition, 0, len(planOrder))
	for _, id := range planOrder {
		list = append(list, plans[id])
	}
	return list
}
