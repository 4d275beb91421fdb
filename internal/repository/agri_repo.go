package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
)

// 时间粒度
const (
	GranularityDaily   = "daily"
	GranularityWeekly  = "weekly"
	GranularityMonthly = "monthly"
)

// AgriFilter 聚合查询的过滤条件，零值字段表示不过滤
type AgriFilter struct {
	Region   string    `json:"region,omitempty"`
	CropType string    `json:"crop_type,omitempty"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	RiskType string    `json:"risk_type,omitempty"`
	Severity string    `json:"severity,omitempty"`
}

// scope 在指定表别名上追加过滤条件
func (f AgriFilter) scope(alias, dateCol string) func(*gorm.DB) *gorm.DB {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	return func(db *gorm.DB) *gorm.DB {
		if f.Region != "" {
			db = db.Where(col("region")+" = ?", f.Region)
		}
		if f.CropType != "" {
			db = db.Where(col("crop_type")+" = ?", f.CropType)
		}
		if !f.From.IsZero() {
			db = db.Where(col(dateCol)+" >= ?", f.From)
		}
		if !f.To.IsZero() {
			db = db.Where(col(dateCol)+" <= ?", f.To)
		}
		return db
	}
}

// riskScope 风险因素表上的过滤条件
func (f AgriFilter) riskScope(db *gorm.DB) *gorm.DB {
	if f.RiskType != "" {
		db = db.Where("rf.type = ?", f.RiskType)
	}
	if f.Severity != "" {
		db = db.Where("rf.severity = ?", f.Severity)
	}
	return db
}

type AgriRepository struct {
	db *gorm.DB
}

func NewAgriRepository(db *gorm.DB) *AgriRepository {
	return &AgriRepository{db: db}
}

// periodExpr 按数据库方言生成日期分组表达式
func (r *AgriRepository) periodExpr(column, granularity string) string {
	if r.db.Dialector.Name() == "sqlite" {
		switch granularity {
		case GranularityDaily:
			return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
		case GranularityWeekly:
			return fmt.Sprintf("strftime('%%Y-W%%W', %s)", column)
		default:
			return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
		}
	}
	switch granularity {
	case GranularityDaily:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", column)
	case GranularityWeekly:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%x-W%%v')", column)
	default:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m')", column)
	}
}

func (r *AgriRepository) records(f AgriFilter) *gorm.DB {
	return r.db.Model(&model.AgriRecord{}).Scopes(f.scope("", "planting_date"))
}

func (r *AgriRepository) risks(f AgriFilter) *gorm.DB {
	return r.db.Table("risk_factors AS rf").
		Joins("JOIN agricultural_records AS ar ON ar.id = rf.record_id").
		Scopes(f.scope("ar", "planting_date"), f.riskScope)
}

// Create 写入记录及其风险因素
func (r *AgriRepository) Create(record *model.AgriRecord) error {
	return r.db.Create(record).Error
}

func (r *AgriRepository) GetByID(id int64) (*model.AgriRecord, error) {
	var record model.AgriRecord
	err := r.db.Preload("RiskFactors").Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List 分页查询记录（导出明细用）
func (r *AgriRepository) List(f AgriFilter, limit int) ([]model.AgriRecord, error) {
	var records []model.AgriRecord
	err := r.records(f).
		Preload("RiskFactors").
		Order("planting_date DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *AgriRepository) Count(f AgriFilter) (int64, error) {
	var total int64
	err := r.records(f).Count(&total).Error
	return total, err
}

// Latest 最近一次提交的记录，没有记录时返回 nil
func (r *AgriRepository) Latest(f AgriFilter) (*model.AgriRecord, error) {
	var records []model.AgriRecord
	err := r.records(f).Order("created_at DESC").Limit(1).Find(&records).Error
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

// Recent 最近提交的记录
func (r *AgriRepository) Recent(f AgriFilter, limit int) ([]model.AgriRecord, error) {
	var records []model.AgriRecord
	err := r.records(f).Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

type CropStat struct {
	CropType    string  `json:"crop_type"`
	Count       int64   `json:"count"`
	AvgYieldMin float64 `json:"avg_yield_min"`
	AvgYieldMax float64 `json:"avg_yield_max"`
}

func (r *AgriRepository) CropDistribution(f AgriFilter) ([]CropStat, error) {
	var rows []CropStat
	err := r.records(f).
		Select("crop_type, COUNT(*) AS count, AVG(yield_min) AS avg_yield_min, AVG(yield_max) AS avg_yield_max").
		Group("crop_type").
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

type RegionStat struct {
	Region      string  `json:"region"`
	Farms       int64   `json:"farms"`
	AvgYield    float64 `json:"avg_yield"`
	CropVariety int64   `json:"crop_variety"`
}

func (r *AgriRepository) RegionalSummary(f AgriFilter) ([]RegionStat, error) {
	var rows []RegionStat
	err := r.records(f).
		Select("region, COUNT(*) AS farms, AVG((yield_min + yield_max) / 2) AS avg_yield, COUNT(DISTINCT crop_type) AS crop_variety").
		Group("region").
		Order("farms DESC").
		Scan(&rows).Error
	return rows, err
}

type QualityStat struct {
	Group        string  `json:"group,omitempty"`
	Records      int64   `json:"records"`
	Validated    int64   `json:"validated"`
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Timeliness   float64 `json:"timeliness"`
	Overall      float64 `json:"overall"`
}

const qualitySelect = "COUNT(*) AS records, " +
	"SUM(CASE WHEN validation_status = 'validated' THEN 1 ELSE 0 END) AS validated, " +
	"AVG(quality_completeness) AS completeness, AVG(quality_accuracy) AS accuracy, " +
	"AVG(quality_timeliness) AS timeliness, AVG(quality_overall) AS overall"

// QualityOverall 整体数据质量
func (r *AgriRepository) QualityOverall(f AgriFilter) (*QualityStat, error) {
	var row QualityStat
	err := r.records(f).Select(qualitySelect).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// QualityByRegion 各区域数据质量
func (r *AgriRepository) QualityByRegion(f AgriFilter) ([]QualityStat, error) {
	var rows []QualityStat
	err := r.records(f).
		Select("region AS `group`, " + qualitySelect).
		Group("region").
		Order("region").
		Scan(&rows).Error
	return rows, err
}

type TrendPoint struct {
	Period      string  `json:"period"`
	CropType    string  `json:"crop_type"`
	Region      string  `json:"region"`
	Plantings   int64   `json:"plantings"`
	AvgYieldMin float64 `json:"avg_yield_min"`
	AvgYieldMax float64 `json:"avg_yield_max"`
}

func (r *AgriRepository) CropTrends(f AgriFilter, granularity string) ([]TrendPoint, error) {
	period := r.periodExpr("planting_date", granularity)
	var rows []TrendPoint
	err := r.records(f).
		Select(period + " AS period, crop_type, region, COUNT(*) AS plantings, AVG(yield_min) AS avg_yield_min, AVG(yield_max) AS avg_yield_max").
		Group(period + ", crop_type, region").
		Order("period ASC, plantings DESC").
		Scan(&rows).Error
	return rows, err
}

type RegionalCropStat struct {
	Region      string  `json:"region"`
	CropType    string  `json:"crop_type"`
	Farms       int64   `json:"farms"`
	AvgYieldMin float64 `json:"avg_yield_min"`
	AvgYieldMax float64 `json:"avg_yield_max"`
	AvgQuality  float64 `json:"avg_quality"`
}

func (r *AgriRepository) RegionalCrops(f AgriFilter) ([]RegionalCropStat, error) {
	var rows []RegionalCropStat
	err := r.records(f).
		Select("region, crop_type, COUNT(*) AS farms, AVG(yield_min) AS avg_yield_min, AVG(yield_max) AS avg_yield_max, AVG(quality_overall) AS avg_quality").
		Group("region, crop_type").
		Order("region ASC, farms DESC").
		Scan(&rows).Error
	return rows, err
}

type PriceStat struct {
	CropType string  `json:"crop_type"`
	Region   string  `json:"region,omitempty"`
	Period   string  `json:"period,omitempty"`
	AvgPrice float64 `json:"avg_price"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	Samples  int64   `json:"samples"`
}

// MarketPrices 各作物、区域的价格统计
func (r *AgriRepository) MarketPrices(f AgriFilter) ([]PriceStat, error) {
	var rows []PriceStat
	err := r.records(f).
		Where("market_price > 0").
		Select("crop_type, region, AVG(market_price) AS avg_price, MIN(market_price) AS min_price, MAX(market_price) AS max_price, COUNT(*) AS samples").
		Group("crop_type, region").
		Order("crop_type ASC, avg_price DESC").
		Scan(&rows).Error
	return rows, err
}

// PriceTrends 各作物按月的价格走势
func (r *AgriRepository) PriceTrends(f AgriFilter) ([]PriceStat, error) {
	period := r.periodExpr("planting_date", GranularityMonthly)
	var rows []PriceStat
	err := r.records(f).
		Where("market_price > 0").
		Select(period + " AS period, crop_type, AVG(market_price) AS avg_price, MIN(market_price) AS min_price, MAX(market_price) AS max_price, COUNT(*) AS samples").
		Group(period + ", crop_type").
		Order("period ASC").
		Scan(&rows).Error
	return rows, err
}

type PriceMoments struct {
	CropType   string  `json:"crop_type"`
	AvgPrice   float64 `json:"avg_price"`
	AvgSquared float64 `json:"avg_squared"`
	Samples    int64   `json:"samples"`
}

// PriceMoments 价格一阶、二阶矩，用于计算总体标准差
func (r *AgriRepository) PriceMoments(f AgriFilter) ([]PriceMoments, error) {
	var rows []PriceMoments
	err := r.records(f).
		Where("market_price > 0").
		Select("crop_type, AVG(market_price) AS avg_price, AVG(market_price * market_price) AS avg_squared, COUNT(*) AS samples").
		Group("crop_type").
		Scan(&rows).Error
	return rows, err
}

type SupplyStat struct {
	CropType string  `json:"crop_type"`
	Region   string  `json:"region"`
	Supply   int64   `json:"supply"`
	AvgYield float64 `json:"avg_yield"`
	AvgPrice float64 `json:"avg_price"`
}

func (r *AgriRepository) SupplyDemand(f AgriFilter) ([]SupplyStat, error) {
	var rows []SupplyStat
	err := r.records(f).
		Select("crop_type, region, COUNT(*) AS supply, AVG((yield_min + yield_max) / 2) AS avg_yield, AVG(CASE WHEN market_price > 0 THEN market_price END) AS avg_price").
		Group("crop_type, region").
		Order("supply DESC").
		Scan(&rows).Error
	return rows, err
}

type MarketStat struct {
	Market       string  `json:"market"`
	Region       string  `json:"region"`
	Transactions int64   `json:"transactions"`
	AvgPrice     float64 `json:"avg_price"`
	CropVariety  int64   `json:"crop_variety"`
}

func (r *AgriRepository) TopMarkets(f AgriFilter, limit int) ([]MarketStat, error) {
	var rows []MarketStat
	err := r.records(f).
		Where("market_name <> '' AND market_price > 0").
		Select("market_name AS market, region, COUNT(*) AS transactions, AVG(market_price) AS avg_price, COUNT(DISTINCT crop_type) AS crop_variety").
		Group("market_name, region").
		Order("transactions DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

type RiskStat struct {
	Type            string `json:"type"`
	Severity        string `json:"severity"`
	Count           int64  `json:"count"`
	AffectedRegions int64  `json:"affected_regions"`
}

func (r *AgriRepository) RiskOverview(f AgriFilter) ([]RiskStat, error) {
	var rows []RiskStat
	err := r.risks(f).
		Select("rf.type AS type, rf.severity AS severity, COUNT(*) AS count, COUNT(DISTINCT ar.region) AS affected_regions").
		Group("rf.type, rf.severity").
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

type HotspotStat struct {
	Region       string `json:"region"`
	TotalRisks   int64  `json:"total_risks"`
	HighSeverity int64  `json:"high_severity"`
	RiskTypes    int64  `json:"risk_types"`
}

func (r *AgriRepository) RiskHotspots(f AgriFilter) ([]HotspotStat, error) {
	var rows []HotspotStat
	err := r.risks(f).
		Select("ar.region AS region, COUNT(*) AS total_risks, " +
			"SUM(CASE WHEN rf.severity IN ('high', 'severe') THEN 1 ELSE 0 END) AS high_severity, " +
			"COUNT(DISTINCT rf.type) AS risk_types").
		Group("ar.region").
		Order("high_severity DESC").
		Scan(&rows).Error
	return rows, err
}

type RiskTrendPoint struct {
	Period string `json:"period"`
	Type   string `json:"type"`
	Count  int64  `json:"count"`
}

func (r *AgriRepository) RiskTrends(f AgriFilter) ([]RiskTrendPoint, error) {
	period := r.periodExpr("ar.planting_date", GranularityMonthly)
	var rows []RiskTrendPoint
	err := r.risks(f).
		Select(period + " AS period, rf.type AS type, COUNT(*) AS count").
		Group(period + ", rf.type").
		Order("period ASC").
		Scan(&rows).Error
	return rows, err
}

type CropRiskStat struct {
	CropType        string `json:"crop_type"`
	RiskCount       int64  `json:"risk_count"`
	RiskTypes       int64  `json:"risk_types"`
	AffectedRegions int64  `json:"affected_regions"`
}

func (r *AgriRepository) AffectedCrops(f AgriFilter) ([]CropRiskStat, error) {
	var rows []CropRiskStat
	err := r.risks(f).
		Select("ar.crop_type AS crop_type, COUNT(*) AS risk_count, COUNT(DISTINCT rf.type) AS risk_types, COUNT(DISTINCT ar.region) AS affected_regions").
		Group("ar.crop_type").
		Order("risk_count DESC").
		Scan(&rows).Error
	return rows, err
}

type RiskRegionStat struct {
	Type   string `json:"type"`
	Region string `json:"region"`
	Total  int64  `json:"total"`
	Low    int64  `json:"low"`
	Medium int64  `json:"medium"`
	High   int64  `json:"high"`
	Severe int64  `json:"severe"`
}

// RiskAnalysis 风险类型 × 区域的严重程度分布
func (r *AgriRepository) RiskAnalysis(f AgriFilter) ([]RiskRegionStat, error) {
	var rows []RiskRegionStat
	err := r.risks(f).
		Select("rf.type AS type, ar.region AS region, COUNT(*) AS total, " +
			"SUM(CASE WHEN rf.severity = 'low' THEN 1 ELSE 0 END) AS low, " +
			"SUM(CASE WHEN rf.severity = 'medium' THEN 1 ELSE 0 END) AS medium, " +
			"SUM(CASE WHEN rf.severity = 'high' THEN 1 ELSE 0 END) AS high, " +
			"SUM(CASE WHEN rf.severity = 'severe' THEN 1 ELSE 0 END) AS severe").
		Group("rf.type, ar.region").
		Order("total DESC").
		Scan(&rows).Error
	return rows, err
}

type HarvestPoint struct {
	Period      string  `json:"period"`
	CropType    string  `json:"crop_type"`
	Expected    int64   `json:"expected"`
	Harvested   int64   `json:"harvested"`
	AvgYieldMax float64 `json:"avg_yield_max"`
}

// HarvestTimeline 按预计收获月份统计
func (r *AgriRepository) HarvestTimeline(f AgriFilter) ([]HarvestPoint, error) {
	period := r.periodExpr("expected_harvest_date", GranularityMonthly)
	var rows []HarvestPoint
	err := r.db.Model(&model.AgriRecord{}).
		Scopes(f.scope("", "expected_harvest_date")).
		Select(period + " AS period, crop_type, COUNT(*) AS expected, " +
			"SUM(CASE WHEN actual_harvest_date IS NOT NULL THEN 1 ELSE 0 END) AS harvested, " +
			"AVG(yield_max) AS avg_yield_max").
		Group(period + ", crop_type").
		Order("period ASC").
		Scan(&rows).Error
	return rows, err
}
