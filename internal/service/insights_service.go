package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/repository"
)

var (
	ErrInvalidFilter = errors.New("invalid filter")
	ErrUnknownQuery  = errors.New("unknown query")
)

// 导出可用的查询名
const (
	QueryRegionalCrops   = "regional_crops"
	QueryMarketPrices    = "market_prices"
	QueryRiskAnalysis    = "risk_analysis"
	QueryHarvestTimeline = "harvest_timeline"
	QueryQualityMetrics  = "quality_metrics"
	QueryCropTrends      = "crop_trends"
	QueryRecords         = "records"
)

const (
	recentLimit     = 10
	topMarketsLimit = 10
	exportRowLimit  = 10000
	cachePrefix     = "agripulse:insights:"
)

// RecordValidationError 记录内容校验失败
type RecordValidationError struct {
	Details []string
}

func (e *RecordValidationError) Error() string {
	return "data validation failed: " + strings.Join(e.Details, "; ")
}

// OverviewSummary 总览摘要
type OverviewSummary struct {
	TotalFarms    int64   `json:"total_farms"`
	AvgQuality    float64 `json:"avg_quality"`
	DataFreshness int     `json:"data_freshness_days"`
}

type Overview struct {
	Summary           OverviewSummary         `json:"summary"`
	CropDistribution  []repository.CropStat   `json:"crop_distribution"`
	RegionalData      []repository.RegionStat `json:"regional_data"`
	QualityMetrics    *repository.QualityStat `json:"quality_metrics"`
	RecentSubmissions []model.AgriRecord      `json:"recent_submissions"`
}

type CropTrends struct {
	Trends      []repository.TrendPoint `json:"trends"`
	Granularity string                  `json:"granularity"`
}

type VolatilityStat struct {
	CropType   string  `json:"crop_type"`
	AvgPrice   float64 `json:"avg_price"`
	Volatility float64 `json:"volatility"`
	RiskLevel  string  `json:"risk_level"`
	Samples    int64   `json:"samples"`
}

type SupplyDemandStat struct {
	repository.SupplyStat
	DemandIndicator string `json:"demand_indicator"`
}

type MarketIntelligence struct {
	PriceTrends  []repository.PriceStat  `json:"price_trends"`
	Volatility   []VolatilityStat        `json:"volatility"`
	SupplyDemand []SupplyDemandStat      `json:"supply_demand"`
	TopMarkets   []repository.MarketStat `json:"top_markets"`
}

type RiskOverviewStat struct {
	repository.RiskStat
	RiskScore int `json:"risk_score"`
}

type RiskHotspot struct {
	repository.HotspotStat
	RiskLevel string `json:"risk_level"`
}

type CropVulnerability struct {
	repository.CropRiskStat
	VulnerabilityScore int64 `json:"vulnerability_score"`
}

type RiskMonitoring struct {
	RiskOverview  []RiskOverviewStat          `json:"risk_overview"`
	RiskHotspots  []RiskHotspot               `json:"risk_hotspots"`
	RiskTrends    []repository.RiskTrendPoint `json:"risk_trends"`
	AffectedCrops []CropVulnerability         `json:"affected_crops"`
}

type QualityMetrics struct {
	Overall  *repository.QualityStat  `json:"overall"`
	ByRegion []repository.QualityStat `json:"by_region"`
}

// Table 导出用的扁平结果
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type InsightsService struct {
	agriRepo *repository.AgriRepository
	cache    *redis.Client
	cacheTTL time.Duration
	validate *validator.Validate

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewInsightsService cache 为 nil 或 ttl <= 0 时不缓存
func NewInsightsService(agriRepo *repository.AgriRepository, cache *redis.Client, ttl time.Duration) *InsightsService {
	return &InsightsService{
		agriRepo: agriRepo,
		cache:    cache,
		cacheTTL: ttl,
		validate: validator.New(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// filterValue "all"、"undefined" 与空值都视为不过滤
func filterValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "all", "undefined", "null":
		return ""
	}
	return v
}

// ParseFilter 解析查询参数，defaultRange 为空时不限制时间
func ParseFilter(q *dto.InsightsQuery, defaultRange string, now time.Time) (repository.AgriFilter, error) {
	f := repository.AgriFilter{
		Region:   filterValue(q.Region),
		CropType: filterValue(q.CropType),
		RiskType: filterValue(q.RiskType),
		Severity: filterValue(q.Severity),
	}

	start, end := filterValue(q.StartDate), filterValue(q.EndDate)
	if start != "" || end != "" {
		if start != "" {
			t, err := time.Parse("2006-01-02", start)
			if err != nil {
				return f, fmt.Errorf("%w: start_date %q", ErrInvalidFilter, start)
			}
			f.From = t
		}
		if end != "" {
			t, err := time.Parse("2006-01-02", end)
			if err != nil {
				return f, fmt.Errorf("%w: end_date %q", ErrInvalidFilter, end)
			}
			f.To = t.Add(24*time.Hour - time.Nanosecond)
		}
		if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
			return f, fmt.Errorf("%w: end_date before start_date", ErrInvalidFilter)
		}
		return f, nil
	}

	timeRange := filterValue(q.TimeRange)
	if timeRange == "" {
		timeRange = defaultRange
	}
	if timeRange == "" {
		return f, nil
	}

	switch timeRange {
	case "1m":
		f.From = now.AddDate(0, -1, 0)
	case "3m":
		f.From = now.AddDate(0, -3, 0)
	case "6m":
		f.From = now.AddDate(0, -6, 0)
	case "1y":
		f.From = now.AddDate(-1, 0, 0)
	default:
		return f, fmt.Errorf("%w: time_range %q", ErrInvalidFilter, timeRange)
	}
	f.To = now
	return f, nil
}

// ParseGranularity 未指定时按月
func ParseGranularity(g string) (string, error) {
	switch filterValue(g) {
	case "", repository.GranularityMonthly:
		return repository.GranularityMonthly, nil
	case repository.GranularityWeekly:
		return repository.GranularityWeekly, nil
	case repository.GranularityDaily:
		return repository.GranularityDaily, nil
	default:
		return "", fmt.Errorf("%w: granularity %q", ErrInvalidFilter, g)
	}
}

// cacheKey 时间范围按小时取整，避免 now 导致缓存失效
func cacheKey(name string, f repository.AgriFilter, extra string) string {
	f.From = f.From.Truncate(time.Hour)
	f.To = f.To.Truncate(time.Hour)
	data, _ := json.Marshal(f)
	return cachePrefix + name + ":" + extra + ":" + string(data)
}

func (s *InsightsService) cached(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) error {
	if s.cache != nil && s.cacheTTL > 0 {
		data, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			if err := json.Unmarshal(data, dest); err == nil {
				return nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("[insights] cache get %s failed: %v", key, err)
		}
	}

	v, err := load()
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			log.Printf("[insights] cache set %s failed: %v", key, err)
		}
	}
	return nil
}

// Overview 控制面板总览
func (s *InsightsService) Overview(ctx context.Context, f repository.AgriFilter) (*Overview, error) {
	var out Overview
	err := s.cached(ctx, cacheKey("overview", f, ""), &out, func() (interface{}, error) {
		total, err := s.agriRepo.Count(f)
		if err != nil {
			return nil, err
		}
		crops, err := s.agriRepo.CropDistribution(f)
		if err != nil {
			return nil, err
		}
		regions, err := s.agriRepo.RegionalSummary(f)
		if err != nil {
			return nil, err
		}
		quality, err := s.agriRepo.QualityOverall(f)
		if err != nil {
			return nil, err
		}
		recent, err := s.agriRepo.Recent(f, recentLimit)
		if err != nil {
			return nil, err
		}

		for i := range regions {
			regions[i].AvgYield = round(regions[i].AvgYield, 2)
		}
		roundQuality(quality)

		return &Overview{
			Summary: OverviewSummary{
				TotalFarms:    total,
				AvgQuality:    quality.Overall,
				DataFreshness: s.freshness(f),
			},
			CropDistribution:  crops,
			RegionalData:      regions,
			QualityMetrics:    quality,
			RecentSubmissions: recent,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// freshness 时间窗口的天数，未限定时间时取最近一次提交距今的天数
func (s *InsightsService) freshness(f repository.AgriFilter) int {
	now := time.Now().UTC()
	if !f.From.IsZero() {
		end := now
		if !f.To.IsZero() {
			end = f.To
		}
		return int(end.Sub(f.From).Hours() / 24)
	}
	latest, err := s.agriRepo.Latest(f)
	if err != nil || latest == nil {
		return 0
	}
	return int(now.Sub(latest.CreatedAt).Hours() / 24)
}

// CropTrends 作物种植趋势
func (s *InsightsService) CropTrends(ctx context.Context, f repository.AgriFilter, granularity string) (*CropTrends, error) {
	var out CropTrends
	err := s.cached(ctx, cacheKey("crop_trends", f, granularity), &out, func() (interface{}, error) {
		trends, err := s.agriRepo.CropTrends(f, granularity)
		if err != nil {
			return nil, err
		}
		for i := range trends {
			trends[i].AvgYieldMin = round(trends[i].AvgYieldMin, 2)
			trends[i].AvgYieldMax = round(trends[i].AvgYieldMax, 2)
		}
		return &CropTrends{Trends: trends, Granularity: granularity}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VolatilityLevel 价格波动等级
func VolatilityLevel(v float64) string {
	switch {
	case v < 10:
		return "low"
	case v < 25:
		return "medium"
	default:
		return "high"
	}
}

// DemandIndicator 按均价估计需求
func DemandIndicator(avgPrice float64) string {
	switch {
	case avgPrice < 100:
		return "low"
	case avgPrice < 300:
		return "medium"
	default:
		return "high"
	}
}

// MarketIntelligence 市场行情
func (s *InsightsService) MarketIntelligence(ctx context.Context, f repository.AgriFilter) (*MarketIntelligence, error) {
	var out MarketIntelligence
	err := s.cached(ctx, cacheKey("market_intelligence", f, ""), &out, func() (interface{}, error) {
		trends, err := s.agriRepo.PriceTrends(f)
		if err != nil {
			return nil, err
		}
		moments, err := s.agriRepo.PriceMoments(f)
		if err != nil {
			return nil, err
		}
		supply, err := s.agriRepo.SupplyDemand(f)
		if err != nil {
			return nil, err
		}
		markets, err := s.agriRepo.TopMarkets(f, topMarketsLimit)
		if err != nil {
			return nil, err
		}

		for i := range trends {
			trends[i].AvgPrice = round(trends[i].AvgPrice, 2)
		}

		volatility := make([]VolatilityStat, 0, len(moments))
		for _, m := range moments {
			// 总体标准差
			variance := math.Max(0, m.AvgSquared-m.AvgPrice*m.AvgPrice)
			std := round(math.Sqrt(variance), 2)
			volatility = append(volatility, VolatilityStat{
				CropType:   m.CropType,
				AvgPrice:   round(m.AvgPrice, 2),
				Volatility: std,
				RiskLevel:  VolatilityLevel(std),
				Samples:    m.Samples,
			})
		}
		sort.Slice(volatility, func(i, j int) bool { return volatility[i].Volatility > volatility[j].Volatility })

		demand := make([]SupplyDemandStat, 0, len(supply))
		for _, row := range supply {
			row.AvgPrice = round(row.AvgPrice, 2)
			row.AvgYield = round(row.AvgYield, 2)
			demand = append(demand, SupplyDemandStat{SupplyStat: row, DemandIndicator: DemandIndicator(row.AvgPrice)})
		}

		for i := range markets {
			markets[i].AvgPrice = round(markets[i].AvgPrice, 2)
		}

		return &MarketIntelligence{
			PriceTrends:  trends,
			Volatility:   volatility,
			SupplyDemand: demand,
			TopMarkets:   markets,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// HotspotLevel 按高危风险数量划分区域风险等级
func HotspotLevel(highSeverity int64) string {
	switch {
	case highSeverity < 5:
		return "low"
	case highSeverity < 15:
		return "medium"
	default:
		return "high"
	}
}

// SeverityScore 未知等级按 medium 计
func SeverityScore(severity string) int {
	if score, ok := model.RiskSeverityScore[severity]; ok {
		return score
	}
	return 2
}

// RiskMonitoring 风险监测
func (s *InsightsService) RiskMonitoring(ctx context.Context, f repository.AgriFilter) (*RiskMonitoring, error) {
	var out RiskMonitoring
	err := s.cached(ctx, cacheKey("risk_monitoring", f, ""), &out, func() (interface{}, error) {
		overview, err := s.agriRepo.RiskOverview(f)
		if err != nil {
			return nil, err
		}
		hotspots, err := s.agriRepo.RiskHotspots(f)
		if err != nil {
			return nil, err
		}
		trends, err := s.agriRepo.RiskTrends(f)
		if err != nil {
			return nil, err
		}
		crops, err := s.agriRepo.AffectedCrops(f)
		if err != nil {
			return nil, err
		}

		result := &RiskMonitoring{
			RiskOverview:  make([]RiskOverviewStat, 0, len(overview)),
			RiskHotspots:  make([]RiskHotspot, 0, len(hotspots)),
			RiskTrends:    trends,
			AffectedCrops: make([]CropVulnerability, 0, len(crops)),
		}
		for _, row := range overview {
			result.RiskOverview = append(result.RiskOverview, RiskOverviewStat{RiskStat: row, RiskScore: SeverityScore(row.Severity)})
		}
		sort.SliceStable(result.RiskOverview, func(i, j int) bool {
			a, b := result.RiskOverview[i], result.RiskOverview[j]
			if a.RiskScore != b.RiskScore {
				return a.RiskScore > b.RiskScore
			}
			return a.Count > b.Count
		})

		for _, row := range hotspots {
			result.RiskHotspots = append(result.RiskHotspots, RiskHotspot{HotspotStat: row, RiskLevel: HotspotLevel(row.HighSeverity)})
		}
		sort.SliceStable(result.RiskHotspots, func(i, j int) bool {
			return result.RiskHotspots[i].TotalRisks > result.RiskHotspots[j].TotalRisks
		})

		for _, row := range crops {
			result.AffectedCrops = append(result.AffectedCrops, CropVulnerability{
				CropRiskStat:       row,
				VulnerabilityScore: row.RiskTypes * row.AffectedRegions,
			})
		}
		sort.SliceStable(result.AffectedCrops, func(i, j int) bool {
			return result.AffectedCrops[i].VulnerabilityScore > result.AffectedCrops[j].VulnerabilityScore
		})

		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RegionalCrops 区域 × 作物统计
func (s *InsightsService) RegionalCrops(ctx context.Context, f repository.AgriFilter) ([]repository.RegionalCropStat, error) {
	var out []repository.RegionalCropStat
	err := s.cached(ctx, cacheKey(QueryRegionalCrops, f, ""), &out, func() (interface{}, error) {
		rows, err := s.agriRepo.RegionalCrops(f)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].AvgYieldMin = round(rows[i].AvgYieldMin, 2)
			rows[i].AvgYieldMax = round(rows[i].AvgYieldMax, 2)
			rows[i].AvgQuality = round(rows[i].AvgQuality, 3)
		}
		return rows, nil
	})
	return out, err
}

// MarketPrices 市场价格
func (s *InsightsService) MarketPrices(ctx context.Context, f repository.AgriFilter) ([]repository.PriceStat, error) {
	var out []repository.PriceStat
	err := s.cached(ctx, cacheKey(QueryMarketPrices, f, ""), &out, func() (interface{}, error) {
		rows, err := s.agriRepo.MarketPrices(f)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].AvgPrice = round(rows[i].AvgPrice, 2)
		}
		return rows, nil
	})
	return out, err
}

// RiskAnalysis 风险分布
func (s *InsightsService) RiskAnalysis(ctx context.Context, f repository.AgriFilter) ([]repository.RiskRegionStat, error) {
	var out []repository.RiskRegionStat
	err := s.cached(ctx, cacheKey(QueryRiskAnalysis, f, ""), &out, func() (interface{}, error) {
		return s.agriRepo.RiskAnalysis(f)
	})
	return out, err
}

// HarvestTimeline 收获时间线
func (s *InsightsService) HarvestTimeline(ctx context.Context, f repository.AgriFilter) ([]repository.HarvestPoint, error) {
	var out []repository.HarvestPoint
	err := s.cached(ctx, cacheKey(QueryHarvestTimeline, f, ""), &out, func() (interface{}, error) {
		rows, err := s.agriRepo.HarvestTimeline(f)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].AvgYieldMax = round(rows[i].AvgYieldMax, 2)
		}
		return rows, nil
	})
	return out, err
}

// QualityMetrics 数据质量
func (s *InsightsService) QualityMetrics(ctx context.Context, f repository.AgriFilter) (*QualityMetrics, error) {
	var out QualityMetrics
	err := s.cached(ctx, cacheKey(QueryQualityMetrics, f, ""), &out, func() (interface{}, error) {
		overall, err := s.agriRepo.QualityOverall(f)
		if err != nil {
			return nil, err
		}
		byRegion, err := s.agriRepo.QualityByRegion(f)
		if err != nil {
			return nil, err
		}
		roundQuality(overall)
		for i := range byRegion {
			roundQuality(&byRegion[i])
		}
		return &QualityMetrics{Overall: overall, ByRegion: byRegion}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit 校验、匿名化并保存一条记录
func (s *InsightsService) Submit(req *dto.SubmitRecordRequest) (*dto.SubmitRecordResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return nil, &RecordValidationError{Details: details}
		}
		return nil, err
	}

	record, err := buildRecord(req)
	if err != nil {
		return nil, err
	}

	if errs := record.Validate(); len(errs) > 0 {
		return nil, &RecordValidationError{Details: errs}
	}

	now := time.Now().UTC()
	s.mu.Lock()
	record.Anonymize(s.rnd, now)
	s.mu.Unlock()
	record.ValidationStatus = model.ValidationValidated
	record.LastValidated = &now

	if err := s.agriRepo.Create(record); err != nil {
		return nil, err
	}

	return &dto.SubmitRecordResponse{
		RecordID:         record.ID,
		ValidationStatus: record.ValidationStatus,
		QualityOverall:   record.QualityOverall,
	}, nil
}

func buildRecord(req *dto.SubmitRecordRequest) (*model.AgriRecord, error) {
	// validator 已保证日期格式
	parse := func(v string) *time.Time {
		if v == "" {
			return nil
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil
		}
		return &t
	}

	planted := parse(req.PlantingDate)
	expected := parse(req.ExpectedHarvestDate)
	if planted == nil || expected == nil {
		return nil, &RecordValidationError{Details: []string{"planting and expected harvest dates are required"}}
	}

	record := &model.AgriRecord{
		SourceID:            req.SourceID,
		CooperativeID:       req.CooperativeID,
		Region:              req.Region,
		State:               req.State,
		LGA:                 req.LGA,
		CropType:            req.CropType,
		PlantingDate:        *planted,
		ExpectedHarvestDate: *expected,
		ActualHarvestDate:   parse(req.ActualHarvestDate),
		YieldMin:            req.YieldMin,
		YieldMax:            req.YieldMax,
		YieldUnit:           defaultString(req.YieldUnit, "tons/hectare"),
		FertilizerType:      req.FertilizerType,
		FertilizerQuantity:  req.FertilizerQuantity,
		SeedVariety:         req.SeedVariety,
		SeedQuantity:        req.SeedQuantity,
		PesticideType:       req.PesticideType,
		PesticideQuantity:   req.PesticideQuantity,
		MarketPrice:         req.MarketPrice,
		MarketCurrency:      model.CurrencyNGN,
		MarketUnit:          defaultString(req.MarketUnit, "kg"),
		MarketName:          req.MarketName,
		MarketDate:          parse(req.MarketDate),
		QualityCompleteness: req.QualityCompleteness,
		QualityAccuracy:     req.QualityAccuracy,
		QualityTimeliness:   req.QualityTimeliness,
	}
	for _, rf := range req.RiskFactors {
		record.RiskFactors = append(record.RiskFactors, model.RiskFactor{
			Type:        rf.Type,
			Severity:    rf.Severity,
			Description: rf.Description,
		})
	}
	return record, nil
}

// RunQuery 按名称执行查询并转换为表格，供导出使用
func (s *InsightsService) RunQuery(ctx context.Context, name string, f repository.AgriFilter) (*Table, error) {
	switch name {
	case QueryRegionalCrops:
		rows, err := s.RegionalCrops(ctx, f)
		if err != nil {
			return nil, err
		}
		t := &Table{Columns: []string{"region", "crop_type", "farms", "avg_yield_min", "avg_yield_max", "avg_quality"}}
		for _, r := range rows {
			t.Rows = append(t.Rows, []string{r.Region, r.CropType, itoa(r.Farms), ftoa(r.AvgYieldMin), ftoa(r.AvgYieldMax), ftoa(r.AvgQuality)})
		}
		return t, nil

	case QueryMarketPrices:
		rows, err := s.MarketPrices(ctx, f)
		if err != nil {
			return nil, err
		}
		t := &Table{Columns: []string{"crop_type", "region", "avg_price", "min_price", "max_price", "samples"}}
		for _, r := range rows {
			t.Rows = append(t.Rows, []string{r.CropType, r.Region, ftoa(r.AvgPrice), ftoa(r.MinPrice), ftoa(r.MaxPrice), itoa(r.Samples)})
		}
		return t, nil

	case QueryRiskAnalysis:
		rows, err := s.RiskAnalysis(ctx, f)
		if err != nil {
			return nil, err
		}
		t := &Table{Columns: []string{"risk_type", "region", "total", "low", "medium", "high", "severe"}}
		for _, r := range rows {
			t.Rows = append(t.Rows, []string{r.Type, r.Region, itoa(r.Total), itoa(r.Low), itoa(r.Medium), itoa(r.High), itoa(r.Severe)})
		}
		return t, nil

	case QueryHarvestTimeline:
		rows, err := s.HarvestTimeline(ctx, f)
		if err != nil {
			return nil, err
		}
		t := &Table{Columns: []string{"period", "crop_type", "expected", "harvested", "avg_yield_max"}}
		for _, r := range rows {
			t.Rows = append(t.Rows, []string{r.Period, r.CropType, itoa(r.Expected), itoa(r.Harvested), ftoa(r.AvgYieldMax)})
		}
		return t, nil

	case QueryQualityMetrics:
		q, err := s.QualityMetrics(ctx, f)
		if err != nil {
			return nil, err
		}
		t := &Table{Columns: []string{"region", "records", "validated", "completeness", "accuracy", "timeliness", "overall"}}
		for _, r := range q.ByRegion {
			t.Rows = append(t.Rows, []string{r.Group, itoa(r.Records), itoa(r.Validated), ftoa(r.Completeness), ftoa(r.Accuracy), ftoa(r.Timeliness), ftoa(r.Overall)})
		}
		return t, nil

	case QueryCropTrends:
		trends, err := s.CropTrends(ctx, f, repository.GranularityMonthly)
		if err != nil {
			return nil, err
		}
		t := &Table{Columns: []string{"period", "crop_type", "region", "plantings", "avg_yield_min", "avg_yield_max"}}
		for _, r := range trends.Trends {
			t.Rows = append(t.Rows, []string{r.Period, r.CropType, r.Region, itoa(r.Plantings), ftoa(r.AvgYieldMin), ftoa(r.AvgYieldMax)})
		}
		return t, nil

	case QueryRecords:
		// 明细不缓存
		records, err := s.agriRepo.List(f, exportRowLimit)
		if err != nil {
			return nil, err
		}
		t := &Table{Columns: []string{"id", "region", "state", "lga", "crop_type", "planting_date", "expected_harvest_date", "yield_min", "yield_max", "yield_unit", "market_price", "market_name", "quality_overall", "risk_factors"}}
		for _, r := range records {
			risks := make([]string, 0, len(r.RiskFactors))
			for _, rf := range r.RiskFactors {
				risks = append(risks, rf.Type+":"+rf.Severity)
			}
			t.Rows = append(t.Rows, []string{
				itoa(r.ID), r.Region, r.State, r.LGA, r.CropType,
				r.PlantingDate.Format("2006-01-02"), r.ExpectedHarvestDate.Format("2006-01-02"),
				ftoa(r.YieldMin), ftoa(r.YieldMax), r.YieldUnit,
				ftoa(r.MarketPrice), r.MarketName, ftoa(r.QualityOverall),
				strings.Join(risks, ";"),
			})
		}
		return t, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
	}
}

// KnownQuery 是否为可导出的查询
func KnownQuery(name string) bool {
	switch name {
	case QueryRegionalCrops, QueryMarketPrices, QueryRiskAnalysis, QueryHarvestTimeline,
		QueryQualityMetrics, QueryCropTrends, QueryRecords:
		return true
	}
	return false
}

func roundQuality(q *repository.QualityStat) {
	if q == nil {
		return
	}
	q.Completeness = round(q.Completeness, 3)
	q.Accuracy = round(q.Accuracy, 3)
	q.Timeliness = round(q.Timeliness, 3)
	q.Overall = round(q.Overall, 3)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
