package dto

// InsightsQuery 聚合查询的通用过滤参数
type InsightsQuery struct {
	Region      string `form:"region" json:"region,omitempty"`
	CropType    string `form:"crop_type" json:"crop_type,omitempty"`
	TimeRange   string `form:"time_range" json:"time_range,omitempty"` // 1m, 3m, 6m, 1y
	StartDate   string `form:"start_date" json:"start_date,omitempty"` // 2006-01-02
	EndDate     string `form:"end_date" json:"end_date,omitempty"`
	Granularity string `form:"granularity" json:"granularity,omitempty"` // daily, weekly, monthly
	RiskType    string `form:"risk_type" json:"risk_type,omitempty"`
	Severity    string `form:"severity" json:"severity,omitempty"`
}

// RiskFactorInput 提交记录时的风险因素
type RiskFactorInput struct {
	Type        string `json:"type" validate:"required,oneof=drought flood pests disease market-price conflict other"`
	Severity    string `json:"severity" validate:"required,oneof=low medium high severe"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

// SubmitRecordRequest 提交一条农场记录
type SubmitRecordRequest struct {
	SourceID            string            `json:"source_id" validate:"required,max=64"`
	CooperativeID       string            `json:"cooperative_id" validate:"required,max=64"`
	Region              string            `json:"region" validate:"required,oneof=north-central north-east north-west south-east south-south south-west"`
	State               string            `json:"state" validate:"required,max=50"`
	LGA                 string            `json:"lga" validate:"required,max=80"`
	CropType            string            `json:"crop_type" validate:"required,oneof=rice maize cassava yam beans millet sorghum cocoa cotton groundnut other"`
	PlantingDate        string            `json:"planting_date" validate:"required,datetime=2006-01-02"`
	ExpectedHarvestDate string            `json:"expected_harvest_date" validate:"required,datetime=2006-01-02"`
	ActualHarvestDate   string            `json:"actual_harvest_date" validate:"omitempty,datetime=2006-01-02"`
	YieldMin            float64           `json:"yield_min" validate:"gte=0"`
	YieldMax            float64           `json:"yield_max" validate:"gt=0"`
	YieldUnit           string            `json:"yield_unit" validate:"omitempty,oneof=tons/hectare kg/hectare bags/hectare"`
	FertilizerType      string            `json:"fertilizer_type" validate:"omitempty,oneof=organic inorganic mixed none"`
	FertilizerQuantity  float64           `json:"fertilizer_quantity" validate:"gte=0"`
	SeedVariety         string            `json:"seed_variety" validate:"omitempty,max=50"`
	SeedQuantity        float64           `json:"seed_quantity" validate:"gte=0"`
	PesticideType       string            `json:"pesticide_type" validate:"omitempty,oneof=organic chemical integrated none"`
	PesticideQuantity   float64           `json:"pesticide_quantity" validate:"gte=0"`
	MarketPrice         float64           `json:"market_price" validate:"gte=0"`
	MarketUnit          string            `json:"market_unit" validate:"omitempty,oneof=kg ton bag"`
	MarketName          string            `json:"market_name" validate:"omitempty,max=100"`
	MarketDate          string            `json:"market_date" validate:"omitempty,datetime=2006-01-02"`
	QualityCompleteness float64           `json:"quality_completeness" validate:"gte=0,lte=1"`
	QualityAccuracy     float64           `json:"quality_accuracy" validate:"gte=0,lte=1"`
	QualityTimeliness   float64           `json:"quality_timeliness" validate:"gte=0,lte=1"`
	RiskFactors         []RiskFactorInput `json:"risk_factors" validate:"omitempty,max=10,dive"`
}

// SubmitRecordResponse 提交结果
type SubmitRecordResponse struct {
	RecordID         int64   `json:"record_id"`
	ValidationStatus string  `json:"validation_status"`
	QualityOverall   float64 `json:"quality_overall"`
}
