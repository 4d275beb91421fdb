package model

import (
	"math"
	"math/rand"
	"time"
)

var Regions = []string{"north-central", "north-east", "north-west", "south-east", "south-south", "south-west"}

var CropTypes = []string{"rice", "maize", "cassava", "yam", "beans", "millet", "sorghum", "cocoa", "cotton", "groundnut", "other"}

var RiskTypes = []string{"drought", "flood", "pests", "disease", "market-price", "conflict", "other"}

// RiskSeverityScore 风险等级对应的分值
var RiskSeverityScore = map[string]int{
	"low":    1,
	"medium": 2,
	"high":   3,
	"severe": 4,
}

const (
	ValidationPending   = "pending"
	ValidationValidated = "validated"
	ValidationRejected  = "rejected"
)

// AgriRecord 经匿名化处理的农场记录
type AgriRecord struct {
	ID                  int64        `gorm:"primaryKey" json:"id"`
	SourceID            string       `gorm:"size:64;not null;index" json:"source_id"`
	CooperativeID       string       `gorm:"size:64;not null" json:"cooperative_id"`
	Region              string       `gorm:"size:20;not null;index:idx_region_crop" json:"region"`
	State               string       `gorm:"size:50;not null" json:"state"`
	LGA                 string       `gorm:"column:lga;size:80;not null" json:"lga"`
	CropType            string       `gorm:"size:20;not null;index:idx_region_crop" json:"crop_type"`
	PlantingDate        time.Time    `gorm:"not null;index" json:"planting_date"`
	ExpectedHarvestDate time.Time    `gorm:"not null;index" json:"expected_harvest_date"`
	ActualHarvestDate   *time.Time   `json:"actual_harvest_date,omitempty"`
	YieldMin            float64      `gorm:"not null" json:"yield_min"`
	YieldMax            float64      `gorm:"not null" json:"yield_max"`
	YieldUnit           string       `gorm:"size:20;default:tons/hectare" json:"yield_unit"`
	FertilizerType      string       `gorm:"size:20" json:"fertilizer_type,omitempty"`
	FertilizerQuantity  float64      `json:"fertilizer_quantity,omitempty"`
	SeedVariety         string       `gorm:"size:50" json:"seed_variety,omitempty"`
	SeedQuantity        float64      `json:"seed_quantity,omitempty"`
	PesticideType       string       `gorm:"size:20" json:"pesticide_type,omitempty"`
	PesticideQuantity   float64      `json:"pesticide_quantity,omitempty"`
	MarketPrice         float64      `json:"market_price"`
	MarketCurrency      string       `gorm:"size:8;default:NGN" json:"market_currency"`
	MarketUnit          string       `gorm:"size:10;default:kg" json:"market_unit"`
	MarketName          string       `gorm:"size:100;index" json:"market_name,omitempty"`
	MarketDate          *time.Time   `json:"market_date,omitempty"`
	QualityCompleteness float64      `gorm:"default:0.8" json:"quality_completeness"`
	QualityAccuracy     float64      `gorm:"default:0.8" json:"quality_accuracy"`
	QualityTimeliness   float64      `gorm:"default:0.8" json:"quality_timeliness"`
	QualityOverall      float64      `gorm:"default:0.8;index" json:"quality_overall"`
	IsAnonymized        bool         `gorm:"default:true" json:"is_anonymized"`
	ProcessingDate      time.Time    `json:"processing_date"`
	LastValidated       *time.Time   `json:"last_validated,omitempty"`
	ValidationStatus    string       `gorm:"size:20;default:pending" json:"validation_status"`
	RiskFactors         []RiskFactor `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE" json:"risk_factors"`
	CreatedAt           time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (AgriRecord) TableName() string {
	return "agricultural_records"
}

// RiskFactor 记录上的风险因素
type RiskFactor struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	RecordID    int64  `gorm:"not null;index" json:"record_id"`
	Type        string `gorm:"size:20;not null;index" json:"type"`
	Severity    string `gorm:"size:10;not null" json:"severity"`
	Description string `gorm:"size:500" json:"description,omitempty"`
}

func (RiskFactor) TableName() string {
	return "risk_factors"
}

// Validate 校验记录一致性，并重新计算综合质量分
func (r *AgriRecord) Validate() []string {
	var errs []string
	if !r.ExpectedHarvestDate.After(r.PlantingDate) {
		errs = append(errs, "expected harvest date must be after planting date")
	}
	if r.YieldMin >= r.YieldMax {
		errs = append(errs, "minimum yield must be less than maximum yield")
	}

	r.QualityOverall = round2((r.QualityCompleteness + r.QualityAccuracy + r.QualityTimeliness) / 3)
	return errs
}

// Anonymize 产量加入 ±2.5% 噪声并保留两位小数
func (r *AgriRecord) Anonymize(rnd *rand.Rand, now time.Time) {
	const noise = 0.05
	r.YieldMin = round2(r.YieldMin * (1 + (rnd.Float64()-0.5)*noise))
	r.YieldMax = round2(r.YieldMax * (1 + (rnd.Float64()-0.5)*noise))
	r.IsAnonymized = true
	r.ProcessingDate = now
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
