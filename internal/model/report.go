package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ReportMonthlyInsights  = "monthly_insights"
	ReportCustomEnterprise = "custom_enterprise"
	ReportRegionalDeepDive = "regional_deep_dive"
	ReportCropTrends       = "crop_trends"
	ReportRiskAnalysis     = "risk_analysis"
	ReportDataExport       = "data_export"
)

const (
	ReportPending    = "pending"
	ReportGenerating = "generating"
	ReportReady      = "ready"
	ReportFailed     = "failed"
	ReportExpired    = "expired"
)

// Report 报表/数据导出任务
type Report struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	AccountID      int64          `gorm:"not null;index:idx_report_account_status" json:"account_id"`
	Title          string         `gorm:"size:200;not null" json:"title"`
	Type           string         `gorm:"size:30;not null;index" json:"type"`
	Format         string         `gorm:"size:10;default:csv" json:"format"`
	Query          string         `gorm:"size:40" json:"query"`
	Parameters     datatypes.JSON `json:"parameters"`
	Status         string         `gorm:"size:20;default:pending;index:idx_report_account_status" json:"status"`
	FileKey        string         `gorm:"size:300" json:"-"`
	FileURL        string         `gorm:"size:500" json:"file_url,omitempty"`
	FileSize       int64          `json:"file_size"`
	DownloadCount  int            `gorm:"default:0" json:"download_count"`
	TotalRecords   int            `json:"total_records"`
	Summary        datatypes.JSON `json:"summary,omitempty"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	GenerationTime int64          `json:"generation_time_ms"`
	GeneratedAt    *time.Time     `json:"generated_at,omitempty"`
	ExpiresAt      *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Report) TableName() string {
	return "reports"
}

// IsExpired 是否已过期
func (r *Report) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// CanDownload 已生成且未过期
func (r *Report) CanDownload(now time.Time) bool {
	return r.Status == ReportReady && !r.IsExpired(now)
}
