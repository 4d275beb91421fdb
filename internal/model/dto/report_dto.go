package dto

import (
	"github.com/agripulse/agri_go_server/internal/model"
)

// CreateReportRequest 创建报表/数据导出
type CreateReportRequest struct {
	Type    string        `json:"type" binding:"required,oneof=monthly_insights data_export regional_deep_dive crop_trends risk_analysis"`
	Title   string        `json:"title" binding:"omitempty,max=200"`
	Query   string        `json:"query" binding:"omitempty,max=40"`
	Filters InsightsQuery `json:"filters"`
}

// CustomReportRequest 企业定制报表
type CustomReportRequest struct {
	Title       string        `json:"title" binding:"required,max=200"`
	Description string        `json:"description" binding:"omitempty,max=2000"`
	Queries     []string      `json:"queries" binding:"omitempty,max=8,dive,max=40"`
	Filters     InsightsQuery `json:"filters"`
}

// ReportListRequest 报表列表参数
type ReportListRequest struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	Type     string `form:"type"`
	Status   string `form:"status"`
}

// ReportDownload 下载信息
type ReportDownload struct {
	Report      *model.Report `json:"report"`
	DownloadURL string        `json:"download_url,omitempty"`
	FileName    string        `json:"file_name"`
	FilePath    string        `json:"-"` // 本地存储时由 handler 直接返回文件
}

// ReportListResponse 报表列表
type ReportListResponse struct {
	Reports  []model.Report `json:"reports"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ReportParameters 报表生成参数，存于 reports.parameters
type ReportParameters struct {
	Queries     []string      `json:"queries"`
	Filters     InsightsQuery `json:"filters"`
	Description string        `json:"description,omitempty"`
}

// ReportSummary 生成结果摘要
type ReportSummary struct {
	Queries      []string       `json:"queries"`
	TotalRecords int            `json:"total_records"`
	RowsByQuery  map[string]int `json:"rows_by_query"`
}
