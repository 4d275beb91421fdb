package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

type ReportHandler struct {
	reportService *service.ReportService
}

func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Create 创建报表或数据导出
// POST /api/v1/reports
func (h *ReportHandler) Create(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	report, err := h.reportService.Create(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, "Report generation started", report)
}

// CreateCustom 企业定制报表
// POST /api/v1/reports/custom
func (h *ReportHandler) CreateCustom(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.CustomReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	report, err := h.reportService.CreateCustom(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, "Custom report request submitted", report)
}

// List 报表列表
// GET /api/v1/reports
func (h *ReportHandler) List(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.reportService.List(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessPage(c, resp.Total, resp.Page, resp.PageSize, resp.Reports)
}

// Get 报表详情
// GET /api/v1/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	report, err := h.reportService.Get(id, reportID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, report)
}

// Download 下载报表。本地存储直接返回文件，OSS 返回签名链接
// GET /api/v1/reports/:id/download
func (h *ReportHandler) Download(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	dl, err := h.reportService.Download(id, reportID)
	if err != nil {
		respondError(c, err)
		return
	}

	if dl.FilePath != "" {
		c.FileAttachment(dl.FilePath, dl.FileName)
		return
	}

	response.Success(c, dl)
}

func reportIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid report id")
		return 0, false
	}
	return id, true
}
