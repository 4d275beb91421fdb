package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

// DataHandler 计量的数据 API
type DataHandler struct {
	insights *service.InsightsService
}

func NewDataHandler(insights *service.InsightsService) *DataHandler {
	return &DataHandler{insights: insights}
}

// RegionalCrops GET /api/v1/data/crops/regions
func (h *DataHandler) RegionalCrops(c *gin.Context) {
	_, f, ok := bindFilter(c, "")
	if !ok {
		return
	}

	rows, err := h.insights.RegionalCrops(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"regions": rows, "total": len(rows)})
}

// MarketPrices GET /api/v1/data/market/prices
func (h *DataHandler) MarketPrices(c *gin.Context) {
	_, f, ok := bindFilter(c, "6m")
	if !ok {
		return
	}

	rows, err := h.insights.MarketPrices(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"prices": rows, "total": len(rows)})
}

// RiskAnalysis GET /api/v1/data/risk/analysis
func (h *DataHandler) RiskAnalysis(c *gin.Context) {
	_, f, ok := bindFilter(c, "")
	if !ok {
		return
	}

	rows, err := h.insights.RiskAnalysis(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"risks": rows, "total": len(rows)})
}

// HarvestTimeline GET /api/v1/data/harvest/timeline
func (h *DataHandler) HarvestTimeline(c *gin.Context) {
	_, f, ok := bindFilter(c, "")
	if !ok {
		return
	}

	rows, err := h.insights.HarvestTimeline(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"timeline": rows, "total": len(rows)})
}

// QualityMetrics GET /api/v1/data/quality/metrics
func (h *DataHandler) QualityMetrics(c *gin.Context) {
	_, f, ok := bindFilter(c, "")
	if !ok {
		return
	}

	data, err := h.insights.QualityMetrics(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, data)
}

// Submit 提交农场记录
// POST /api/v1/data/submit
func (h *DataHandler) Submit(c *gin.Context) {
	var req dto.SubmitRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.insights.Submit(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, "Data submitted successfully", resp)
}
