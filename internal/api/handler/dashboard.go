package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/repository"
	"github.com/agripulse/agri_go_server/internal/service"
)

type DashboardHandler struct {
	insights *service.InsightsService
}

func NewDashboardHandler(insights *service.InsightsService) *DashboardHandler {
	return &DashboardHandler{insights: insights}
}

// bindFilter 解析查询串中的过滤条件，失败时已写入响应
func bindFilter(c *gin.Context, defaultRange string) (*dto.InsightsQuery, repository.AgriFilter, bool) {
	var q dto.InsightsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return nil, repository.AgriFilter{}, false
	}

	f, err := service.ParseFilter(&q, defaultRange, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return nil, repository.AgriFilter{}, false
	}
	return &q, f, true
}

// Overview 仪表盘总览
// GET /api/v1/dashboard/overview
func (h *DashboardHandler) Overview(c *gin.Context) {
	_, f, ok := bindFilter(c, "6m")
	if !ok {
		return
	}

	data, err := h.insights.Overview(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, data)
}

// CropTrends 种植趋势
// GET /api/v1/dashboard/crops/trends
func (h *DashboardHandler) CropTrends(c *gin.Context) {
	q, f, ok := bindFilter(c, "")
	if !ok {
		return
	}

	granularity, err := service.ParseGranularity(q.Granularity)
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := h.insights.CropTrends(c.Request.Context(), f, granularity)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, data)
}

// MarketIntelligence 市场行情
// GET /api/v1/dashboard/market/intelligence
func (h *DashboardHandler) MarketIntelligence(c *gin.Context) {
	_, f, ok := bindFilter(c, "3m")
	if !ok {
		return
	}

	data, err := h.insights.MarketIntelligence(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, data)
}

// RiskMonitoring 风险监测
// GET /api/v1/dashboard/risk/monitoring
func (h *DashboardHandler) RiskMonitoring(c *gin.Context) {
	_, f, ok := bindFilter(c, "")
	if !ok {
		return
	}

	data, err := h.insights.RiskMonitoring(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, data)
}
