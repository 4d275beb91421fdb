package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

type UsageHandler struct {
	gate *service.EntitlementGate
}

func NewUsageHandler(gate *service.EntitlementGate) *UsageHandler {
	return &UsageHandler{gate: gate}
}

// GetUsage 当前周期用量与限额
// GET /api/v1/user/usage
func (h *UsageHandler) GetUsage(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	sub, err := h.gate.Snapshot(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, service.BuildSubscriptionInfo(sub))
}
