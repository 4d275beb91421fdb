package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

type ContactHandler struct {
	contactService *service.ContactService
}

func NewContactHandler(contactService *service.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// Submit 提交访问申请
// POST /api/v1/contact
func (h *ContactHandler) Submit(c *gin.Context) {
	var req dto.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.contactService.Submit(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Thank you for your interest! We will contact you within 24 hours.", nil)
}

// Info GET /api/v1/contact/info
func (h *ContactHandler) Info(c *gin.Context) {
	response.Success(c, h.contactService.Info())
}
