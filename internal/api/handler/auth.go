package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/response"
	"github.com/agripulse/agri_go_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register 账户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, "User registered successfully. Please check your email to verify your account.", resp)
}

// Login 账户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Login successful", resp)
}

// VerifyEmail 验证邮箱
// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.VerifyEmail(req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Email verified successfully", resp)
}

// Me 当前账户
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	info, err := h.authService.Me(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, info)
}

// UpdateProfile 更新账户信息
// PUT /api/v1/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.authService.UpdateProfile(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Profile updated successfully", info)
}
