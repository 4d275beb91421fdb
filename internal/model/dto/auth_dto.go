package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email,max=120"`
	Password     string `json:"password" binding:"required,min=8,max=64"`
	Name         string `json:"name" binding:"required,min=2,max=100"`
	Organization string `json:"organization" binding:"omitempty,max=150"`
	UseCase      string `json:"use_case" binding:"omitempty,oneof=agribusiness research ngo input-supplier policy investment other"`
}

// AuthResponse 注册/登录/验证邮箱响应
type AuthResponse struct {
	Token   string       `json:"token"`
	Plan    string       `json:"plan"`
	Account *AccountInfo `json:"account"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailRequest 邮箱验证请求
type VerifyEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

// AccountInfo 账户信息（返回给前端）
type AccountInfo struct {
	ID           int64             `json:"id"`
	Email        string            `json:"email"`
	Name         string            `json:"name"`
	Organization string            `json:"organization"`
	UseCase      string            `json:"use_case"`
	IsVerified   bool              `json:"is_verified"`
	Subscription *SubscriptionInfo `json:"subscription,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty"`
}

// UpdateProfileRequest 更新账户信息请求
type UpdateProfileRequest struct {
	Name         *string `json:"name,omitempty" binding:"omitempty,min=2,max=100"`
	Organization *string `json:"organization,omitempty" binding:"omitempty,max=150"`
	UseCase      *string `json:"use_case,omitempty" binding:"omitempty,oneof=agribusiness research ngo input-supplier policy investment other"`
}
