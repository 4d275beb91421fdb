package dto

// ContactRequest 联系/申请访问
type ContactRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=100"`
	Email        string `json:"email" binding:"required,email"`
	Organization string `json:"organization" binding:"required,max=150"`
	UseCase      string `json:"use_case" binding:"required,oneof=agribusiness research ngo input-supplier policy investment other"`
	Message      string `json:"message" binding:"omitempty,max=1000"`
}

// ContactInfo 公开联系方式
type ContactInfo struct {
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Office string `json:"office"`
	Hours  string `json:"hours"`
}
