package model

import (
	"time"
)

// 账户用途
var UseCases = []string{
	"agribusiness",
	"research",
	"ngo",
	"input-supplier",
	"policy",
	"investment",
	"other",
}

type Account struct {
	ID                    int64      `gorm:"primaryKey" json:"id"`
	Email                 string     `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash          string     `gorm:"size:255;not null" json:"-"`
	Name                  string     `gorm:"size:100;not null" json:"name"`
	Organization          string     `gorm:"size:150" json:"organization"`
	UseCase               string     `gorm:"size:30;default:other" json:"use_case"`
	IsVerified            bool       `gorm:"default:false" json:"is_verified"`
	VerificationCode      *string    `gorm:"size:100;index" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
