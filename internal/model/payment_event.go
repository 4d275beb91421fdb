package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PaymentEvent 支付回调与人工确认的审计记录
type PaymentEvent struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Provider  string         `gorm:"size:20;not null;index" json:"provider"`
	Event     string         `gorm:"size:60;not null" json:"event"`
	Reference string         `gorm:"size:100;index" json:"reference"`
	Outcome   string         `gorm:"size:20" json:"outcome"`
	Applied   bool           `json:"applied"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}
