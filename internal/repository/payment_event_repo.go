package repository

import (
	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
)

type PaymentEventRepository struct {
	db *gorm.DB
}

func NewPaymentEventRepository(db *gorm.DB) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(event *model.PaymentEvent) error {
	return r.db.Create(event).Error
}

func (r *PaymentEventRepository) ListByReference(reference string) ([]model.PaymentEvent, error) {
	var events []model.PaymentEvent
	err := r.db.Where("reference = ?", reference).Order("id ASC").Find(&events).Error
	return events, err
}
