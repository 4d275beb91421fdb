package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// NormalizeEmail 邮箱统一小写存储，保证大小写不敏感的唯一性
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *AccountRepository) Create(account *model.Account) error {
	account.Email = NormalizeEmail(account.Email)
	return r.db.Create(account).Error
}

func (r *AccountRepository) GetByID(id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByEmail(email string) (*model.Account, error) {
	var account model.Account
	err := r.db.Where("email = ?", NormalizeEmail(email)).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByVerificationCode(code string) (*model.Account, error) {
	var account model.Account
	err := r.db.Where("verification_code = ?", code).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) Update(account *model.Account) error {
	return r.db.Save(account).Error
}

func (r *AccountRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Account{}).Where("id = ?", id).Updates(fields).Error
}

func (r *AccountRepository) TouchLogin(id int64, at time.Time) error {
	return r.db.Model(&model.Account{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

func (r *AccountRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Account{}).Where("email = ?", NormalizeEmail(email)).Count(&count).Error
	return count > 0, err
}
