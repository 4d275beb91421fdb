package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(report *model.Report) error {
	return r.db.Create(report).Error
}

func (r *ReportRepository) GetByID(id int64) (*model.Report, error) {
	var report model.Report
	err := r.db.Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByIDAndAccount 仅返回属于该账户的报表
func (r *ReportRepository) GetByIDAndAccount(id, accountID int64) (*model.Report, error) {
	var report model.Report
	err := r.db.Where("id = ? AND account_id = ?", id, accountID).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListByAccount 分页查询账户的报表
func (r *ReportRepository) ListByAccount(accountID int64, reportType, status string, page, pageSize int) ([]model.Report, int64, error) {
	var reports []model.Report
	var total int64

	query := r.db.Model(&model.Report{}).Where("account_id = ?", accountID)
	if reportType != "" {
		query = query.Where("type = ?", reportType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&reports).Error
	return reports, total, err
}

// CountSince 账户某类型报表在指定时间之后的数量（不含失败）
func (r *ReportRepository) CountSince(accountID int64, reportType string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Report{}).
		Where("account_id = ? AND type = ? AND created_at >= ? AND status <> ?", accountID, reportType, since, model.ReportFailed).
		Count(&count).Error
	return count, err
}

func (r *ReportRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Report{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStatusIf 状态为 from 时才切换，返回是否切换成功
func (r *ReportRepository) UpdateStatusIf(id int64, from, to string) (bool, error) {
	tx := r.db.Model(&model.Report{}).Where("id = ? AND status = ?", id, from).Update("status", to)
	return tx.RowsAffected > 0, tx.Error
}

func (r *ReportRepository) IncrementDownload(id int64) error {
	return r.db.Model(&model.Report{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}

// ListExpired 已过期但仍标记为 ready 的报表
func (r *ReportRepository) ListExpired(now time.Time, limit int) ([]model.Report, error) {
	var reports []model.Report
	err := r.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.ReportReady, now).
		Limit(limit).
		Find(&reports).Error
	return reports, err
}
