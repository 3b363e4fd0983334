package repository

import (
	"github.com/paynext/mchapply/internal/models"

	"gorm.io/gorm"
)

// MchApplyAuditRecordRepository 进件审核记录数据访问接口
type MchApplyAuditRecordRepository interface {
	Create(record *models.MchApplyAuditRecord) error
	ListByApplyID(applyID string) ([]models.MchApplyAuditRecord, error)
	WithTx(tx *gorm.DB) *GormMchApplyAuditRecordRepository
}

// GormMchApplyAuditRecordRepository GORM 实现
type GormMchApplyAuditRecordRepository struct {
	db *gorm.DB
}

// NewMchApplyAuditRecordRepository 创建审核记录仓库
func NewMchApplyAuditRecordRepository(db *gorm.DB) *GormMchApplyAuditRecordRepository {
	return &GormMchApplyAuditRecordRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMchApplyAuditRecordRepository) WithTx(tx *gorm.DB) *GormMchApplyAuditRecordRepository {
	if tx == nil {
		return r
	}
	return &GormMchApplyAuditRecordRepository{db: tx}
}

// Create 写入审核记录
func (r *GormMchApplyAuditRecordRepository) Create(record *models.MchApplyAuditRecord) error {
	return r.db.Create(record).Error
}

// ListByApplyID 按时间顺序查询申请的审核记录
func (r *GormMchApplyAuditRecordRepository) ListByApplyID(applyID string) ([]models.MchApplyAuditRecord, error) {
	var records []models.MchApplyAuditRecord
	if err := r.db.Where("apply_id = ?", applyID).Order("audit_time ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
