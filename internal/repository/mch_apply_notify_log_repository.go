package repository

import (
	"github.com/paynext/mchapply/internal/models"

	"gorm.io/gorm"
)

// MchApplyNotifyLogRepository 渠道状态应用日志数据访问接口
type MchApplyNotifyLogRepository interface {
	Claim(log *models.MchApplyNotifyLog) (bool, error)
	ListByApplyID(applyID string) ([]models.MchApplyNotifyLog, error)
	WithTx(tx *gorm.DB) *GormMchApplyNotifyLogRepository
}

// GormMchApplyNotifyLogRepository GORM 实现
type GormMchApplyNotifyLogRepository struct {
	db *gorm.DB
}

// NewMchApplyNotifyLogRepository 创建状态应用日志仓库
func NewMchApplyNotifyLogRepository(db *gorm.DB) *GormMchApplyNotifyLogRepository {
	return &GormMchApplyNotifyLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMchApplyNotifyLogRepository) WithTx(tx *gorm.DB) *GormMchApplyNotifyLogRepository {
	if tx == nil {
		return r
	}
	return &GormMchApplyNotifyLogRepository{db: tx}
}

// Claim 写入 (渠道, 渠道申请单号, 渠道状态) 日志；已存在时返回 false
func (r *GormMchApplyNotifyLogRepository) Claim(log *models.MchApplyNotifyLog) (bool, error) {
	if err := r.db.Create(log).Error; err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByApplyID 查询申请的状态应用日志
func (r *GormMchApplyNotifyLogRepository) ListByApplyID(applyID string) ([]models.MchApplyNotifyLog, error) {
	var logs []models.MchApplyNotifyLog
	if err := r.db.Where("apply_id = ?", applyID).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
