package repository

import (
	"github.com/paynext/mchapply/internal/models"

	"gorm.io/gorm"
)

// MchApplyMaterialRepository 进件资料数据访问接口
type MchApplyMaterialRepository interface {
	CreateBatch(materials []models.MchApplyMaterial) error
	ListByApplyID(applyID string) ([]models.MchApplyMaterial, error)
	CountByApplyID(applyID string) (int64, error)
	DeleteByApplyID(applyID string) error
	WithTx(tx *gorm.DB) *GormMchApplyMaterialRepository
}

// GormMchApplyMaterialRepository GORM 实现
type GormMchApplyMaterialRepository struct {
	db *gorm.DB
}

// NewMchApplyMaterialRepository 创建进件资料仓库
func NewMchApplyMaterialRepository(db *gorm.DB) *GormMchApplyMaterialRepository {
	return &GormMchApplyMaterialRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMchApplyMaterialRepository) WithTx(tx *gorm.DB) *GormMchApplyMaterialRepository {
	if tx == nil {
		return r
	}
	return &GormMchApplyMaterialRepository{db: tx}
}

// CreateBatch 批量写入资料
func (r *GormMchApplyMaterialRepository) CreateBatch(materials []models.MchApplyMaterial) error {
	if len(materials) == 0 {
		return nil
	}
	return r.db.Create(&materials).Error
}

// ListByApplyID 查询申请的全部资料
func (r *GormMchApplyMaterialRepository) ListByApplyID(applyID string) ([]models.MchApplyMaterial, error) {
	var materials []models.MchApplyMaterial
	if err := r.db.Where("apply_id = ?", applyID).Order("id ASC").Find(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

// CountByApplyID 统计申请资料数量
func (r *GormMchApplyMaterialRepository) CountByApplyID(applyID string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.MchApplyMaterial{}).Where("apply_id = ?", applyID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByApplyID 删除申请的全部资料
func (r *GormMchApplyMaterialRepository) DeleteByApplyID(applyID string) error {
	return r.db.Where("apply_id = ?", applyID).Delete(&models.MchApplyMaterial{}).Error
}
