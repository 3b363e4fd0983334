package repository

import (
	"errors"
	"strings"

	"github.com/paynext/mchapply/internal/models"

	"gorm.io/gorm"
)

// ChannelApplyConfigRepository 渠道进件配置数据访问接口
type ChannelApplyConfigRepository interface {
	Create(config *models.ChannelApplyConfig) error
	GetByChannelCode(channelCode string) (*models.ChannelApplyConfig, error)
	List(enabledOnly bool) ([]models.ChannelApplyConfig, error)
	Update(config *models.ChannelApplyConfig) error
	SetEnabled(channelCode string, enabled bool) (bool, error)
	WithTx(tx *gorm.DB) *GormChannelApplyConfigRepository
}

// GormChannelApplyConfigRepository GORM 实现
type GormChannelApplyConfigRepository struct {
	db *gorm.DB
}

// NewChannelApplyConfigRepository 创建渠道进件配置仓库
func NewChannelApplyConfigRepository(db *gorm.DB) *GormChannelApplyConfigRepository {
	return &GormChannelApplyConfigRepository{db: db}
}

// WithTx 绑定事务
func (r *GormChannelApplyConfigRepository) WithTx(tx *gorm.DB) *GormChannelApplyConfigRepository {
	if tx == nil {
		return r
	}
	return &GormChannelApplyConfigRepository{db: tx}
}

// Create 创建配置
func (r *GormChannelApplyConfigRepository) Create(config *models.ChannelApplyConfig) error {
	return r.db.Create(config).Error
}

// GetByChannelCode 根据渠道编码获取配置
func (r *GormChannelApplyConfigRepository) GetByChannelCode(channelCode string) (*models.ChannelApplyConfig, error) {
	var config models.ChannelApplyConfig
	code := strings.ToUpper(strings.TrimSpace(channelCode))
	if err := r.db.Where("channel_code = ?", code).First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// List 查询配置列表
func (r *GormChannelApplyConfigRepository) List(enabledOnly bool) ([]models.ChannelApplyConfig, error) {
	query := r.db.Model(&models.ChannelApplyConfig{})
	if enabledOnly {
		query = query.Where("is_enabled = ?", true)
	}
	var configs []models.ChannelApplyConfig
	if err := query.Order("id ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Update 保存配置
func (r *GormChannelApplyConfigRepository) Update(config *models.ChannelApplyConfig) error {
	return r.db.Save(config).Error
}

// SetEnabled 启用或停用渠道，返回是否命中
func (r *GormChannelApplyConfigRepository) SetEnabled(channelCode string, enabled bool) (bool, error) {
	result := r.db.Model(&models.ChannelApplyConfig{}).
		Where("channel_code = ?", strings.ToUpper(strings.TrimSpace(channelCode))).
		Update("is_enabled", enabled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
