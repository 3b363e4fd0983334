package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/models"

	"gorm.io/gorm"
)

// MchApplyRecordRepository 进件申请数据访问接口
type MchApplyRecordRepository interface {
	Create(record *models.MchApplyRecord) error
	GetByApplyID(applyID string) (*models.MchApplyRecord, error)
	GetByChannelApplyID(channelCode, channelApplyID string) (*models.MchApplyRecord, error)
	GetActive(mchNo, channelCode string) (*models.MchApplyRecord, error)
	List(filter MchApplyListFilter) ([]models.MchApplyRecord, int64, error)
	ListDueForSync(status int, limit int) ([]models.MchApplyRecord, error)
	Update(applyID string, updates map[string]interface{}) error
	MarkSynced(applyID string, at time.Time) error
	TransitionStatus(applyID string, fromStatus int, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormMchApplyRecordRepository
}

// GormMchApplyRecordRepository GORM 实现
type GormMchApplyRecordRepository struct {
	db *gorm.DB
}

// NewMchApplyRecordRepository 创建进件申请仓库
func NewMchApplyRecordRepository(db *gorm.DB) *GormMchApplyRecordRepository {
	return &GormMchApplyRecordRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMchApplyRecordRepository) WithTx(tx *gorm.DB) *GormMchApplyRecordRepository {
	if tx == nil {
		return r
	}
	return &GormMchApplyRecordRepository{db: tx}
}

// Create 创建申请记录，有效申请唯一键冲突时返回 ErrDuplicateActive
func (r *GormMchApplyRecordRepository) Create(record *models.MchApplyRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateActive
		}
		return err
	}
	return nil
}

// GetByApplyID 根据申请单号获取
func (r *GormMchApplyRecordRepository) GetByApplyID(applyID string) (*models.MchApplyRecord, error) {
	var record models.MchApplyRecord
	if err := r.db.Where("apply_id = ?", strings.TrimSpace(applyID)).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByChannelApplyID 根据渠道申请单号获取
func (r *GormMchApplyRecordRepository) GetByChannelApplyID(channelCode, channelApplyID string) (*models.MchApplyRecord, error) {
	channelApplyID = strings.TrimSpace(channelApplyID)
	if channelApplyID == "" {
		return nil, nil
	}
	var record models.MchApplyRecord
	err := r.db.Where("channel_code = ? AND channel_apply_id = ?", channelCode, channelApplyID).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetActive 获取 (商户号, 渠道) 当前占用唯一键的申请
func (r *GormMchApplyRecordRepository) GetActive(mchNo, channelCode string) (*models.MchApplyRecord, error) {
	var record models.MchApplyRecord
	if err := r.db.Where("active_key = ?", models.ActiveKeyFor(mchNo, channelCode)).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List 分页查询申请列表
func (r *GormMchApplyRecordRepository) List(filter MchApplyListFilter) ([]models.MchApplyRecord, int64, error) {
	query := r.db.Model(&models.MchApplyRecord{})
	if filter.MchNo != "" {
		query = query.Where("mch_no = ?", filter.MchNo)
	}
	if filter.IsvNo != "" {
		query = query.Where("isv_no = ?", filter.IsvNo)
	}
	if filter.ChannelCode != "" {
		query = query.Where("channel_code = ?", filter.ChannelCode)
	}
	if filter.ApplyStatus != nil {
		query = query.Where("apply_status = ?", *filter.ApplyStatus)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildKeywordCondition(r.db, []string{"apply_id", "mch_no", "channel_apply_id", "sub_mch_id"}, "apply_data", applyDataSearchPaths)
		query = query.Where(condition, repeatLikeArgs("%"+escapeLike(keyword)+"%", argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var records []models.MchApplyRecord
	if err := query.Order("id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListDueForSync 按状态查询待同步记录，从未同步的优先，其余按最近同步时间升序
func (r *GormMchApplyRecordRepository) ListDueForSync(status int, limit int) ([]models.MchApplyRecord, error) {
	query := r.db.Where("apply_status = ?", status).
		Order("CASE WHEN last_synced_at IS NULL THEN 0 ELSE 1 END").
		Order("last_synced_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []models.MchApplyRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSynced 记录渠道状态同步时间，不改动 updated_at
func (r *GormMchApplyRecordRepository) MarkSynced(applyID string, at time.Time) error {
	return r.db.Model(&models.MchApplyRecord{}).Where("apply_id = ?", applyID).UpdateColumn("last_synced_at", at).Error
}

// Update 更新申请字段
func (r *GormMchApplyRecordRepository) Update(applyID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	err := r.db.Model(&models.MchApplyRecord{}).Where("apply_id = ?", applyID).Updates(updates).Error
	if err != nil && IsUniqueViolation(err) {
		return ErrDuplicateActive
	}
	return err
}

// TransitionStatus 仅当当前状态为 fromStatus 时更新，返回是否命中
func (r *GormMchApplyRecordRepository) TransitionStatus(applyID string, fromStatus int, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.MchApplyRecord{}).
		Where("apply_id = ? AND apply_status = ?", applyID, fromStatus).
		Updates(updates)
	if result.Error != nil {
		if IsUniqueViolation(result.Error) {
			return false, ErrDuplicateActive
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
