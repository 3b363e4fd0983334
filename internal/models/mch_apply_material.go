package models

import "time"

// MchApplyMaterial 进件资料
type MchApplyMaterial struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                     // 主键
	MaterialID   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"material_id"` // 资料ID
	ApplyID      string    `gorm:"type:varchar(32);index;not null" json:"apply_id"`          // 申请单号
	MaterialType string    `gorm:"type:varchar(32);not null" json:"material_type"`           // 资料类型
	MaterialName string    `gorm:"type:varchar(128)" json:"material_name"`                   // 资料名称
	FileURL      string    `gorm:"type:text;not null" json:"file_url"`                       // 文件地址
	FileName     string    `gorm:"type:varchar(255)" json:"file_name"`                       // 文件名
	IsRequired   bool      `gorm:"not null;default:false" json:"is_required"`                // 是否必填
	CreatedAt    time.Time `json:"created_at"`                                               // 创建时间
}

// TableName 指定表名
func (MchApplyMaterial) TableName() string {
	return "mch_apply_materials"
}
