package models

import "time"

// ChannelApplyConfig 渠道进件配置
type ChannelApplyConfig struct {
	ID                uint        `gorm:"primarykey" json:"id"`                                      // 主键
	ConfigID          string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"config_id"`    // 配置ID
	ChannelCode       string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"channel_code"` // 渠道编码
	ConfigName        string      `gorm:"type:varchar(128);not null" json:"config_name"`             // 配置名称
	RequiredMaterials StringArray `gorm:"type:json" json:"required_materials"`                       // 平台要求的资料类型
	ConfigParams      JSON        `gorm:"type:json" json:"config_params"`                            // 渠道参数
	IsEnabled         bool        `gorm:"not null;default:true" json:"is_enabled"`                   // 是否启用
	Remark            string      `gorm:"type:varchar(255)" json:"remark"`                           // 备注
	CreatedAt         time.Time   `json:"created_at"`                                                // 创建时间
	UpdatedAt         time.Time   `json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (ChannelApplyConfig) TableName() string {
	return "channel_apply_configs"
}
