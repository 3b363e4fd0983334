package models

import (
	"time"
)

// MchApplyRecord 商户进件申请记录
type MchApplyRecord struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                  // 主键
	ApplyID        string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"apply_id"` // 申请单号
	MchNo          string     `gorm:"type:varchar(64);index;not null" json:"mch_no"`         // 商户号
	IsvNo          string     `gorm:"type:varchar(64);index" json:"isv_no"`                  // 服务商号
	ChannelCode    string     `gorm:"type:varchar(32);index;not null" json:"channel_code"`   // 渠道编码
	ChannelApplyID *string    `gorm:"type:varchar(64);index" json:"channel_apply_id"`        // 渠道申请单号
	ApplyStatus    int        `gorm:"index;not null;default:0" json:"apply_status"`          // 申请状态
	ChannelState   string     `gorm:"type:varchar(64)" json:"channel_state"`                 // 最近一次渠道原始状态
	SubMchID       string     `gorm:"type:varchar(64)" json:"sub_mch_id"`                    // 渠道子商户号
	RejectReason   string     `gorm:"type:text" json:"reject_reason"`                        // 驳回原因
	ApplyData      JSON       `gorm:"type:json" json:"apply_data"`                           // 申请资料快照
	AuditInfo      JSON       `gorm:"type:json" json:"audit_info"`                           // 审核信息快照
	ActiveKey      *string    `gorm:"type:varchar(128);uniqueIndex" json:"-"`                // 有效申请唯一键（驳回后置空）
	SubmitRound    int        `gorm:"not null;default:1" json:"submit_round"`                // 提交轮次（重新提交递增）
	SubmitTime     *time.Time `gorm:"index" json:"submit_time"`                              // 提交时间
	LastSyncedAt   *time.Time `gorm:"index" json:"last_synced_at"`                           // 最近一次渠道状态同步时间
	AuditTime      *time.Time `json:"audit_time"`                                            // 审核时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`                                            // 更新时间
}

// TableName 指定表名
func (MchApplyRecord) TableName() string {
	return "mch_apply_records"
}

// ActiveKeyFor 生成 (商户号, 渠道) 有效申请唯一键
func ActiveKeyFor(mchNo, channelCode string) string {
	return mchNo + ":" + channelCode
}

// ChannelApplyIDValue 返回渠道申请单号，未分配时为空串
func (r *MchApplyRecord) ChannelApplyIDValue() string {
	if r == nil || r.ChannelApplyID == nil {
		return ""
	}
	return *r.ChannelApplyID
}

// Round 返回提交轮次，历史数据未填写时视为第 1 轮
func (r *MchApplyRecord) Round() int {
	if r == nil || r.SubmitRound < 1 {
		return 1
	}
	return r.SubmitRound
}
