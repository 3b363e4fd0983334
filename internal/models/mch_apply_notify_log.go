package models

import "time"

// MchApplyNotifyLog 渠道状态变更应用日志，(渠道, 渠道申请单号, 渠道状态, 提交轮次) 唯一
type MchApplyNotifyLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	ChannelCode    string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_apply_notify_state,priority:1" json:"channel_code"`
	ChannelApplyID string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_apply_notify_state,priority:2" json:"channel_apply_id"`
	ChannelState   string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_apply_notify_state,priority:3" json:"channel_state"`
	SubmitRound    int       `gorm:"not null;default:1;uniqueIndex:uk_apply_notify_state,priority:4" json:"submit_round"`
	ApplyID        string    `gorm:"type:varchar(32);index" json:"apply_id"`
	Source         string    `gorm:"type:varchar(16);not null" json:"source"`
	Payload        string    `gorm:"type:text" json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (MchApplyNotifyLog) TableName() string {
	return "mch_apply_notify_logs"
}
