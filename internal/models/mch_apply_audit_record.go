package models

import "time"

// MchApplyAuditRecord 进件审核记录
type MchApplyAuditRecord struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                  // 主键
	AuditID      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"audit_id"` // 审核ID
	ApplyID      string    `gorm:"type:varchar(32);index;not null" json:"apply_id"`       // 申请单号
	AuditType    int       `gorm:"not null" json:"audit_type"`                            // 审核类型（1 平台 2 渠道）
	AuditStatus  int       `gorm:"not null" json:"audit_status"`                          // 审核结论（1 通过 2 驳回）
	AuditOpinion string    `gorm:"type:text" json:"audit_opinion"`                        // 审核意见
	Auditor      string    `gorm:"type:varchar(64)" json:"auditor"`                       // 审核人
	AuditTime    time.Time `gorm:"index" json:"audit_time"`                               // 审核时间
	CreatedAt    time.Time `json:"created_at"`                                            // 创建时间
}

// TableName 指定表名
func (MchApplyAuditRecord) TableName() string {
	return "mch_apply_audit_records"
}
