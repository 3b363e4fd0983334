package repository

import "time"

// MchApplyListFilter 查询进件申请列表的过滤条件
type MchApplyListFilter struct {
	Page        int
	PageSize    int
	MchNo       string
	IsvNo       string
	ChannelCode string
	Keyword     string // 匹配申请单号、商户号、渠道单号及商户名称
	ApplyStatus *int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
