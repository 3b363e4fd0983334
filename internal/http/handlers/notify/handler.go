package notify

import (
	"context"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/provider"
	"github.com/paynext/mchapply/internal/service"
)

// notifyProcessor 渠道通知处理能力
type notifyProcessor interface {
	HandleChannelNotify(ctx context.Context, channelCode string, req *channel.NotifyRequest) (*service.NotifyOutcome, error)
	NotifyAck(channelCode string, success bool, message string) channel.NotifyAck
}

// Handler 渠道异步通知处理器
// 说明：该处理器仅面向渠道回调，不承载商户侧接口。
type Handler struct {
	processor notifyProcessor
}

// New 创建通知处理器
func New(c *provider.Container) *Handler {
	h := &Handler{}
	if c != nil && c.ApplyService != nil {
		h.processor = c.ApplyService
	}
	return h
}
