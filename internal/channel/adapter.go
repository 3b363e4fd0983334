package channel

import (
	"context"
	"net/http"
)

// Adapter 渠道进件适配器，将各渠道报文统一为 Result。
// 实现不得跨接口返回 error 或 panic，所有失败都以 Success=false 的 Result 表达。
type Adapter interface {
	// ChannelCode 渠道编码，用于注册表查找
	ChannelCode() string
	// RequiredMaterials 渠道强制要求的资料类型
	RequiredMaterials() []string
	// SubmitToChannel 构建、签名并提交进件申请
	SubmitToChannel(ctx context.Context, info *ApplyInfo) *Result
	// QueryChannelStatus 查询渠道侧申请状态
	QueryChannelStatus(ctx context.Context, channelApplyID string) *Result
	// HandleChannelNotify 验签并解析渠道异步通知
	HandleChannelNotify(ctx context.Context, req *NotifyRequest) *Result
}

// NotifyRequest 入站通知原始报文
type NotifyRequest struct {
	Headers http.Header
	Body    []byte
}

// NotifyAck 渠道通知应答
type NotifyAck struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// NotifyAcknowledger 可选接口，返回渠道要求的应答报文
type NotifyAcknowledger interface {
	NotifyAck(success bool, message string) NotifyAck
}

// DefaultNotifyAck 未实现 NotifyAcknowledger 时的通用应答
func DefaultNotifyAck(success bool, message string) NotifyAck {
	if success {
		return NotifyAck{StatusCode: http.StatusOK, ContentType: "text/plain; charset=utf-8", Body: []byte("success")}
	}
	if message == "" {
		message = "fail"
	}
	return NotifyAck{StatusCode: http.StatusBadRequest, ContentType: "text/plain; charset=utf-8", Body: []byte(message)}
}
