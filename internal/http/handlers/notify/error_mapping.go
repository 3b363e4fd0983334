package notify

import (
	"errors"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/http/response"
	"github.com/paynext/mchapply/internal/service"
)

// mappedHandlerError 定义业务错误到通知应答的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

var notifyErrorRules = []mappedHandlerError{
	{target: channel.ErrChannelNotSupported, code: response.CodeNotFound, msg: "channel not supported"},
	{target: service.ErrNotifySignInvalid, code: response.CodeUnauthorized, msg: "sign invalid"},
	{target: service.ErrNotifyInvalid, code: response.CodeBadRequest, msg: "notify invalid"},
	{target: service.ErrApplyNotFound, code: response.CodeNotFound, msg: "apply not found"},
	{target: service.ErrInvalidStateTransition, code: response.CodeConflict, msg: "state conflict"},
}

// mapNotifyError 映射错误，未命中规则时返回系统错误
func mapNotifyError(err error) *response.AppError {
	for _, rule := range notifyErrorRules {
		if errors.Is(err, rule.target) {
			return response.WrapError(rule.code, rule.msg, err)
		}
	}
	return response.WrapError(response.CodeInternal, "system error", err)
}
