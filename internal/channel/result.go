package channel

import (
	"errors"
	"strings"

	"github.com/paynext/mchapply/internal/constants"
)

// Result 渠道调用统一结果
type Result struct {
	Success           bool                   `json:"success"`
	ChannelApplyID    string                 `json:"channel_apply_id,omitempty"`
	ApplyStatus       int                    `json:"apply_status"`
	ChannelStatus     string                 `json:"channel_status,omitempty"`
	ChannelStatusDesc string                 `json:"channel_status_desc,omitempty"`
	SubMchID          string                 `json:"sub_mch_id,omitempty"`
	RejectReason      string                 `json:"reject_reason,omitempty"`
	ErrorCode         string                 `json:"error_code,omitempty"`
	ErrorMessage      string                 `json:"error_message,omitempty"`
	Raw               map[string]interface{} `json:"-"`
}

// StatusResult 按状态表映射渠道原始状态；仅在映射结果为审核通过时保留子商户号。
func StatusResult(table *StatusTable, channelApplyID, native, desc, subMchID, rejectReason string) *Result {
	status := table.Map(native)
	result := &Result{
		Success:           true,
		ChannelApplyID:    strings.TrimSpace(channelApplyID),
		ApplyStatus:       status,
		ChannelStatus:     strings.TrimSpace(native),
		ChannelStatusDesc: strings.TrimSpace(desc),
	}
	if status == constants.ApplyStatusApproved {
		result.SubMchID = strings.TrimSpace(subMchID)
	}
	if status == constants.ApplyStatusRejected {
		result.RejectReason = pickFirst(rejectReason, desc)
	}
	return result
}

// ValidationFailure 本地校验失败，未发生网络调用
func ValidationFailure(message string) *Result {
	return failure(constants.ResultCodeValidationError, message)
}

// MissingMaterialsFailure 缺少渠道强制资料
func MissingMaterialsFailure(missing []string) *Result {
	return ValidationFailure("missing required materials: " + strings.Join(missing, ","))
}

// ChannelFailure 渠道返回业务失败
func ChannelFailure(nativeCode, message string) *Result {
	result := failure(constants.ResultCodeChannelError, message)
	result.ChannelStatus = strings.TrimSpace(nativeCode)
	return result
}

// SystemFailure 网络、解析等系统异常
func SystemFailure(err error) *Result {
	message := "channel system error"
	if err != nil {
		message = err.Error()
	}
	return failure(constants.ResultCodeSystemError, message)
}

// SignFailure 通知验签失败
func SignFailure(err error) *Result {
	message := "signature verify failed"
	if err != nil {
		message = err.Error()
	}
	return failure(constants.ResultCodeSignInvalid, message)
}

// IsSystemError 判断是否为系统异常结果
func (r *Result) IsSystemError() bool {
	return r != nil && !r.Success && r.ErrorCode == constants.ResultCodeSystemError
}

// Err 将失败结果转换为 error，成功时返回 nil
func (r *Result) Err() error {
	if r == nil {
		return errors.New("channel result is nil")
	}
	if r.Success {
		return nil
	}
	return &ResultError{Code: r.ErrorCode, Message: r.ErrorMessage}
}

// ResultError 渠道失败结果错误
type ResultError struct {
	Code    string
	Message string
}

func (e *ResultError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func failure(code, message string) *Result {
	return &Result{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: strings.TrimSpace(message),
	}
}

func pickFirst(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
