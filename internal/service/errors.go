package service

import (
	"errors"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/constants"
)

// 校验类错误
var (
	ErrApplyInfoInvalid     = errors.New("apply info invalid")
	ErrMaterialRequired     = errors.New("required materials missing")
	ErrMaterialTypeInvalid  = errors.New("material type invalid")
	ErrAuditDecisionInvalid = errors.New("audit decision invalid")
	ErrConfigInvalid        = errors.New("channel config invalid")
)

// 业务规则类错误
var (
	ErrDuplicateApplication   = errors.New("apply already exists for merchant and channel")
	ErrInvalidStateTransition = errors.New("apply status does not allow this operation")
	ErrChannelNotConfigured   = errors.New("channel not configured or disabled")
	ErrApplyNotFound          = errors.New("apply not found")
	ErrConfigNotFound         = errors.New("channel config not found")
)

// 渠道类错误
var (
	ErrChannelCallFailed = errors.New("channel call failed")
	ErrNotifySignInvalid = errors.New("channel notify signature invalid")
	ErrNotifyInvalid     = errors.New("channel notify invalid")
)

// 系统类错误
var (
	ErrApplySaveFailed  = errors.New("apply save failed")
	ErrApplyFetchFailed = errors.New("apply fetch failed")
	ErrConfigSaveFailed = errors.New("channel config save failed")
)

// ErrorClass 错误分类
type ErrorClass string

const (
	ErrorClassValidation   ErrorClass = "VALIDATION"
	ErrorClassBusinessRule ErrorClass = "BUSINESS_RULE"
	ErrorClassChannel      ErrorClass = "CHANNEL"
	ErrorClassSystem       ErrorClass = "SYSTEM"
)

var errorClassRules = []struct {
	target error
	class  ErrorClass
}{
	{ErrApplyInfoInvalid, ErrorClassValidation},
	{ErrMaterialRequired, ErrorClassValidation},
	{ErrMaterialTypeInvalid, ErrorClassValidation},
	{ErrAuditDecisionInvalid, ErrorClassValidation},
	{ErrConfigInvalid, ErrorClassValidation},
	{ErrDuplicateApplication, ErrorClassBusinessRule},
	{ErrInvalidStateTransition, ErrorClassBusinessRule},
	{ErrChannelNotConfigured, ErrorClassBusinessRule},
	{ErrApplyNotFound, ErrorClassBusinessRule},
	{ErrConfigNotFound, ErrorClassBusinessRule},
	{channel.ErrChannelNotSupported, ErrorClassBusinessRule},
	{ErrNotifySignInvalid, ErrorClassChannel},
	{ErrNotifyInvalid, ErrorClassChannel},
}

// ClassifyError 将错误归入 校验 / 业务规则 / 渠道 / 系统 之一，nil 返回空串
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}
	for _, rule := range errorClassRules {
		if errors.Is(err, rule.target) {
			return rule.class
		}
	}
	var resultErr *channel.ResultError
	if errors.As(err, &resultErr) {
		switch resultErr.Code {
		case constants.ResultCodeValidationError:
			return ErrorClassValidation
		case constants.ResultCodeChannelError, constants.ResultCodeSignInvalid:
			return ErrorClassChannel
		}
		return ErrorClassSystem
	}
	if errors.Is(err, ErrChannelCallFailed) {
		return ErrorClassChannel
	}
	return ErrorClassSystem
}
