package constants

// 进件渠道编码
const (
	ChannelCodeWxPay  = "WX_PAY"
	ChannelCodeAliPay = "ALI_PAY"
	ChannelCodeYsfPay = "YSF_PAY"
)

// 进件申请状态
const (
	ApplyStatusDraft             = 0
	ApplyStatusSubmitted         = 1
	ApplyStatusChannelProcessing = 2
	ApplyStatusApproved          = 3
	ApplyStatusRejected          = 4
	ApplyStatusCancelled         = 5
)

// 审核类型
const (
	AuditTypePlatform = 1
	AuditTypeChannel  = 2
)

// 审核结论
const (
	AuditStatusApproved = 1
	AuditStatusRejected = 2
)

// 资料类型
const (
	MaterialBusinessLicense    = "BUSINESS_LICENSE"
	MaterialLegalIDFront       = "LEGAL_ID_FRONT"
	MaterialLegalIDBack        = "LEGAL_ID_BACK"
	MaterialStoreFront         = "STORE_FRONT"
	MaterialStoreIndoor        = "STORE_INDOOR"
	MaterialBankAccountLicense = "BANK_ACCOUNT_LICENSE"
	MaterialIDCardFront        = "ID_CARD_FRONT"
	MaterialIDCardBack         = "ID_CARD_BACK"
	MaterialBankAccount        = "BANK_ACCOUNT"
	MaterialOrganizationCode   = "ORGANIZATION_CODE"
	MaterialTaxRegistration    = "TAX_REGISTRATION"
	MaterialLegalPersonPhoto   = "LEGAL_PERSON_PHOTO"
	MaterialStorePhoto         = "STORE_PHOTO"
)

// 渠道结果错误码
const (
	ResultCodeValidationError = "VALIDATION_ERROR"
	ResultCodeChannelError    = "CHANNEL_ERROR"
	ResultCodeSystemError     = "SYSTEM_ERROR"
	ResultCodeSignInvalid     = "SIGN_INVALID"
)

// 渠道状态同步来源
const (
	SyncSourceNotify = "notify"
	SyncSourceQuery  = "query"
	SyncSourceSubmit = "submit"
)

// 异步队列
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskApplyStatusPoll = "apply:status_poll"
)

// ApplyStatusName 返回状态名称。
func ApplyStatusName(status int) string {
	switch status {
	case ApplyStatusDraft:
		return "DRAFT"
	case ApplyStatusSubmitted:
		return "SUBMITTED"
	case ApplyStatusChannelProcessing:
		return "CHANNEL_PROCESSING"
	case ApplyStatusApproved:
		return "APPROVED"
	case ApplyStatusRejected:
		return "REJECTED"
	case ApplyStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminalApplyStatus 判断是否为终态。
func IsTerminalApplyStatus(status int) bool {
	switch status {
	case ApplyStatusApproved, ApplyStatusRejected, ApplyStatusCancelled:
		return true
	default:
		return false
	}
}

// KnownMaterialType 判断资料类型是否受支持。
func KnownMaterialType(materialType string) bool {
	switch materialType {
	case MaterialBusinessLicense, MaterialLegalIDFront, MaterialLegalIDBack,
		MaterialStoreFront, MaterialStoreIndoor, MaterialBankAccountLicense,
		MaterialIDCardFront, MaterialIDCardBack, MaterialBankAccount,
		MaterialOrganizationCode, MaterialTaxRegistration,
		MaterialLegalPersonPhoto, MaterialStorePhoto:
		return true
	default:
		return false
	}
}
