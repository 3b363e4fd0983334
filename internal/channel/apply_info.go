package channel

import (
	"strings"
)

// ApplyInfo 统一进件资料
type ApplyInfo struct {
	ApplyID        string                 `json:"apply_id,omitempty"`
	MchNo          string                 `json:"mch_no"`
	IsvNo          string                 `json:"isv_no,omitempty"`
	ChannelCode    string                 `json:"channel_code"`
	MerchantInfo   MerchantInfo           `json:"merchant_info"`
	ContactInfo    ContactInfo            `json:"contact_info"`
	SubjectInfo    SubjectInfo            `json:"subject_info"`
	BusinessInfo   BusinessInfo           `json:"business_info"`
	SettlementInfo SettlementInfo         `json:"settlement_info"`
	Materials      []MaterialInfo         `json:"materials"`
	ExtParams      map[string]interface{} `json:"ext_params,omitempty"`
}

// MerchantInfo 商户基本信息
type MerchantInfo struct {
	MerchantName string `json:"merchant_name"`
	ShortName    string `json:"short_name"`
	MerchantType string `json:"merchant_type"` // 01 企业 02 个体工商户 03 小微
	ServicePhone string `json:"service_phone"`
	Address      string `json:"address"`
	Email        string `json:"email"`
}

// ContactInfo 联系人信息
type ContactInfo struct {
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	IDCardNo     string `json:"id_card_no"`
}

// SubjectInfo 主体信息
type SubjectInfo struct {
	SubjectType     string `json:"subject_type"`
	LicenseNo       string `json:"license_no"`
	LicenseName     string `json:"license_name"`
	LegalPerson     string `json:"legal_person"`
	LegalIDCardNo   string `json:"legal_id_card_no"`
	IDCardValidTime string `json:"id_card_valid_time"`
}

// BusinessInfo 经营信息
type BusinessInfo struct {
	MCC           string `json:"mcc"`
	BusinessScope string `json:"business_scope"`
	StoreName     string `json:"store_name"`
	StoreAddress  string `json:"store_address"`
}

// SettlementInfo 结算账户信息
type SettlementInfo struct {
	AccountType string `json:"account_type"` // BANK_ACCOUNT_TYPE_CORPORATE / BANK_ACCOUNT_TYPE_PERSONAL
	AccountName string `json:"account_name"`
	AccountNo   string `json:"account_no"`
	BankName    string `json:"bank_name"`
	BankBranch  string `json:"bank_branch"`
	BankCode    string `json:"bank_code"`
}

// MaterialInfo 资料文件
type MaterialInfo struct {
	MaterialType string `json:"material_type"`
	MaterialName string `json:"material_name"`
	FileURL      string `json:"file_url"`
	FileName     string `json:"file_name"`
	IsRequired   bool   `json:"is_required"`
}

// MaterialURL 返回指定类型资料的文件地址
func (info *ApplyInfo) MaterialURL(materialType string) string {
	if info == nil {
		return ""
	}
	for _, m := range info.Materials {
		if strings.EqualFold(strings.TrimSpace(m.MaterialType), materialType) {
			if fileURL := strings.TrimSpace(m.FileURL); fileURL != "" {
				return fileURL
			}
		}
	}
	return ""
}

// MissingMaterials 返回缺失（或无文件地址）的资料类型，保持 required 顺序
func (info *ApplyInfo) MissingMaterials(required []string) []string {
	var missing []string
	seen := make(map[string]struct{}, len(required))
	for _, materialType := range required {
		materialType = strings.ToUpper(strings.TrimSpace(materialType))
		if materialType == "" {
			continue
		}
		if _, ok := seen[materialType]; ok {
			continue
		}
		seen[materialType] = struct{}{}
		if info.MaterialURL(materialType) == "" {
			missing = append(missing, materialType)
		}
	}
	return missing
}

// ExtString 读取扩展参数中的字符串
func (info *ApplyInfo) ExtString(key string) string {
	if info == nil || info.ExtParams == nil {
		return ""
	}
	if value, ok := info.ExtParams[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
