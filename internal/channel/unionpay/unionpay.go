package unionpay

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/constants"

	"github.com/go-resty/resty/v2"
)

const (
	version       = "5.1.0"
	signMethodRSA = "01"
	txnTypeQuery  = "76"
	bizType       = "000000"
	successCode   = "00"
)

var shanghai = time.FixedZone("CST", 8*3600)

// statusTable 云闪付进件状态映射，未识别状态按驳回处理。
var statusTable = channel.NewStatusTable(map[string]int{
	"00": constants.ApplyStatusApproved,
	"01": constants.ApplyStatusChannelProcessing,
	"02": constants.ApplyStatusChannelProcessing,
	"03": constants.ApplyStatusRejected,
	"04": constants.ApplyStatusRejected,
}, constants.ApplyStatusRejected)

var requiredMaterials = []string{
	constants.MaterialBusinessLicense,
	constants.MaterialLegalIDFront,
	constants.MaterialBankAccountLicense,
}

// StatusTable 返回云闪付状态映射表
func StatusTable() *channel.StatusTable {
	return statusTable
}

// Adapter 云闪付商户进件适配器
type Adapter struct {
	cfg       *Config
	signer    *signer
	verifyKey *rsa.PublicKey
	client    *resty.Client
	timeout   time.Duration
	now       func() time.Time
}

// New 创建适配器，配置非法时返回错误。
func New(cfg *Config, opts channel.TransportOptions) (*Adapter, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	s, err := cfg.signer()
	if err != nil {
		return nil, err
	}
	verifyKey, err := channel.ParsePublicKey(cfg.VerifyCert)
	if err != nil {
		return nil, fmt.Errorf("%w: verify_cert: %v", ErrConfigInvalid, err)
	}
	opts = opts.Normalize()
	return &Adapter{
		cfg:       cfg,
		signer:    s,
		verifyKey: verifyKey,
		client:    channel.NewRestyClient(opts),
		timeout:   opts.Timeout,
		now:       time.Now,
	}, nil
}

// ChannelCode 渠道编码
func (a *Adapter) ChannelCode() string {
	return constants.ChannelCodeYsfPay
}

// RequiredMaterials 渠道强制资料
func (a *Adapter) RequiredMaterials() []string {
	return append([]string(nil), requiredMaterials...)
}

// SubmitToChannel 提交商户进件
func (a *Adapter) SubmitToChannel(ctx context.Context, info *channel.ApplyInfo) *channel.Result {
	if info == nil {
		return channel.ValidationFailure("apply info is nil")
	}
	if missing := info.MissingMaterials(requiredMaterials); len(missing) > 0 {
		return channel.MissingMaterialsFailure(missing)
	}
	if err := validateApplyInfo(info); err != nil {
		return channel.ValidationFailure(err.Error())
	}

	params := buildApplyParams(info)
	params["txnSubType"] = "01"
	params["orderId"] = pickFirst(info.ApplyID, info.MchNo)
	if a.cfg.BackURL != "" {
		params["backUrl"] = a.cfg.BackURL
	}
	resp, err := a.call(ctx, a.cfg.GatewayURL, params)
	if err != nil {
		return channel.SystemFailure(err)
	}
	if failure := businessFailure(resp); failure != nil {
		return failure
	}
	applyID := resp["applyId"]
	if applyID == "" {
		return channel.SystemFailure(fmt.Errorf("%w: missing applyId", ErrResponseInvalid))
	}
	return &channel.Result{
		Success:           true,
		ChannelApplyID:    applyID,
		ApplyStatus:       constants.ApplyStatusChannelProcessing,
		ChannelStatus:     "01",
		ChannelStatusDesc: resp["respMsg"],
		Raw:               toRaw(resp),
	}
}

// QueryChannelStatus 查询进件状态（txnType=76）
func (a *Adapter) QueryChannelStatus(ctx context.Context, channelApplyID string) *channel.Result {
	channelApplyID = strings.TrimSpace(channelApplyID)
	if channelApplyID == "" {
		return channel.ValidationFailure("channel apply id is required")
	}
	params := map[string]string{
		"txnType":    txnTypeQuery,
		"txnSubType": "00",
		"applyId":    channelApplyID,
	}
	resp, err := a.call(ctx, a.cfg.QueryURL, params)
	if err != nil {
		return channel.SystemFailure(err)
	}
	if failure := businessFailure(resp); failure != nil {
		return failure
	}
	result := channel.StatusResult(statusTable,
		pickFirst(resp["applyId"], channelApplyID),
		pickFirst(resp["status"], resp["applyStatus"]),
		resp["respMsg"],
		resp["merId"],
		resp["rejectReason"],
	)
	result.Raw = toRaw(resp)
	return result
}

// HandleChannelNotify 验签并解析后台通知（表单格式）
func (a *Adapter) HandleChannelNotify(ctx context.Context, req *channel.NotifyRequest) *channel.Result {
	if req == nil || len(req.Body) == 0 {
		return channel.ValidationFailure("notify body is empty")
	}
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return channel.ValidationFailure("notify body is not a form")
	}
	params := channel.FlattenForm(form)
	if err := a.Verify(params); err != nil {
		return channel.SignFailure(err)
	}
	applyID := strings.TrimSpace(params["applyId"])
	if applyID == "" {
		return channel.ValidationFailure("notify applyId is missing")
	}
	result := channel.StatusResult(statusTable,
		applyID,
		pickFirst(params["status"], params["applyStatus"]),
		params["respMsg"],
		params["merId"],
		params["rejectReason"],
	)
	result.Raw = toRaw(params)
	return result
}

// NotifyAck 银联后台通知应答 HTTP 200 即视为接收成功
func (a *Adapter) NotifyAck(success bool, message string) channel.NotifyAck {
	if success {
		return channel.NotifyAck{StatusCode: http.StatusOK, ContentType: "text/plain; charset=utf-8", Body: []byte("ok")}
	}
	if message == "" {
		message = "fail"
	}
	return channel.NotifyAck{StatusCode: http.StatusBadRequest, ContentType: "text/plain; charset=utf-8", Body: []byte(message)}
}

// Sign 按 5.1.0 规则签名：SHA256withRSA(hex(sha256(待签串)))
func (a *Adapter) Sign(params map[string]string) (string, error) {
	return channel.SignPKCS1v15(a.signer.key, crypto.SHA256, []byte(digestHex(params)))
}

// Verify 使用银联验签证书校验 signature
func (a *Adapter) Verify(params map[string]string) error {
	signature := strings.TrimSpace(params["signature"])
	if signature == "" {
		return fmt.Errorf("%w: signature is required", ErrSignatureInvalid)
	}
	if method := params["signMethod"]; method != "" && method != signMethodRSA {
		return fmt.Errorf("%w: signMethod %s is not supported", ErrSignatureInvalid, method)
	}
	if err := channel.VerifyPKCS1v15(a.verifyKey, crypto.SHA256, []byte(digestHex(params)), signature); err != nil {
		return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}
	return nil
}

func (a *Adapter) call(ctx context.Context, endpoint string, params map[string]string) (map[string]string, error) {
	for key, value := range a.commonParams() {
		if _, ok := params[key]; !ok {
			params[key] = value
		}
	}
	signature, err := a.Sign(params)
	if err != nil {
		return nil, fmt.Errorf("%w: sign failed", ErrRequestFailed)
	}
	params["signature"] = signature

	ctx, cancel := channel.WithDefaultTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8").
		SetFormData(params).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode())
	}
	fields := ParseResponse(string(resp.Body()))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrResponseInvalid)
	}
	if err := a.Verify(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (a *Adapter) commonParams() map[string]string {
	return map[string]string{
		"version":    version,
		"encoding":   "UTF-8",
		"signMethod": signMethodRSA,
		"certId":     a.signer.certID,
		"bizType":    bizType,
		"instId":     a.cfg.InstID,
		"txnTime":    a.now().In(shanghai).Format("20060102150405"),
	}
}

// ParseResponse 解析银联同步应答。应答值未经 URL 编码，且可能包含 {} 嵌套，
// 只按顶层 & 切分并以首个 = 分隔键值。
func ParseResponse(body string) map[string]string {
	fields := map[string]string{}
	body = strings.TrimSpace(body)
	depth, start := 0, 0
	flush := func(end int) {
		pair := body[start:end]
		if idx := strings.Index(pair, "="); idx > 0 {
			fields[strings.TrimSpace(pair[:idx])] = pair[idx+1:]
		}
	}
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{', '[':
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
			}
		case '&':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	if start < len(body) {
		flush(len(body))
	}
	return fields
}

func digestHex(params map[string]string) string {
	sum := sha256.Sum256([]byte(channel.SortedContent(params, "signature")))
	return hex.EncodeToString(sum[:])
}

func businessFailure(resp map[string]string) *channel.Result {
	code := strings.TrimSpace(resp["respCode"])
	if code == successCode {
		return nil
	}
	result := channel.ChannelFailure(code, pickFirst(resp["respMsg"], "unionpay business failure"))
	result.Raw = toRaw(resp)
	return result
}

func validateApplyInfo(info *channel.ApplyInfo) error {
	switch {
	case strings.TrimSpace(info.MerchantInfo.MerchantName) == "":
		return fmt.Errorf("merchant_name is required")
	case strings.TrimSpace(info.SubjectInfo.LicenseNo) == "":
		return fmt.Errorf("license_no is required")
	case strings.TrimSpace(info.ContactInfo.ContactPhone) == "":
		return fmt.Errorf("contact_phone is required")
	case strings.TrimSpace(info.SettlementInfo.AccountNo) == "":
		return fmt.Errorf("settlement account_no is required")
	}
	return nil
}

func buildApplyParams(info *channel.ApplyInfo) map[string]string {
	merchant := info.MerchantInfo
	settlement := info.SettlementInfo
	params := map[string]string{
		"merName":           merchant.MerchantName,
		"merAbbr":           pickFirst(merchant.ShortName, merchant.MerchantName),
		"merType":           pickFirst(merchant.MerchantType, "01"),
		"mcc":               info.BusinessInfo.MCC,
		"merAddr":           pickFirst(merchant.Address, info.BusinessInfo.StoreAddress),
		"contactName":       info.ContactInfo.ContactName,
		"contactPhone":      info.ContactInfo.ContactPhone,
		"contactEmail":      pickFirst(info.ContactInfo.ContactEmail, merchant.Email),
		"licenseNo":         info.SubjectInfo.LicenseNo,
		"licensePic":        info.MaterialURL(constants.MaterialBusinessLicense),
		"legalName":         info.SubjectInfo.LegalPerson,
		"legalIdNo":         info.SubjectInfo.LegalIDCardNo,
		"legalIdFrontPic":   info.MaterialURL(constants.MaterialLegalIDFront),
		"legalIdBackPic":    info.MaterialURL(constants.MaterialLegalIDBack),
		"openingLicensePic": info.MaterialURL(constants.MaterialBankAccountLicense),
		"settleAccountType": pickFirst(settlement.AccountType, "01"),
		"settleAccountNo":   settlement.AccountNo,
		"settleAccountName": pickFirst(settlement.AccountName, merchant.MerchantName),
		"settleBankName":    settlement.BankName,
		"settleBankCode":    settlement.BankCode,
	}
	for key, value := range params {
		if strings.TrimSpace(value) == "" {
			delete(params, key)
		}
	}
	return params
}

func toRaw(fields map[string]string) map[string]interface{} {
	raw := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if key == "signature" || key == "signPubKeyCert" {
			continue
		}
		raw[key] = value
	}
	return raw
}

func pickFirst(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
