package wechatpay

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/constants"

	"github.com/cenkalti/backoff/v5"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

const (
	applymentPath      = "/v3/applyment4sub/applyment/"
	applymentQueryPath = "/v3/applyment4sub/applyment/applyment_id/"
	statePrefix        = "APPLYMENT_STATE_"
)

// statusTable 微信特约商户进件状态映射，applyment_state 去掉前缀后匹配。
var statusTable = channel.NewStatusTable(map[string]int{
	"EDITTING":            constants.ApplyStatusChannelProcessing,
	"AUDITING":            constants.ApplyStatusChannelProcessing,
	"TO_BE_CONFIRMED":     constants.ApplyStatusChannelProcessing,
	"TO_BE_SIGNED":        constants.ApplyStatusChannelProcessing,
	"SIGNING":             constants.ApplyStatusChannelProcessing,
	"ACCOUNT_NEED_VERIFY": constants.ApplyStatusChannelProcessing,
	"FINISHED":            constants.ApplyStatusApproved,
	"FINISH":              constants.ApplyStatusApproved,
	"REJECTED":            constants.ApplyStatusRejected,
	"CANCELED":            constants.ApplyStatusRejected,
	"FROZEN":              constants.ApplyStatusRejected,
}, constants.ApplyStatusRejected).WithNormalizer(func(raw string) string {
	return strings.TrimPrefix(raw, statePrefix)
})

var requiredMaterials = []string{
	constants.MaterialBusinessLicense,
	constants.MaterialLegalIDFront,
	constants.MaterialLegalIDBack,
	constants.MaterialStoreFront,
}

// StatusTable 返回微信状态映射表
func StatusTable() *channel.StatusTable {
	return statusTable
}

// Adapter 微信支付服务商特约商户进件适配器
type Adapter struct {
	cfg          *Config
	client       *core.Client
	platformCert *x509.Certificate
	maxRetries   int
	retryWait    time.Duration
}

// New 创建适配器；配置了平台证书时校验应答签名，否则沿用证书下载器。
func New(ctx context.Context, cfg *Config, opts channel.TransportOptions) (*Adapter, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.Normalize()
	privateKey, err := cfg.privateKey()
	if err != nil {
		return nil, err
	}
	platformCert, err := cfg.platformCertificate()
	if err != nil {
		return nil, err
	}
	httpClient, err := buildHTTPClient(cfg, opts)
	if err != nil {
		return nil, err
	}

	clientOpts := []core.ClientOption{
		option.WithMerchantCredential(cfg.SpMchID, cfg.MerchantSerialNo, privateKey),
		option.WithHTTPClient(httpClient),
	}
	if platformCert != nil {
		clientOpts = append(clientOpts, option.WithWechatPayCertificate([]*x509.Certificate{platformCert}))
	} else {
		clientOpts = append(clientOpts, option.WithoutValidator())
	}
	client, err := core.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: init client failed", ErrConfigInvalid)
	}
	return &Adapter{
		cfg:          cfg,
		client:       client,
		platformCert: platformCert,
		maxRetries:   opts.MaxRetries,
		retryWait:    opts.RetryWait,
	}, nil
}

// ChannelCode 渠道编码
func (a *Adapter) ChannelCode() string {
	return constants.ChannelCodeWxPay
}

// RequiredMaterials 渠道强制资料
func (a *Adapter) RequiredMaterials() []string {
	return append([]string(nil), requiredMaterials...)
}

// SubmitToChannel 提交特约商户进件申请单
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

	cert, serial, err := a.encryptionCertificate(ctx)
	if err != nil {
		return channel.SystemFailure(err)
	}
	payload, err := buildApplyment(info, func(plain string) (string, error) {
		if plain == "" {
			return "", nil
		}
		return utils.EncryptOAEPWithCertificate(plain, cert)
	})
	if err != nil {
		return channel.SystemFailure(fmt.Errorf("%w: encrypt sensitive field failed", ErrRequestFailed))
	}

	header := http.Header{}
	header.Set("Wechatpay-Serial", serial)
	raw, err := a.do(ctx, http.MethodPost, a.cfg.BaseURL+applymentPath, header, payload)
	if err != nil {
		return failureOf(err)
	}
	applymentID := readString(raw, "applyment_id")
	if applymentID == "" {
		return channel.SystemFailure(fmt.Errorf("%w: missing applyment_id", ErrResponseInvalid))
	}
	return &channel.Result{
		Success:        true,
		ChannelApplyID: applymentID,
		ApplyStatus:    constants.ApplyStatusChannelProcessing,
		ChannelStatus:  statePrefix + "AUDITING",
		Raw:            raw,
	}
}

// QueryChannelStatus 通过申请单号查询申请状态
func (a *Adapter) QueryChannelStatus(ctx context.Context, channelApplyID string) *channel.Result {
	channelApplyID = strings.TrimSpace(channelApplyID)
	if channelApplyID == "" {
		return channel.ValidationFailure("channel apply id is required")
	}
	requestURL := a.cfg.BaseURL + applymentQueryPath + url.PathEscape(channelApplyID)
	raw, err := a.do(ctx, http.MethodGet, requestURL, nil, nil)
	if err != nil {
		return failureOf(err)
	}
	result := channel.StatusResult(statusTable,
		pickFirst(readString(raw, "applyment_id"), channelApplyID),
		readString(raw, "applyment_state"),
		readString(raw, "applyment_state_msg"),
		readString(raw, "sub_mchid"),
		auditRejectReason(raw),
	)
	result.Raw = raw
	return result
}

// HandleChannelNotify 验签并解密 v3 回调通知
func (a *Adapter) HandleChannelNotify(ctx context.Context, req *channel.NotifyRequest) *channel.Result {
	if req == nil || len(req.Body) == 0 {
		return channel.ValidationFailure("notify body is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	handler, err := a.notifyHandler(ctx)
	if err != nil {
		return channel.SystemFailure(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://notify.wechat.example/applyment", bytes.NewReader(req.Body))
	if err != nil {
		return channel.SystemFailure(fmt.Errorf("%w: build notify request failed", ErrResponseInvalid))
	}
	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	content := map[string]interface{}{}
	notifyReq, err := handler.ParseNotifyRequest(ctx, httpReq, &content)
	if err != nil {
		return channel.SignFailure(fmt.Errorf("%w: %v", ErrSignatureInvalid, err))
	}
	if notifyReq != nil && notifyReq.Resource != nil && notifyReq.Resource.Plaintext != "" {
		if decoded, err := decodeJSON([]byte(notifyReq.Resource.Plaintext)); err == nil {
			content = decoded
		}
	}
	applymentID := readString(content, "applyment_id")
	if applymentID == "" {
		return channel.ValidationFailure("notify applyment_id is missing")
	}
	result := channel.StatusResult(statusTable,
		applymentID,
		readString(content, "applyment_state"),
		readString(content, "applyment_state_msg"),
		readString(content, "sub_mchid"),
		pickFirst(readString(content, "reject_reason"), auditRejectReason(content)),
	)
	if notifyReq != nil {
		content["event_type"] = strings.TrimSpace(notifyReq.EventType)
		content["notify_id"] = strings.TrimSpace(notifyReq.ID)
	}
	result.Raw = content
	return result
}

// NotifyAck 微信要求 JSON 应答，失败时返回非 2xx 触发重发
func (a *Adapter) NotifyAck(success bool, message string) channel.NotifyAck {
	code, status := "SUCCESS", http.StatusOK
	if !success {
		code, status = "FAIL", http.StatusBadRequest
	}
	if message == "" {
		message = strings.ToLower(code)
	}
	body, _ := json.Marshal(map[string]string{"code": code, "message": message})
	return channel.NotifyAck{StatusCode: status, ContentType: "application/json", Body: body}
}

// do 发送 v3 请求，仅对网络错误与 5xx/429 进行有限次重试
func (a *Adapter) do(ctx context.Context, method, requestURL string, header http.Header, body interface{}) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.retryWait
	policy.MaxInterval = a.retryWait * 4

	operation := func() (map[string]interface{}, error) {
		contentType := ""
		if body != nil {
			contentType = "application/json"
		}
		result, err := a.client.Request(ctx, method, requestURL, header.Clone(), nil, body, contentType)
		if err != nil {
			var apiErr *core.APIError
			if errors.As(err, &apiErr) && !channel.IsTransientStatus(apiErr.StatusCode) {
				return nil, backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		raw, err := parseAPIResult(result)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return raw, nil
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(a.maxRetries+1)),
	)
}

// encryptionCertificate 敏感字段加密所用的平台证书及其序列号
func (a *Adapter) encryptionCertificate(ctx context.Context) (*x509.Certificate, string, error) {
	if a.platformCert != nil {
		return a.platformCert, certificateSerial(a.platformCert), nil
	}
	visitor, err := a.certificateVisitor(ctx)
	if err != nil {
		return nil, "", err
	}
	serial := visitor.GetNewestSerial(ctx)
	cert, ok := visitor.Get(ctx, serial)
	if !ok || cert == nil {
		return nil, "", fmt.Errorf("%w: platform certificate unavailable", ErrRequestFailed)
	}
	return cert, serial, nil
}

func (a *Adapter) notifyHandler(ctx context.Context) (*notify.Handler, error) {
	var verifier auth.Verifier
	if a.platformCert != nil {
		verifier = verifiers.NewSHA256WithRSAVerifier(core.NewCertificateMapWithList([]*x509.Certificate{a.platformCert}))
	} else {
		visitor, err := a.certificateVisitor(ctx)
		if err != nil {
			return nil, err
		}
		verifier = verifiers.NewSHA256WithRSAVerifier(visitor)
	}
	handler, err := notify.NewRSANotifyHandler(a.cfg.APIV3Key, verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: init notify handler failed", ErrConfigInvalid)
	}
	return handler, nil
}

func (a *Adapter) certificateVisitor(ctx context.Context) (core.CertificateVisitor, error) {
	privateKey, err := a.cfg.privateKey()
	if err != nil {
		return nil, err
	}
	mgr := downloader.MgrInstance()
	if !mgr.HasDownloader(ctx, a.cfg.SpMchID) {
		if err := mgr.RegisterDownloaderWithPrivateKey(ctx, privateKey, a.cfg.MerchantSerialNo, a.cfg.SpMchID, a.cfg.APIV3Key); err != nil {
			return nil, fmt.Errorf("%w: register certificate downloader failed", ErrRequestFailed)
		}
	}
	return mgr.GetCertificateVisitor(a.cfg.SpMchID), nil
}

func buildHTTPClient(cfg *Config, opts channel.TransportOptions) (*http.Client, error) {
	if opts.HTTPClient != nil {
		return opts.HTTPClient, nil
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	clientCert, err := cfg.clientCertificate()
	if err != nil {
		return nil, err
	}
	if clientCert != nil {
		transport.TLSClientConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{*clientCert},
		}
	}
	return &http.Client{Timeout: opts.Timeout, Transport: transport}, nil
}

func parseAPIResult(result *core.APIResult) (map[string]interface{}, error) {
	if result == nil || result.Response == nil || result.Response.Body == nil {
		return nil, fmt.Errorf("%w: empty response", ErrResponseInvalid)
	}
	defer result.Response.Body.Close()

	respBody, err := io.ReadAll(result.Response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrResponseInvalid)
	}
	raw, err := decodeJSON(respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

// failureOf 4xx 视为渠道业务失败，其余为系统异常
func failureOf(err error) *channel.Result {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) && !channel.IsTransientStatus(apiErr.StatusCode) {
		return channel.ChannelFailure(apiErr.Code, pickFirst(apiErr.Message, apiErr.Code, http.StatusText(apiErr.StatusCode)))
	}
	return channel.SystemFailure(fmt.Errorf("%w: %v", ErrRequestFailed, err))
}

func decodeJSON(data []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	raw := map[string]interface{}{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func auditRejectReason(raw map[string]interface{}) string {
	details, ok := raw["audit_detail"].([]interface{})
	if !ok {
		return ""
	}
	reasons := make([]string, 0, len(details))
	for _, item := range details {
		detail, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if reason := readString(detail, "reject_reason"); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	return strings.Join(reasons, "; ")
}

func validateApplyInfo(info *channel.ApplyInfo) error {
	switch {
	case strings.TrimSpace(info.MerchantInfo.MerchantName) == "":
		return fmt.Errorf("merchant_name is required")
	case strings.TrimSpace(info.SubjectInfo.LicenseNo) == "":
		return fmt.Errorf("license_no is required")
	case strings.TrimSpace(info.ContactInfo.ContactName) == "":
		return fmt.Errorf("contact_name is required")
	case strings.TrimSpace(info.ContactInfo.ContactPhone) == "":
		return fmt.Errorf("contact_phone is required")
	}
	return nil
}

func subjectType(info *channel.ApplyInfo) string {
	if subject := strings.TrimSpace(info.SubjectInfo.SubjectType); subject != "" {
		return subject
	}
	switch strings.TrimSpace(info.MerchantInfo.MerchantType) {
	case "02":
		return "SUBJECT_TYPE_INDIVIDUAL"
	case "03":
		return "SUBJECT_TYPE_MICRO"
	default:
		return "SUBJECT_TYPE_ENTERPRISE"
	}
}

// buildApplyment 组装申请单，敏感字段经 encrypt 加密
func buildApplyment(info *channel.ApplyInfo, encrypt func(string) (string, error)) (map[string]interface{}, error) {
	var firstErr error
	enc := func(plain string) string {
		cipher, err := encrypt(strings.TrimSpace(plain))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return cipher
	}

	merchant := info.MerchantInfo
	subject := info.SubjectInfo
	contact := info.ContactInfo
	payload := map[string]interface{}{
		"business_code": pickFirst(info.ApplyID, info.MchNo),
		"contact_info": map[string]interface{}{
			"contact_type":  "LEGAL",
			"contact_name":  enc(contact.ContactName),
			"mobile_phone":  enc(contact.ContactPhone),
			"contact_email": enc(pickFirst(contact.ContactEmail, merchant.Email)),
		},
		"subject_info": map[string]interface{}{
			"subject_type": subjectType(info),
			"business_license_info": map[string]interface{}{
				"license_copy":   info.MaterialURL(constants.MaterialBusinessLicense),
				"license_number": subject.LicenseNo,
				"merchant_name":  pickFirst(subject.LicenseName, merchant.MerchantName),
				"legal_person":   subject.LegalPerson,
			},
			"identity_info": map[string]interface{}{
				"id_holder_type": "LEGAL",
				"id_doc_type":    "IDENTIFICATION_TYPE_IDCARD",
				"id_card_info": map[string]interface{}{
					"id_card_copy":     info.MaterialURL(constants.MaterialLegalIDFront),
					"id_card_national": info.MaterialURL(constants.MaterialLegalIDBack),
					"id_card_name":     enc(subject.LegalPerson),
					"id_card_number":   enc(subject.LegalIDCardNo),
					"card_period_end":  pickFirst(subject.IDCardValidTime, "长期"),
				},
			},
		},
		"business_info": map[string]interface{}{
			"merchant_shortname": pickFirst(merchant.ShortName, merchant.MerchantName),
			"service_phone":      pickFirst(merchant.ServicePhone, contact.ContactPhone),
			"sales_info": map[string]interface{}{
				"sales_scenes_type": []string{"SALES_SCENES_STORE"},
				"biz_store_info": map[string]interface{}{
					"biz_store_name":     pickFirst(info.BusinessInfo.StoreName, merchant.ShortName, merchant.MerchantName),
					"biz_store_address":  pickFirst(info.BusinessInfo.StoreAddress, merchant.Address),
					"store_entrance_pic": []string{info.MaterialURL(constants.MaterialStoreFront)},
					"indoor_pic":         nonEmpty(info.MaterialURL(constants.MaterialStoreIndoor)),
				},
			},
		},
		"settlement_info": map[string]interface{}{
			"settlement_id":      info.ExtString("settlement_id"),
			"qualification_type": pickFirst(info.BusinessInfo.BusinessScope, info.ExtString("qualification_type")),
		},
	}
	if settlement := info.SettlementInfo; settlement.AccountNo != "" {
		payload["bank_account_info"] = map[string]interface{}{
			"bank_account_type": pickFirst(settlement.AccountType, "BANK_ACCOUNT_TYPE_CORPORATE"),
			"account_name":      enc(settlement.AccountName),
			"account_bank":      settlement.BankName,
			"bank_branch_id":    settlement.BankCode,
			"bank_name":         settlement.BankBranch,
			"account_number":    enc(settlement.AccountNo),
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return payload, nil
}

// certificateSerial 证书序列号的十六进制大写形式，与 Wechatpay-Serial 一致
func certificateSerial(cert *x509.Certificate) string {
	return fmt.Sprintf("%X", cert.SerialNumber.Bytes())
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	switch value := raw[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case float64:
		return fmt.Sprintf("%.0f", value)
	default:
		return ""
	}
}

func pickFirst(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
