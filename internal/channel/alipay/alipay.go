package alipay

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/constants"

	"github.com/go-resty/resty/v2"
	alipaysdk "github.com/smartwalle/alipay/v3"
)

const (
	methodIndirectCreate = "ant.merchant.expand.indirect.create"
	methodOrderQuery     = "ant.merchant.expand.order.query"
	successCode          = "10000"
)

// statusTable 支付宝进件状态映射，未识别状态按驳回处理。
var statusTable = channel.NewStatusTable(map[string]int{
	"UNDER_REVIEW": constants.ApplyStatusChannelProcessing,
	"NEED_UPLOAD":  constants.ApplyStatusChannelProcessing,
	"AUDITING":     constants.ApplyStatusChannelProcessing,
	"REVIEWED":     constants.ApplyStatusApproved,
	"SUCCESS":      constants.ApplyStatusApproved,
	"REJECTED":     constants.ApplyStatusRejected,
	"INVALID":      constants.ApplyStatusRejected,
	"FAIL":         constants.ApplyStatusRejected,
}, constants.ApplyStatusRejected)

var requiredMaterials = []string{
	constants.MaterialBusinessLicense,
	constants.MaterialLegalIDFront,
	constants.MaterialLegalIDBack,
}

// StatusTable 返回支付宝状态映射表
func StatusTable() *channel.StatusTable {
	return statusTable
}

// Adapter 支付宝间连商户进件适配器
type Adapter struct {
	cfg       *Config
	sdk       *alipaysdk.Client
	publicKey *rsa.PublicKey
	client    *resty.Client
	timeout   time.Duration
}

// New 创建适配器，配置非法时返回错误。
func New(cfg *Config, opts channel.TransportOptions) (*Adapter, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	privateKey, err := channel.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	publicKey, err := channel.ParsePublicKey(cfg.AlipayPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	sdk, err := newSDKClient(cfg.AppID, privateKey, publicKey)
	if err != nil {
		return nil, err
	}
	opts = opts.Normalize()
	return &Adapter{
		cfg:       cfg,
		sdk:       sdk,
		publicKey: publicKey,
		client:    channel.NewRestyClient(opts),
		timeout:   opts.Timeout,
	}, nil
}

// newSDKClient 以 PKCS1 私钥与 PKIX 公钥（base64 DER）初始化开放平台 SDK
func newSDKClient(appID string, privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) (*alipaysdk.Client, error) {
	sdk, err := alipaysdk.New(appID, base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PrivateKey(privateKey)), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := sdk.LoadAliPayPublicKey(base64.StdEncoding.EncodeToString(publicDER)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return sdk, nil
}

// ChannelCode 渠道编码
func (a *Adapter) ChannelCode() string {
	return constants.ChannelCodeAliPay
}

// RequiredMaterials 渠道强制资料
func (a *Adapter) RequiredMaterials() []string {
	return append([]string(nil), requiredMaterials...)
}

// SubmitToChannel 提交间连商户进件
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

	node, err := a.call(ctx, methodIndirectCreate, buildBizContent(info))
	if err != nil {
		return channel.SystemFailure(err)
	}
	if failure := businessFailure(node); failure != nil {
		return failure
	}
	orderID := readString(node, "order_id")
	if orderID == "" {
		return channel.SystemFailure(fmt.Errorf("%w: missing order_id", ErrResponseInvalid))
	}
	return &channel.Result{
		Success:           true,
		ChannelApplyID:    orderID,
		ApplyStatus:       constants.ApplyStatusChannelProcessing,
		ChannelStatus:     "UNDER_REVIEW",
		ChannelStatusDesc: readString(node, "msg"),
		Raw:               node,
	}
}

// QueryChannelStatus 查询进件单状态
func (a *Adapter) QueryChannelStatus(ctx context.Context, channelApplyID string) *channel.Result {
	channelApplyID = strings.TrimSpace(channelApplyID)
	if channelApplyID == "" {
		return channel.ValidationFailure("channel apply id is required")
	}
	node, err := a.call(ctx, methodOrderQuery, map[string]interface{}{"order_id": channelApplyID})
	if err != nil {
		return channel.SystemFailure(err)
	}
	if failure := businessFailure(node); failure != nil {
		return failure
	}
	result := channel.StatusResult(statusTable,
		channelApplyID,
		readString(node, "status"),
		readString(node, "msg"),
		pickFirst(readString(node, "smid"), readString(node, "sub_merchant_id")),
		readString(node, "reason"),
	)
	result.Raw = node
	return result
}

// HandleChannelNotify 验签并解析进件状态异步通知（表单格式）
func (a *Adapter) HandleChannelNotify(ctx context.Context, req *channel.NotifyRequest) *channel.Result {
	if req == nil || len(req.Body) == 0 {
		return channel.ValidationFailure("notify body is empty")
	}
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return channel.ValidationFailure("notify body is not a form")
	}
	if err := a.VerifyNotify(form); err != nil {
		return channel.SignFailure(err)
	}
	params := channel.FlattenForm(form)
	orderID := strings.TrimSpace(params["order_id"])
	if orderID == "" {
		return channel.ValidationFailure("notify order_id is missing")
	}
	result := channel.StatusResult(statusTable,
		orderID,
		params["status"],
		params["memo"],
		pickFirst(params["smid"], params["sub_merchant_id"]),
		params["reason"],
	)
	raw := make(map[string]interface{}, len(params))
	for key, value := range params {
		raw[key] = value
	}
	result.Raw = raw
	return result
}

// NotifyAck 支付宝要求应答纯文本 success
func (a *Adapter) NotifyAck(success bool, _ string) channel.NotifyAck {
	body := "fail"
	if success {
		body = "success"
	}
	return channel.NotifyAck{StatusCode: http.StatusOK, ContentType: "text/plain; charset=utf-8", Body: []byte(body)}
}

// VerifyNotify 使用支付宝公钥校验异步通知签名（排除 sign 与 sign_type）
func (a *Adapter) VerifyNotify(form url.Values) error {
	sign := strings.TrimSpace(form.Get("sign"))
	if sign == "" {
		return fmt.Errorf("%w: sign is required", ErrSignatureInvalid)
	}
	signType := strings.ToUpper(strings.TrimSpace(form.Get("sign_type")))
	if signType != "" && signType != "RSA2" {
		return fmt.Errorf("%w: sign_type %s is not supported", ErrSignatureInvalid, signType)
	}
	if _, err := a.sdk.DecodeNotification(form); err != nil {
		return fmt.Errorf("%w: verify failed: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// call 签名并调用网关，返回已验签的响应节点
func (a *Adapter) call(ctx context.Context, method string, bizContent map[string]interface{}) (map[string]interface{}, error) {
	params, err := a.buildParams(method, bizContent)
	if err != nil {
		return nil, err
	}
	ctx, cancel := channel.WithDefaultTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormDataFromValues(params).
		Post(a.cfg.GatewayURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode())
	}
	return a.parseResponse(method, resp.Body())
}

// buildParams 由 SDK 补齐公共参数并签名
func (a *Adapter) buildParams(method string, bizContent map[string]interface{}) (url.Values, error) {
	values, err := a.sdk.URLValues(gatewayRequest{
		method:       method,
		bizContent:   bizContent,
		notifyURL:    a.cfg.NotifyURL,
		appAuthToken: a.cfg.AppAuthToken,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sign failed: %v", ErrRequestFailed, err)
	}
	return values, nil
}

// gatewayRequest 开放平台通用请求，序列化结果即 biz_content
type gatewayRequest struct {
	alipaysdk.AuxParam
	method       string
	bizContent   map[string]interface{}
	notifyURL    string
	appAuthToken string
}

func (r gatewayRequest) APIName() string {
	return r.method
}

func (r gatewayRequest) Params() map[string]string {
	params := map[string]string{}
	if r.notifyURL != "" {
		params["notify_url"] = r.notifyURL
	}
	if r.appAuthToken != "" {
		params["app_auth_token"] = r.appAuthToken
	}
	return params
}

func (r gatewayRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.bizContent)
}

// parseResponse 读取 <method>_response 节点，并对节点原文验签
func (a *Adapter) parseResponse(method string, body []byte) (map[string]interface{}, error) {
	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	nodeRaw, ok := envelope[responseKey(method)]
	if !ok {
		nodeRaw, ok = envelope["error_response"]
	}
	if !ok || len(nodeRaw) == 0 {
		return nil, fmt.Errorf("%w: missing response node", ErrResponseInvalid)
	}

	var sign string
	if signRaw, exists := envelope["sign"]; exists {
		if err := json.Unmarshal(signRaw, &sign); err != nil {
			return nil, fmt.Errorf("%w: decode sign failed", ErrResponseInvalid)
		}
	}
	if strings.TrimSpace(sign) != "" {
		if err := channel.VerifyPKCS1v15(a.publicKey, crypto.SHA256, nodeRaw, sign); err != nil {
			return nil, fmt.Errorf("%w: response sign verify failed", ErrSignatureInvalid)
		}
	}

	node := map[string]interface{}{}
	if err := json.Unmarshal(nodeRaw, &node); err != nil {
		return nil, fmt.Errorf("%w: decode response node failed", ErrResponseInvalid)
	}
	return node, nil
}

func responseKey(method string) string {
	return strings.ReplaceAll(method, ".", "_") + "_response"
}

func businessFailure(node map[string]interface{}) *channel.Result {
	code := readString(node, "code")
	if code == successCode {
		return nil
	}
	nativeCode := pickFirst(readString(node, "sub_code"), code)
	message := pickFirst(readString(node, "sub_msg"), readString(node, "msg"), "alipay business failure")
	result := channel.ChannelFailure(nativeCode, message)
	result.Raw = node
	return result
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

func buildBizContent(info *channel.ApplyInfo) map[string]interface{} {
	merchant := info.MerchantInfo
	biz := map[string]interface{}{
		"external_id":            pickFirst(info.ApplyID, info.MchNo),
		"name":                   merchant.MerchantName,
		"alias_name":             pickFirst(merchant.ShortName, merchant.MerchantName),
		"service_phone":          pickFirst(merchant.ServicePhone, info.ContactInfo.ContactPhone),
		"category_id":            info.BusinessInfo.MCC,
		"source":                 info.IsvNo,
		"business_license":       info.SubjectInfo.LicenseNo,
		"business_license_pic":   info.MaterialURL(constants.MaterialBusinessLicense),
		"legal_name":             info.SubjectInfo.LegalPerson,
		"legal_cert_no":          info.SubjectInfo.LegalIDCardNo,
		"legal_cert_front_image": info.MaterialURL(constants.MaterialLegalIDFront),
		"legal_cert_back_image":  info.MaterialURL(constants.MaterialLegalIDBack),
		"contact_info": []map[string]interface{}{{
			"name":       info.ContactInfo.ContactName,
			"mobile":     info.ContactInfo.ContactPhone,
			"email":      info.ContactInfo.ContactEmail,
			"id_card_no": info.ContactInfo.IDCardNo,
		}},
	}
	if address := pickFirst(info.BusinessInfo.StoreAddress, merchant.Address); address != "" {
		biz["address_info"] = []map[string]interface{}{{"address": address}}
	}
	if info.SettlementInfo.AccountNo != "" {
		biz["bankcard_info"] = []map[string]interface{}{{
			"card_no":   info.SettlementInfo.AccountNo,
			"card_name": info.SettlementInfo.AccountName,
		}}
	}
	if storeFront := info.MaterialURL(constants.MaterialStoreFront); storeFront != "" {
		biz["shop_entrance_pic"] = storeFront
	}
	if storeIndoor := info.MaterialURL(constants.MaterialStoreIndoor); storeIndoor != "" {
		biz["indoor_pic"] = storeIndoor
	}
	return biz
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
