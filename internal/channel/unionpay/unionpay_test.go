package unionpay

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paynext/mchapply/internal/channel"
	"github.com/paynext/mchapply/internal/constants"
)

type certKey struct {
	key     *rsa.PrivateKey
	keyPEM  string
	certPEM string
	serial  *big.Int
}

func newCertKey(t *testing.T, serial int64) certKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "unionpay-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate failed: %v", err)
	}
	return certKey{
		key:     key,
		keyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
		certPEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		serial:  template.SerialNumber,
	}
}

type fixture struct {
	merchant certKey
	bank     certKey
	adapter  *Adapter
	hits     *int32
}

// newFixture 启动网关桩：用商户证书验签请求，用“银联”证书对应答签名
func newFixture(t *testing.T, handler func(w http.ResponseWriter, params map[string]string) (map[string]string, bool)) *fixture {
	t.Helper()
	f := &fixture{merchant: newCertKey(t, 69042905377), bank: newCertKey(t, 75871483997), hits: new(int32)}
	var bankSigner *Adapter
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(f.hits, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form failed: %v", err)
			return
		}
		params := channel.FlattenForm(r.PostForm)
		if params["certId"] != "69042905377" || params["version"] != version || params["instId"] != "INST001" {
			t.Errorf("unexpected common params: %v", params)
		}
		if err := f.adapter.verifyWith(&f.merchant.key.PublicKey, params); err != nil {
			t.Errorf("request signature invalid: %v", err)
		}
		reply, ok := handler(w, params)
		if !ok {
			return
		}
		reply["version"] = version
		reply["signMethod"] = signMethodRSA
		signature, err := bankSigner.Sign(reply)
		if err != nil {
			t.Errorf("sign reply failed: %v", err)
		}
		reply["signature"] = signature
		_, _ = w.Write([]byte(encodeRaw(reply)))
	}))
	t.Cleanup(server.Close)

	f.adapter = newAdapter(t, f.merchant, f.bank, server.URL)
	bankSigner = newAdapter(t, f.bank, f.bank, server.URL)
	return f
}

func newAdapter(t *testing.T, signer, verifier certKey, baseURL string) *Adapter {
	t.Helper()
	cfg, err := ParseConfig(map[string]interface{}{
		"inst_id":          "INST001",
		"sign_private_key": signer.keyPEM,
		"sign_cert":        signer.certPEM,
		"verify_cert":      verifier.certPEM,
		"gateway_url":      baseURL + "/gateway/api/appTransReq.do",
		"query_url":        baseURL + "/gateway/api/queryTrans.do",
		"back_url":         "https://example.com/api/v1/apply/notify/YSF_PAY",
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	adapter, err := New(cfg, channel.TransportOptions{Timeout: 2 * time.Second, MaxRetries: 2, RetryWait: time.Millisecond})
	if err != nil {
		t.Fatalf("new adapter failed: %v", err)
	}
	return adapter
}

// verifyWith 测试辅助：使用指定公钥验签
func (a *Adapter) verifyWith(publicKey *rsa.PublicKey, params map[string]string) error {
	saved := a.verifyKey
	a.verifyKey = publicKey
	defer func() { a.verifyKey = saved }()
	return a.Verify(params)
}

// encodeRaw 按银联应答格式拼接，值不做 URL 编码
func encodeRaw(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+fields[key])
	}
	return strings.Join(parts, "&")
}

func validApplyInfo() *channel.ApplyInfo {
	return &channel.ApplyInfo{
		ApplyID:      "MA20240101000000111111",
		MchNo:        "M003",
		ChannelCode:  constants.ChannelCodeYsfPay,
		MerchantInfo: channel.MerchantInfo{MerchantName: "上海测试便利店", ShortName: "测试便利"},
		ContactInfo:  channel.ContactInfo{ContactName: "王五", ContactPhone: "13700000000"},
		SubjectInfo:  channel.SubjectInfo{LicenseNo: "91310000MA00000000", LegalPerson: "王五"},
		SettlementInfo: channel.SettlementInfo{
			AccountName: "上海测试便利店",
			AccountNo:   "6222000000000000000",
			BankName:    "中国工商银行",
		},
		Materials: []channel.MaterialInfo{
			{MaterialType: constants.MaterialBusinessLicense, FileURL: "https://files.example.com/license.png"},
			{MaterialType: constants.MaterialLegalIDFront, FileURL: "https://files.example.com/front.png"},
			{MaterialType: constants.MaterialBankAccountLicense, FileURL: "https://files.example.com/bank.png"},
		},
	}
}

func TestSubmitMissingMaterialSkipsNetwork(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, params map[string]string) (map[string]string, bool) {
		return map[string]string{"respCode": "00", "applyId": "UP1"}, true
	})
	info := validApplyInfo()
	info.Materials = info.Materials[:2]

	result := f.adapter.SubmitToChannel(context.Background(), info)
	if result.Success || result.ErrorCode != constants.ResultCodeValidationError {
		t.Fatalf("expected validation failure, got %+v", result)
	}
	if got := atomic.LoadInt32(f.hits); got != 0 {
		t.Fatalf("expected no gateway call, got %d", got)
	}
}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, params map[string]string) (map[string]string, bool) {
		if params["orderId"] != "MA20240101000000111111" || params["merName"] != "上海测试便利店" {
			t.Errorf("unexpected apply params: %v", params)
		}
		if params["backUrl"] == "" {
			t.Errorf("backUrl is missing")
		}
		return map[string]string{"respCode": "00", "respMsg": "成功[0000000]", "applyId": "UP202401010001"}, true
	})

	result := f.adapter.SubmitToChannel(context.Background(), validApplyInfo())
	if !result.Success || result.ChannelApplyID != "UP202401010001" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ApplyStatus != constants.ApplyStatusChannelProcessing {
		t.Fatalf("unexpected status: %d", result.ApplyStatus)
	}
}

func TestSubmitBusinessFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, params map[string]string) (map[string]string, bool) {
		return map[string]string{"respCode": "12", "respMsg": "重复交易"}, true
	})

	result := f.adapter.SubmitToChannel(context.Background(), validApplyInfo())
	if result.Success || result.ErrorCode != constants.ResultCodeChannelError || result.ChannelStatus != "12" {
		t.Fatalf("expected channel error, got %+v", result)
	}
	if got := atomic.LoadInt32(f.hits); got != 1 {
		t.Fatalf("business failure must not be retried, got %d", got)
	}
}

func TestSubmitRetriesTransientFailure(t *testing.T) {
	var attempts int32
	f := newFixture(t, func(w http.ResponseWriter, params map[string]string) (map[string]string, bool) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return nil, false
		}
		return map[string]string{"respCode": "00", "applyId": "UP2"}, true
	})

	result := f.adapter.SubmitToChannel(context.Background(), validApplyInfo())
	if !result.Success || result.ChannelApplyID != "UP2" {
		t.Fatalf("expected success after retries, got %+v", result)
	}
	if got := atomic.LoadInt32(f.hits); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestSubmitRejectsUnsignedResponse(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, params map[string]string) (map[string]string, bool) {
		_, _ = w.Write([]byte("respCode=00&applyId=UP3&signature=Zm9yZ2Vk"))
		return nil, false
	})

	result := f.adapter.SubmitToChannel(context.Background(), validApplyInfo())
	if !result.IsSystemError() {
		t.Fatalf("unsigned response must fail, got %+v", result)
	}
}

func TestQueryChannelStatus(t *testing.T) {
	cases := []struct {
		status   string
		expected int
		merID    string
	}{
		{status: "00", expected: constants.ApplyStatusApproved, merID: "898310000000001"},
		{status: "02", expected: constants.ApplyStatusChannelProcessing},
		{status: "04", expected: constants.ApplyStatusRejected},
		{status: "99", expected: constants.ApplyStatusRejected},
	}
	for _, tc := range cases {
		status := tc.status
		f := newFixture(t, func(w http.ResponseWriter, params map[string]string) (map[string]string, bool) {
			if params["txnType"] != txnTypeQuery || params["applyId"] != "UP1" {
				t.Errorf("unexpected query params: %v", params)
			}
			return map[string]string{"respCode": "00", "applyId": "UP1", "status": status, "merId": "898310000000001"}, true
		})
		result := f.adapter.QueryChannelStatus(context.Background(), "UP1")
		if !result.Success || result.ApplyStatus != tc.expected || result.SubMchID != tc.merID {
			t.Fatalf("status %s: unexpected result %+v", tc.status, result)
		}
	}
}

func TestHandleChannelNotify(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, params map[string]string) (map[string]string, bool) {
		return nil, false
	})
	bank := newAdapter(t, f.bank, f.bank, "https://gateway.95516.com")

	params := map[string]string{
		"version":    version,
		"signMethod": signMethodRSA,
		"applyId":    "UP1",
		"status":     "00",
		"merId":      "898310000000001",
	}
	signature, err := bank.Sign(params)
	if err != nil {
		t.Fatalf("sign notify failed: %v", err)
	}
	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	form.Set("signature", signature)

	result := f.adapter.HandleChannelNotify(context.Background(), &channel.NotifyRequest{Body: []byte(form.Encode())})
	if !result.Success || result.ApplyStatus != constants.ApplyStatusApproved || result.SubMchID != "898310000000001" {
		t.Fatalf("unexpected notify result: %+v", result)
	}

	form.Set("status", "03")
	tampered := f.adapter.HandleChannelNotify(context.Background(), &channel.NotifyRequest{Body: []byte(form.Encode())})
	if tampered.Success || tampered.ErrorCode != constants.ResultCodeSignInvalid {
		t.Fatalf("tampered notify must be rejected, got %+v", tampered)
	}
}

func TestParseResponseKeepsRawValues(t *testing.T) {
	fields := ParseResponse("respCode=00&signature=ab+c/d==&reserved={a=1&b=2}&respMsg=成功")
	if fields["signature"] != "ab+c/d==" {
		t.Fatalf("signature should not be decoded: %q", fields["signature"])
	}
	if fields["reserved"] != "{a=1&b=2}" {
		t.Fatalf("nested value broken: %q", fields["reserved"])
	}
	if fields["respMsg"] != "成功" || len(fields) != 4 {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestValidateConfigRequiresSigner(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{"inst_id": "INST001", "verify_cert": "x"})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if cfg.GatewayURL != defaultGatewayURL || cfg.QueryURL != defaultQueryURL {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected signer required error")
	}
}
