package wechatpay

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/paynext/mchapply/internal/channel"
)

var (
	ErrConfigInvalid    = errors.New("wechatpay config invalid")
	ErrRequestFailed    = errors.New("wechatpay request failed")
	ErrResponseInvalid  = errors.New("wechatpay response invalid")
	ErrSignatureInvalid = errors.New("wechatpay signature invalid")
)

const defaultBaseURL = "https://api.mch.weixin.qq.com"

// Config 微信支付服务商进件配置。
type Config struct {
	SpMchID             string `json:"sp_mchid"`
	MerchantSerialNo    string `json:"merchant_serial_no"`
	MerchantPrivateKey  string `json:"merchant_private_key"`
	APIV3Key            string `json:"api_v3_key"`
	PlatformCertificate string `json:"platform_certificate"`
	BaseURL             string `json:"base_url"`
	ClientCert          string `json:"client_cert"`
	ClientKey           string `json:"client_key"`
}

// ParseConfig 解析配置。
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.normalize()
	return &cfg, nil
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.SpMchID == "" {
		return fmt.Errorf("%w: sp_mchid is required", ErrConfigInvalid)
	}
	if cfg.MerchantSerialNo == "" {
		return fmt.Errorf("%w: merchant_serial_no is required", ErrConfigInvalid)
	}
	if cfg.MerchantPrivateKey == "" {
		return fmt.Errorf("%w: merchant_private_key is required", ErrConfigInvalid)
	}
	if len(cfg.APIV3Key) != 32 {
		return fmt.Errorf("%w: api_v3_key must be 32 chars", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	if _, err := cfg.privateKey(); err != nil {
		return err
	}
	if _, err := cfg.platformCertificate(); err != nil {
		return err
	}
	if (cfg.ClientCert == "") != (cfg.ClientKey == "") {
		return fmt.Errorf("%w: client_cert and client_key must be set together", ErrConfigInvalid)
	}
	if _, err := cfg.clientCertificate(); err != nil {
		return err
	}
	return nil
}

func (c *Config) privateKey() (*rsa.PrivateKey, error) {
	key, err := channel.ParsePrivateKey(c.MerchantPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: merchant_private_key: %v", ErrConfigInvalid, err)
	}
	return key, nil
}

// platformCertificate 未配置时返回 nil，改由证书下载器获取
func (c *Config) platformCertificate() (*x509.Certificate, error) {
	if c.PlatformCertificate == "" {
		return nil, nil
	}
	cert, err := channel.ParseCertificate(c.PlatformCertificate)
	if err != nil {
		return nil, fmt.Errorf("%w: platform_certificate: %v", ErrConfigInvalid, err)
	}
	return cert, nil
}

func (c *Config) clientCertificate() (*tls.Certificate, error) {
	if c.ClientCert == "" || c.ClientKey == "" {
		return nil, nil
	}
	pair, err := tls.X509KeyPair(
		[]byte(strings.ReplaceAll(c.ClientCert, "\\n", "\n")),
		[]byte(strings.ReplaceAll(c.ClientKey, "\\n", "\n")),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: client certificate: %v", ErrConfigInvalid, err)
	}
	return &pair, nil
}

func (c *Config) normalize() {
	c.SpMchID = strings.TrimSpace(c.SpMchID)
	c.MerchantSerialNo = strings.TrimSpace(c.MerchantSerialNo)
	c.MerchantPrivateKey = strings.TrimSpace(c.MerchantPrivateKey)
	c.APIV3Key = strings.TrimSpace(c.APIV3Key)
	c.PlatformCertificate = strings.TrimSpace(c.PlatformCertificate)
	c.ClientCert = strings.TrimSpace(c.ClientCert)
	c.ClientKey = strings.TrimSpace(c.ClientKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
}
