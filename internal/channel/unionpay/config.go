package unionpay

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/paynext/mchapply/internal/channel"

	"golang.org/x/crypto/pkcs12"
)

var (
	ErrConfigInvalid    = errors.New("unionpay config invalid")
	ErrRequestFailed    = errors.New("unionpay request failed")
	ErrResponseInvalid  = errors.New("unionpay response invalid")
	ErrSignatureInvalid = errors.New("unionpay signature invalid")
)

const (
	defaultGatewayURL = "https://gateway.95516.com/gateway/api/appTransReq.do"
	defaultQueryURL   = "https://gateway.95516.com/gateway/api/queryTrans.do"
)

// Config 云闪付服务商进件配置；签名私钥支持 PFX（base64）或 PEM 两种形式。
type Config struct {
	InstID          string `json:"inst_id"`
	SignCertPFX     string `json:"sign_cert_pfx"`
	SignCertPwd     string `json:"sign_cert_pwd"`
	SignPrivateKey  string `json:"sign_private_key"`
	SignCertificate string `json:"sign_cert"`
	VerifyCert      string `json:"verify_cert"`
	GatewayURL      string `json:"gateway_url"`
	QueryURL        string `json:"query_url"`
	BackURL         string `json:"back_url"`
}

// signer 解析后的签名材料
type signer struct {
	key    *rsa.PrivateKey
	certID string
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
	if cfg.InstID == "" {
		return fmt.Errorf("%w: inst_id is required", ErrConfigInvalid)
	}
	if cfg.VerifyCert == "" {
		return fmt.Errorf("%w: verify_cert is required", ErrConfigInvalid)
	}
	for name, raw := range map[string]string{"gateway_url": cfg.GatewayURL, "query_url": cfg.QueryURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("%w: %s is invalid", ErrConfigInvalid, name)
		}
	}
	if _, err := cfg.signer(); err != nil {
		return err
	}
	if _, err := channel.ParsePublicKey(cfg.VerifyCert); err != nil {
		return fmt.Errorf("%w: verify_cert: %v", ErrConfigInvalid, err)
	}
	return nil
}

func (c *Config) signer() (*signer, error) {
	if c.SignCertPFX != "" {
		return c.signerFromPFX()
	}
	if c.SignPrivateKey == "" || c.SignCertificate == "" {
		return nil, fmt.Errorf("%w: sign_cert_pfx or sign_private_key with sign_cert is required", ErrConfigInvalid)
	}
	key, err := channel.ParsePrivateKey(c.SignPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: sign_private_key: %v", ErrConfigInvalid, err)
	}
	cert, err := channel.ParseCertificate(c.SignCertificate)
	if err != nil {
		return nil, fmt.Errorf("%w: sign_cert: %v", ErrConfigInvalid, err)
	}
	return &signer{key: key, certID: cert.SerialNumber.String()}, nil
}

// signerFromPFX 解析银联下发的 PFX 签名证书，certId 取证书序列号的十进制形式
func (c *Config) signerFromPFX() (*signer, error) {
	pfx, err := base64.StdEncoding.DecodeString(c.SignCertPFX)
	if err != nil {
		return nil, fmt.Errorf("%w: sign_cert_pfx is not base64", ErrConfigInvalid)
	}
	blocks, err := pkcs12.ToPEM(pfx, c.SignCertPwd)
	if err != nil {
		return nil, fmt.Errorf("%w: decode sign_cert_pfx failed", ErrConfigInvalid)
	}
	var result signer
	for _, block := range blocks {
		switch block.Type {
		case "PRIVATE KEY", "RSA PRIVATE KEY":
			key, err := channel.ParsePrivateKeyDER(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: sign_cert_pfx: %v", ErrConfigInvalid, err)
			}
			result.key = key
		case "CERTIFICATE":
			if result.certID != "" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: sign_cert_pfx certificate invalid", ErrConfigInvalid)
			}
			result.certID = cert.SerialNumber.String()
		}
	}
	if result.key == nil || result.certID == "" {
		return nil, fmt.Errorf("%w: sign_cert_pfx missing key or certificate", ErrConfigInvalid)
	}
	return &result, nil
}

func (c *Config) normalize() {
	c.InstID = strings.TrimSpace(c.InstID)
	c.SignCertPFX = strings.Join(strings.Fields(c.SignCertPFX), "")
	c.SignPrivateKey = strings.TrimSpace(c.SignPrivateKey)
	c.SignCertificate = strings.TrimSpace(c.SignCertificate)
	c.VerifyCert = strings.TrimSpace(c.VerifyCert)
	c.GatewayURL = strings.TrimSpace(c.GatewayURL)
	if c.GatewayURL == "" {
		c.GatewayURL = defaultGatewayURL
	}
	c.QueryURL = strings.TrimSpace(c.QueryURL)
	if c.QueryURL == "" {
		c.QueryURL = defaultQueryURL
	}
	c.BackURL = strings.TrimSpace(c.BackURL)
}
