package alipay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/paynext/mchapply/internal/channel"
)

var (
	ErrConfigInvalid    = errors.New("alipay config invalid")
	ErrRequestFailed    = errors.New("alipay request failed")
	ErrResponseInvalid  = errors.New("alipay response invalid")
	ErrSignatureInvalid = errors.New("alipay signature invalid")
)

const defaultGatewayURL = "https://openapi.alipay.com/gateway.do"

// Config 支付宝开放平台进件配置。
type Config struct {
	AppID           string `json:"app_id"`
	PrivateKey      string `json:"private_key"`
	AlipayPublicKey string `json:"alipay_public_key"`
	GatewayURL      string `json:"gateway_url"`
	NotifyURL       string `json:"notify_url"`
	AppAuthToken    string `json:"app_auth_token"`
	SignType        string `json:"sign_type"`
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
	if cfg.AppID == "" {
		return fmt.Errorf("%w: app_id is required", ErrConfigInvalid)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("%w: private_key is required", ErrConfigInvalid)
	}
	if cfg.AlipayPublicKey == "" {
		return fmt.Errorf("%w: alipay_public_key is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.GatewayURL); err != nil {
		return fmt.Errorf("%w: gateway_url is invalid", ErrConfigInvalid)
	}
	if cfg.NotifyURL != "" {
		if _, err := url.ParseRequestURI(cfg.NotifyURL); err != nil {
			return fmt.Errorf("%w: notify_url is invalid", ErrConfigInvalid)
		}
	}
	if cfg.SignType != "RSA2" {
		return fmt.Errorf("%w: sign_type must be RSA2", ErrConfigInvalid)
	}
	if _, err := channel.ParsePrivateKey(cfg.PrivateKey); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if _, err := channel.ParsePublicKey(cfg.AlipayPublicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.AppID = strings.TrimSpace(c.AppID)
	c.PrivateKey = strings.TrimSpace(c.PrivateKey)
	c.AlipayPublicKey = strings.TrimSpace(c.AlipayPublicKey)
	c.GatewayURL = strings.TrimSpace(c.GatewayURL)
	if c.GatewayURL == "" {
		c.GatewayURL = defaultGatewayURL
	}
	c.NotifyURL = strings.TrimSpace(c.NotifyURL)
	c.AppAuthToken = strings.TrimSpace(c.AppAuthToken)
	c.SignType = strings.ToUpper(strings.TrimSpace(c.SignType))
	if c.SignType == "" {
		c.SignType = "RSA2"
	}
}
