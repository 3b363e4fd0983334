package provider

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/paynext/mchapply/internal/config"
	"github.com/paynext/mchapply/internal/constants"
	"github.com/paynext/mchapply/internal/models"
)

func TestBuildRegistrySkipsInvalidChannels(t *testing.T) {
	cfg := &config.Config{
		Channels: config.ChannelsConfig{
			Alipay: map[string]interface{}{"app_id": "2021000000000001"},
		},
	}
	registry := BuildRegistry(context.Background(), cfg, nil)
	if codes := registry.Codes(); len(codes) != 0 {
		t.Fatalf("invalid alipay config should be skipped, got %v", codes)
	}
	if _, err := registry.Get(constants.ChannelCodeAliPay); err == nil {
		t.Fatalf("expected ErrChannelNotSupported for skipped channel")
	}
}

func TestBuildRegistryUsesStoredConfigParams(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key failed: %v", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key failed: %v", err)
	}
	cfg := &config.Config{
		Channels: config.ChannelsConfig{
			Alipay: map[string]interface{}{"app_id": "2021000000000001"},
		},
	}
	stored := []models.ChannelApplyConfig{{
		ChannelCode: "ali_pay",
		IsEnabled:   true,
		ConfigParams: models.JSON{
			"app_id":            "",
			"private_key":       string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})),
			"alipay_public_key": string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})),
		},
	}}

	registry := BuildRegistry(context.Background(), cfg, stored)
	if _, err := registry.Get(constants.ChannelCodeAliPay); err != nil {
		t.Fatalf("stored params should complete the file config: %v", err)
	}
	if _, err := registry.Get(constants.ChannelCodeWxPay); err == nil {
		t.Fatalf("unconfigured channel should stay unregistered")
	}
}

func TestChannelParamsPrefersStoredValues(t *testing.T) {
	file := map[string]interface{}{"app_id": "file-app", "notify_url": "https://file.example.com/notify"}
	overrides := map[string]map[string]interface{}{
		constants.ChannelCodeAliPay: {"app_id": "db-app", "notify_url": " ", "sign_type": nil},
	}
	merged := channelParams(constants.ChannelCodeAliPay, file, overrides)
	if merged["app_id"] != "db-app" {
		t.Fatalf("stored value should win, got %v", merged["app_id"])
	}
	if merged["notify_url"] != "https://file.example.com/notify" {
		t.Fatalf("blank stored value should keep file value, got %v", merged["notify_url"])
	}
	if _, ok := merged["sign_type"]; ok {
		t.Fatalf("nil stored value should be ignored: %v", merged)
	}
	if file["app_id"] != "file-app" {
		t.Fatalf("file config must not be mutated: %v", file)
	}
	if got := channelParams(constants.ChannelCodeWxPay, nil, overrides); got != nil {
		t.Fatalf("channel without any params should stay empty, got %v", got)
	}
}

func TestConfigValidatorsCoverAllChannels(t *testing.T) {
	validators := ConfigValidators()
	for _, code := range []string{constants.ChannelCodeAliPay, constants.ChannelCodeWxPay, constants.ChannelCodeYsfPay} {
		validate, ok := validators[code]
		if !ok {
			t.Fatalf("missing validator for %s", code)
		}
		if err := validate(map[string]interface{}{"unused": "x"}); err == nil {
			t.Fatalf("validator for %s should reject incomplete params", code)
		}
	}
}

func TestTransportOptionsFrom(t *testing.T) {
	opts := TransportOptionsFrom(config.ApplyConfig{
		ChannelTimeoutSeconds: 8,
		ChannelMaxRetries:     3,
		ChannelRetryWaitMS:    250,
	})
	if opts.Timeout != 8*time.Second || opts.MaxRetries != 3 || opts.RetryWait != 250*time.Millisecond {
		t.Fatalf("unexpected transport options: %+v", opts)
	}
}
