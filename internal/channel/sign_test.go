package channel

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"
)

func TestSortedContentSkipsEmptyAndExcluded(t *testing.T) {
	content := SortedContent(map[string]string{
		"b":         "2",
		"a":         "1",
		"sign":      "xxx",
		"sign_type": "RSA2",
		"empty":     "",
	}, "sign", "sign_type")
	if content != "a=1&b=2" {
		t.Fatalf("unexpected content: %s", content)
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key failed: %v", err)
	}
	privatePEM := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}))
	// 转义换行的配置形式
	parsed, err := ParsePrivateKey(strings.ReplaceAll(privatePEM, "\n", "\\n"))
	if err != nil {
		t.Fatalf("parse private key failed: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key failed: %v", err)
	}
	publicKey, err := ParsePublicKey(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})))
	if err != nil {
		t.Fatalf("parse public key failed: %v", err)
	}

	signature, err := SignPKCS1v15(parsed, crypto.SHA256, []byte("a=1&b=2"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if err := VerifyPKCS1v15(publicKey, crypto.SHA256, []byte("a=1&b=2"), signature); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := VerifyPKCS1v15(publicKey, crypto.SHA256, []byte("a=1&b=3"), signature); err == nil {
		t.Fatalf("tampered content should fail verification")
	}
}

func TestParsePublicKeyFromCertificate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(69026012345),
		Subject:      pkix.Name{CommonName: "verify"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate failed: %v", err)
	}
	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	publicKey, err := ParsePublicKey(certPEM)
	if err != nil {
		t.Fatalf("parse certificate public key failed: %v", err)
	}
	if publicKey.N.Cmp(key.PublicKey.N) != 0 {
		t.Fatalf("certificate public key mismatch")
	}
	cert, err := ParseCertificate(certPEM)
	if err != nil || cert.SerialNumber.Int64() != 69026012345 {
		t.Fatalf("parse certificate failed: %v", err)
	}
}
