package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var hsSecret = []byte("0123456789abcdef0123456789abcdef")

func rsaPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func TestNewSignerRejectsBadConfig(t *testing.T) {
	cases := []SignerConfig{
		{Algorithm: HS256, Secret: hsSecret},
		{Algorithm: HS256, Secret: []byte("short"), TTL: time.Minute},
		{Algorithm: RS256, RSAKeyPEM: []byte("not pem"), TTL: time.Minute},
		{Algorithm: "none", TTL: time.Minute},
	}
	for i, cfg := range cases {
		if _, err := NewSigner(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestMintAndVerifyHS256(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSigner(SignerConfig{
		Algorithm: HS256,
		Secret:    hsSecret,
		TTL:       time.Hour,
		Issuer:    "authsession-test",
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	tok, err := s.Mint("alice", "s1", 3)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "alice" || claims.Session != "s1" || claims.Generation != 3 {
		t.Fatalf("unexpected claims %+v", claims)
	}

	now = now.Add(2 * time.Hour)
	if _, err := s.Verify(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestMintAndVerifyRS256(t *testing.T) {
	s, err := NewSigner(SignerConfig{Algorithm: RS256, RSAKeyPEM: rsaPEM(t), TTL: time.Minute})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	tok, err := s.Mint("bob", "s2", 1)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("verify: %v", err)
	}

	exp, ok := Expiry(tok)
	if !ok || exp.Before(time.Now()) {
		t.Fatalf("Expiry = %v, %v", exp, ok)
	}
}

func TestVerifyRejectsOtherAlgorithm(t *testing.T) {
	rs, err := NewSigner(SignerConfig{Algorithm: RS256, RSAKeyPEM: rsaPEM(t), TTL: time.Minute})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := rs.Verify(forged); err == nil {
		t.Fatal("expected HS256 token to be rejected by an RS256 signer")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	a, _ := NewSigner(SignerConfig{Algorithm: HS256, Secret: hsSecret, TTL: time.Minute, Issuer: "a"})
	b, _ := NewSigner(SignerConfig{Algorithm: HS256, Secret: hsSecret, TTL: time.Minute, Issuer: "b"})
	tok, err := a.Mint("u", "s", 0)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := b.Verify(tok); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}
