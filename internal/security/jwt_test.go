package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func TestVerifier_HS256RoundTrip(t *testing.T) {
	v, err := NewHS256Verifier("s3cret")
	if err != nil {
		t.Fatalf("NewHS256Verifier: %v", err)
	}

	tok, err := SignHS256("s3cret", "u1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != "u1" {
		t.Fatalf("id = %q, want u1", id)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v, _ := NewHS256Verifier("s3cret")

	wrongKey, _ := SignHS256("other", "u1", time.Hour)
	expired, _ := SignHS256("s3cret", "u1", -time.Hour)
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("s3cret"))

	cases := []struct {
		name string
		tok  string
		want error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"no user claim", noUser, ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.tok); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestVerifier_FallsBackToSubject(t *testing.T) {
	v, _ := NewHS256Verifier("k")
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "42",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("k"))

	id, err := v.Verify(tok)
	if err != nil || id != "42" {
		t.Fatalf("id=%q err=%v", id, err)
	}
}

func TestVerifier_RS256RejectsHS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	der, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)
	path := filepath.Join(t.TempDir(), "pub.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write pem: %v", err)
	}

	v, err := NewVerifier(VerifierConfig{Alg: "rs256", PublicKeyPath: path, Issuer: "auth"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	good, _ := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"userId": "u9", "iss": "auth", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(key)
	if id, err := v.Verify(good); err != nil || id != "u9" {
		t.Fatalf("rs256 verify: id=%q err=%v", id, err)
	}

	badIss, _ := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"userId": "u9", "iss": "other", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(key)
	if _, err := v.Verify(badIss); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("issuer mismatch must fail, got %v", err)
	}

	hs, _ := SignHS256("whatever", "u9", time.Minute)
	if _, err := v.Verify(hs); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg confusion must fail, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := BearerToken("bearer abc"); got != "abc" {
		t.Fatalf("scheme is case-insensitive, got %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := BearerToken("Bearer "); got != "" {
		t.Fatalf("got %q", got)
	}
}
