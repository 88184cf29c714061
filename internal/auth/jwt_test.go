package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	claims := UserClaims{
		UserID: "u-123",
		Email:  "trader@example.com",
		Role:   "admin",
	}

	token, err := m.GenerateAccessToken(claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	got, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got != claims {
		t.Errorf("claims round trip mismatch: %+v != %+v", *got, claims)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	token, err := m.GenerateAccessToken(UserClaims{UserID: "u-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = m.ValidateAccessToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected TOKEN_EXPIRED, got %v", err)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-a", time.Hour)
	verifier := NewJWTManager("secret-b", time.Hour)

	token, err := issuer.GenerateAccessToken(UserClaims{UserID: "u-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = verifier.ValidateAccessToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected INVALID_TOKEN, got %v", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	if _, err := m.ValidateAccessToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected INVALID_TOKEN, got %v", err)
	}
}
