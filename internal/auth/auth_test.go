package auth

import (
	"testing"
	"time"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager("secret", hash, time.Hour)
	if !m.CheckPassword("correct horse") {
		t.Error("expected correct password to verify")
	}
	if m.CheckPassword("wrong") {
		t.Error("expected wrong password to fail")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewManager("secret", "some-hash", time.Hour)

	token, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.ValidateToken(token); err != nil {
		t.Errorf("expected valid token, got %v", err)
	}
}

func TestTokenRejectedWithWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", "hash", time.Hour)
	verifier := NewManager("secret-b", "hash", time.Hour)

	token, err := issuer.GenerateToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := verifier.ValidateToken(token); err == nil {
		t.Error("expected token signed with different secret to fail")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewManager("secret", "hash", -time.Minute)

	token, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.ValidateToken(token); err == nil {
		t.Error("expected expired token to fail validation")
	}
}

func TestAuthDisabledWithoutHash(t *testing.T) {
	m := NewManager("secret", "", time.Hour)
	if m.Enabled() {
		t.Error("expected auth disabled with empty hash")
	}
}
