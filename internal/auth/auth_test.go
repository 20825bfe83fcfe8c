package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv("FINAI_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != DeviceSubject {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestRejectsTamperedToken(t *testing.T) {
	t.Setenv("FINAI_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAndValidate(token + "x"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("FINAI_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if Enabled() {
		t.Fatal("auth must be disabled without a secret")
	}
	if _, err := GenerateToken(time.Minute); err == nil {
		t.Fatal("expected error without a secret")
	}
}
