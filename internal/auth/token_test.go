package auth

import (
	"errors"
	"testing"
)

const testSecret = "test-secret-at-least-32-characters!!"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateAccessToken("admin", testSecret, 60)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("Subject = %q, want admin", claims.Subject)
	}
	if claims.SessionID == "" {
		t.Error("SessionID empty")
	}
	if claims.ID == "" {
		t.Error("token ID empty")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("admin", testSecret, 60)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	_, err = ParseToken(token, "completely-different-secret-value!!!")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}
