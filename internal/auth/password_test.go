package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !strings.Contains(hash, ":") {
		t.Fatalf("hash %q missing hash:salt separator", hash)
	}

	match, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !match {
		t.Error("VerifyPassword() = false for correct password")
	}

	match, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if match {
		t.Error("VerifyPassword() = true for wrong password")
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	h1, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	h2, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical, salts not random")
	}
}

func TestVerifyPasswordMalformedStored(t *testing.T) {
	tests := []string{
		"",
		"no-separator",
		"nothex:abcd",
		"abcd:nothex",
	}
	for _, stored := range tests {
		if _, err := VerifyPassword("pw", stored); err == nil {
			t.Errorf("VerifyPassword(stored=%q) error = nil, want error", stored)
		}
	}
}
