package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. The hash:salt wire format is shared with the
// device provisioning tooling, so these values are fixed.
const (
	pbkdf2Iterations = 1000
	pbkdf2KeyLen     = 64
	pbkdf2SaltLen    = 16
)

// HashPassword hashes a plaintext password using PBKDF2-SHA512 and
// returns it as "hexhash:hexsalt".
func HashPassword(password string) (string, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
	return hex.EncodeToString(hash) + ":" + hex.EncodeToString(salt), nil
}

// VerifyPassword checks a plaintext password against a stored
// "hexhash:hexsalt" value. Returns true if the password matches.
// Comparison is constant-time.
func VerifyPassword(password, stored string) (bool, error) {
	hashHex, saltHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false, fmt.Errorf("invalid stored hash format")
	}

	hash, err := hex.DecodeString(hashHex)
	if err != nil {
		return false, fmt.Errorf("decoding hash: %w", err)
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}

	candidate := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, len(hash), sha512.New)
	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}
