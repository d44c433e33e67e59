// Package auth provides authentication utilities for API keys.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key format: pk_{env}_{prefix}_{secret}
// Example: pk_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	KeyPrefixLen = 6  // Visible prefix length (hex encoded 3 bytes)
	KeySecretLen = 32 // Secret length (hex encoded 16 bytes)
)

// keyEnv is the environment marker embedded in generated keys.
const keyEnv = "live"

// GeneratedKey contains the parts of a newly generated API key.
type GeneratedKey struct {
	Plaintext string // Full key (show once only)
	Hash      string // SHA-256 hex for storage and lookup
	Prefix    string // 6-char visible prefix
}

// GenerateAPIKey creates a new API key.
// Returns the plaintext key (to show once), hash (to store), and prefix (for display).
func GenerateAPIKey() (*GeneratedKey, error) {
	prefixBytes := make([]byte, KeyPrefixLen/2)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	prefix := hex.EncodeToString(prefixBytes)

	secretBytes := make([]byte, KeySecretLen/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	plaintext := fmt.Sprintf("pk_%s_%s_%s", keyEnv, prefix, secret)

	return &GeneratedKey{
		Plaintext: plaintext,
		Hash:      HashAPIKey(plaintext),
		Prefix:    prefix,
	}, nil
}

// HashAPIKey returns the lowercase hex SHA-256 digest of a raw key.
// The same function is used when a key is created and when it is presented,
// so the digest doubles as the lookup key in storage.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MatchesHash reports whether raw hashes to storedHash.
// Uses constant-time comparison to prevent timing attacks.
func MatchesHash(raw, storedHash string) bool {
	computed := HashAPIKey(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(storedHash))) == 1
}

// KeyPrefix returns the display prefix for a raw key.
// Generated keys expose their embedded prefix; legacy keys expose their
// first KeyPrefixLen characters.
func KeyPrefix(raw string) string {
	parts := strings.Split(raw, "_")
	if len(parts) == 4 && parts[0] == "pk" && len(parts[2]) == KeyPrefixLen {
		return parts[2]
	}
	if len(raw) <= KeyPrefixLen {
		return raw
	}
	return raw[:KeyPrefixLen]
}
