package auth

import (
	"regexp"
	"strings"
	"testing"
)

var generatedKeyPattern = regexp.MustCompile(`^pk_live_[a-f0-9]{6}_[a-f0-9]{32}$`)

func TestGenerateAPIKey_Format(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if !generatedKeyPattern.MatchString(key.Plaintext) {
		t.Errorf("unexpected key format: %s", key.Plaintext)
	}
	if len(key.Prefix) != KeyPrefixLen {
		t.Errorf("Prefix should be %d chars, got: %d", KeyPrefixLen, len(key.Prefix))
	}
	if !strings.Contains(key.Plaintext, key.Prefix) {
		t.Error("Plaintext should contain prefix")
	}
	if key.Hash != HashAPIKey(key.Plaintext) {
		t.Error("Hash should be the SHA-256 of the plaintext")
	}
	if strings.Contains(key.Hash, key.Plaintext) {
		t.Error("Hash must not contain the plaintext")
	}
}

func TestGenerateAPIKey_UniqueSecrets(t *testing.T) {
	t.Parallel()

	const numKeys = 100
	seen := make(map[string]bool, numKeys)

	for i := 0; i < numKeys; i++ {
		key, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey failed: %v", err)
		}
		if seen[key.Plaintext] {
			t.Errorf("Duplicate key generated at iteration %d", i)
		}
		seen[key.Plaintext] = true
	}
}

func TestHashAPIKey_KnownVector(t *testing.T) {
	t.Parallel()

	// sha256("abc123")
	const want = "6ca13d52ca70c883e0f0bb101e425a89e8624de51db2d2392593af6a84118090"
	if got := HashAPIKey("abc123"); got != want {
		t.Errorf("HashAPIKey(abc123) = %s, want %s", got, want)
	}
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	t.Parallel()

	input := "pk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b"
	if HashAPIKey(input) != HashAPIKey(input) {
		t.Error("Same input should produce same hash")
	}
	if len(HashAPIKey(input)) != 64 {
		t.Errorf("Hash should be 64 hex chars, got %d", len(HashAPIKey(input)))
	}
	if HashAPIKey("input-one") == HashAPIKey("input-two") {
		t.Error("Different input should produce different hash")
	}
}

func TestMatchesHash(t *testing.T) {
	t.Parallel()

	stored := HashAPIKey("abc123")

	tests := []struct {
		name      string
		presented string
		want      bool
	}{
		{"same key", "abc123", true},
		{"different key", "abc124", false},
		{"prefix of key", "abc12", false},
		{"empty", "", false},
		{"case differs", "ABC123", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := MatchesHash(tt.presented, stored); got != tt.want {
				t.Errorf("MatchesHash(%q) = %v, want %v", tt.presented, got, tt.want)
			}
		})
	}
}

func TestMatchesHash_UppercaseStoredHash(t *testing.T) {
	t.Parallel()

	stored := strings.ToUpper(HashAPIKey("abc123"))
	if !MatchesHash("abc123", stored) {
		t.Error("stored hash comparison should be case-insensitive")
	}
}

func TestKeyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"generated key", "pk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", "abc123"},
		{"legacy alphanumeric key", "Xy7QwErTyUiOpAsDfGhJkLzXcVbNm123", "Xy7QwE"},
		{"short key", "abc", "abc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := KeyPrefix(tt.key); got != tt.want {
				t.Errorf("KeyPrefix(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
