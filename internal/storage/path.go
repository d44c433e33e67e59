package storage

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"
)

const (
	jobPathRoot   = "print_jobs"
	tokenLen      = 6
	tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// JobPath builds the object path for a document:
// print_jobs/{accountID}/{unixMillis}_{token}.pdf
func JobPath(accountID string, now time.Time, token string) string {
	return fmt.Sprintf("%s/%s/%d_%s.pdf", jobPathRoot, accountID, now.UnixMilli(), token)
}

// NewJobPath builds a job path with a fresh random token.
func NewJobPath(accountID string, now time.Time) (string, error) {
	token, err := randomToken(tokenLen)
	if err != nil {
		return "", err
	}
	return JobPath(accountID, now, token), nil
}

// randomToken returns n lowercase base36 characters from crypto/rand.
func randomToken(n int) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate path token: %w", err)
		}
		b.WriteByte(tokenAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// cleanPath rejects paths that could escape the bucket.
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned != p || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
