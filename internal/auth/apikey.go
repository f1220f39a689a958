package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix marks every API key this service issues; the handler layer
// uses it to tell bearer-authenticated requests from browser ones.
const KeyPrefix = "jf_"

// prefixLen is the number of leading key characters stored in clear for
// lookup.
const prefixLen = len(KeyPrefix) + 8

type contextKey string

const apiKeyIDKey contextKey = "api_key_id"

// GenerateToken returns n random bytes, hex encoded.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func HashPassword(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// NewAPIKey generates a fresh key. Only the prefix and the bcrypt hash are
// meant to be persisted; the full key is shown to the operator once.
func NewAPIKey() (key, prefix, hash string, err error) {
	tok, err := GenerateToken(24)
	if err != nil {
		return "", "", "", err
	}
	key = KeyPrefix + tok
	hash, err = HashPassword(key)
	if err != nil {
		return "", "", "", err
	}
	return key, key[:prefixLen], hash, nil
}

// SplitPrefix returns the lookup prefix of a presented key, or false when the
// key cannot have been issued by NewAPIKey.
func SplitPrefix(key string) (string, bool) {
	if len(key) <= prefixLen || key[:len(KeyPrefix)] != KeyPrefix {
		return "", false
	}
	return key[:prefixLen], true
}

func ContextWithAPIKey(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, apiKeyIDKey, id)
}

func APIKeyFromContext(ctx context.Context) string {
	v, _ := ctx.Value(apiKeyIDKey).(string)
	return v
}
