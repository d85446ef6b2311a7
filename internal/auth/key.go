package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Key format: pk_{env}_{prefix}_{secret}
// Example: pk_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	EnvLive = "live"
	EnvTest = "test"

	prefixBytes = 3  // 6 hex chars, stored in clear for lookup
	secretBytes = 16 // 32 hex chars
)

// ErrInvalidKeyFormat indicates the key does not match pk_{env}_{prefix}_{secret}.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

var keyFormat = regexp.MustCompile(`^pk_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// Key is a parsed API key.
type Key struct {
	Env    string
	Prefix string
	Secret string
}

// String returns the plaintext form of the key.
func (k Key) String() string {
	return fmt.Sprintf("pk_%s_%s_%s", k.Env, k.Prefix, k.Secret)
}

// NewKey generates a random key for env. Unknown environments become live.
func NewKey(env string) (Key, error) {
	if env != EnvTest {
		env = EnvLive
	}

	prefix, err := randomHex(prefixBytes)
	if err != nil {
		return Key{}, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(secretBytes)
	if err != nil {
		return Key{}, fmt.Errorf("generate secret: %w", err)
	}

	return Key{Env: env, Prefix: prefix, Secret: secret}, nil
}

// ParseKey splits a plaintext key into its parts.
func ParseKey(plaintext string) (Key, error) {
	m := keyFormat.FindStringSubmatch(plaintext)
	if m == nil {
		return Key{}, ErrInvalidKeyFormat
	}
	return Key{Env: m[1], Prefix: m[2], Secret: m[3]}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
