package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	KeyPrefixLive  = "kbk_live_"
	KeyPrefixTest  = "kbk_test_"
	base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// GenerateAPIKey returns a raw key and the hash to put in auth.key_hashes.
func GenerateAPIKey(kind string) (string, string, error) {
	var prefix string
	switch kind {
	case "live":
		prefix = KeyPrefixLive
	case "test":
		prefix = KeyPrefixTest
	default:
		return "", "", fmt.Errorf("invalid key kind: %s", kind)
	}

	suffix, err := randomBase62(32)
	if err != nil {
		return "", "", err
	}
	raw := prefix + suffix
	return raw, HashKey(raw), nil
}

func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func VerifyKey(raw, hash string) bool {
	computed := HashKey(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(strings.TrimSpace(hash)))) == 1
}

// VerifyAny checks raw against every hash without returning early.
func VerifyAny(raw string, hashes []string) bool {
	if raw == "" {
		return false
	}
	ok := false
	for _, h := range hashes {
		if VerifyKey(raw, h) {
			ok = true
		}
	}
	return ok
}

func DetectKeyKind(raw string) string {
	switch {
	case strings.HasPrefix(raw, KeyPrefixLive):
		return "live"
	case strings.HasPrefix(raw, KeyPrefixTest):
		return "test"
	default:
		return ""
	}
}

func randomBase62(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	buf := make([]byte, n)
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("random: %w", err)
	}
	for i := range raw {
		buf[i] = base62Alphabet[int(raw[i])%len(base62Alphabet)]
	}
	return string(buf), nil
}
