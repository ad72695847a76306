package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyKey(t *testing.T) {
	key, hash, err := GenerateAPIKey("live")
	require.NoError(t, err)

	assert.Equal(t, "live", DetectKeyKind(key))
	assert.True(t, VerifyKey(key, hash))
	assert.True(t, VerifyKey(key, strings.ToUpper(hash)))
	assert.False(t, VerifyKey(key+"x", hash))
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	_, _, err := GenerateAPIKey("remote")
	assert.Error(t, err)
}

func TestVerifyAny(t *testing.T) {
	a, hashA, err := GenerateAPIKey("live")
	require.NoError(t, err)
	b, _, err := GenerateAPIKey("test")
	require.NoError(t, err)

	hashes := []string{"deadbeef", hashA}
	assert.True(t, VerifyAny(a, hashes))
	assert.False(t, VerifyAny(b, hashes))
	assert.False(t, VerifyAny("", hashes))
	assert.False(t, VerifyAny(a, nil))
}
