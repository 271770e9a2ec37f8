package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.NotContains(t, hash, "secret123")

	assert.True(t, h.Verify("secret123", hash))
	assert.False(t, h.Verify("secret124", hash))
	assert.False(t, h.Verify("secret123", "not-a-hash"))

	// ソルトが毎回変わる
	again, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestBcryptHasherLongPassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	long := strings.Repeat("a", 80)

	hash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(long, hash))
	assert.False(t, h.Verify(strings.Repeat("b", 80), hash))

	// 73バイト目以降は照合に影響しない
	assert.True(t, h.Verify(strings.Repeat("a", 72)+"zzzz", hash))
	assert.False(t, h.Verify(strings.Repeat("a", 71), hash))
}
