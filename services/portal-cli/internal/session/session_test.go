package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, "42", "contractor", exp)

	got, ok := AccessExpiry(token)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = AccessExpiry("opaque-token")
	assert.False(t, ok)

	_, ok = AccessExpiry("")
	assert.False(t, ok)
}

func TestAccessExpiry_ExpiredTokenStillDecodes(t *testing.T) {
	token := signToken(t, "42", "admin", time.Now().Add(-time.Hour))

	_, ok := AccessExpiry(token)
	assert.True(t, ok)
}

func TestUserFromClaims(t *testing.T) {
	token := signToken(t, "42", "FIELD_MANAGER", time.Now().Add(time.Hour))

	user, ok := UserFromClaims(token)
	require.True(t, ok)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, "42@fieldops.io", user.Email)
	assert.Equal(t, RoleFieldManager, user.Role)

	_, ok = UserFromClaims("not.a.jwt")
	assert.False(t, ok)
}

func TestTokens(t *testing.T) {
	assert.True(t, Tokens{}.Empty())
	assert.False(t, Tokens{AccessToken: "a"}.Complete())
	assert.True(t, Tokens{AccessToken: "a", RefreshToken: "r"}.Complete())
}
