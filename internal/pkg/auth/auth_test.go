package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "marketplace-test"},
		JWT: config.JWTConfig{
			Secret:             "0123456789abcdef0123456789abcdef",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(testConfig())

	pair, err := m.GenerateTokenPair(42, "buyer@example.com", "buyer")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "buyer", claims.Role)

	refresh, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refresh.Role)
}

func TestJWTManager_RejectsWrongType(t *testing.T) {
	m := NewJWTManager(testConfig())
	pair, err := m.GenerateTokenPair(1, "a@example.com", "admin")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWTManager_RejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewJWTManager(testConfig())
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := m.GenerateTokenPair(1, "a@example.com", "buyer")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().UTC() }
	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := testConfig()
	other.JWT.Secret = "ffffffffffffffffffffffffffffffff"
	foreign, err := NewJWTManager(other).GenerateTokenPair(1, "a@example.com", "buyer")
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(foreign.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Empty(t, ExtractTokenFromHeader("Basic abc"))
	assert.Empty(t, ExtractTokenFromHeader(""))
}

func TestPasswordManager(t *testing.T) {
	p := NewPasswordManager(testConfig())

	hash, err := p.HashPassword("Secret123")
	require.NoError(t, err)
	assert.NoError(t, p.VerifyPassword("Secret123", hash))
	assert.ErrorIs(t, p.VerifyPassword("Secret124", hash), ErrPasswordMismatch)

	cases := map[string]string{
		"short":     "Ab1",
		"no upper":  "secret123",
		"no lower":  "SECRET123",
		"no number": "SecretPass",
		"repeating": "Secrettt123",
	}
	for name, pw := range cases {
		t.Run(name, func(t *testing.T) {
			var policyErr *PasswordPolicyError
			assert.ErrorAs(t, p.ValidatePassword(pw), &policyErr)
		})
	}
}

func TestOpaqueToken(t *testing.T) {
	token, hash, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, hash, HashOpaqueToken(token))
	assert.NotEqual(t, token, hash)
}
