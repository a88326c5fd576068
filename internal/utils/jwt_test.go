package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTUtil(secret string, now func() time.Time) *JWTUtil {
	return NewJWTUtil(JWTConfig{
		Secret:   secret,
		Issuer:   "tianyishenshu",
		ShortTTL: 24 * time.Hour,
		LongTTL:  30 * 24 * time.Hour,
		Now:      now,
	})
}

func TestJWTUtil_RoundTrip(t *testing.T) {
	jwtUtil := newTestJWTUtil("secret", nil)

	tokenString, expiresAt, err := jwtUtil.GenerateToken("u1", "13800000000", []string{"user"}, false)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenString)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, 5*time.Second)

	claims, err := jwtUtil.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "13800000000", claims.Phone)
	assert.Equal(t, []string{"user"}, claims.Roles)
	assert.Equal(t, "tianyishenshu", claims.Issuer)
}

func TestJWTUtil_TokenHasThreeSegments(t *testing.T) {
	jwtUtil := newTestJWTUtil("secret", nil)

	tokenString, _, err := jwtUtil.GenerateToken("u1", "13800000000", []string{"user"}, false)
	require.NoError(t, err)
	assert.Len(t, strings.Split(tokenString, "."), 3)
}

func TestJWTUtil_RememberMeSelectsLongTTL(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	jwtUtil := newTestJWTUtil("secret", func() time.Time { return fixed })

	_, shortExp, err := jwtUtil.GenerateToken("u1", "13800000000", []string{"user"}, false)
	require.NoError(t, err)
	_, longExp, err := jwtUtil.GenerateToken("u1", "13800000000", []string{"user"}, true)
	require.NoError(t, err)

	assert.Equal(t, fixed.Add(24*time.Hour), shortExp)
	assert.Equal(t, fixed.Add(30*24*time.Hour), longExp)
}

func TestJWTUtil_ExpiryBoundary(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	jwtUtil := NewJWTUtil(JWTConfig{
		Secret:   "secret",
		Issuer:   "tianyishenshu",
		ShortTTL: time.Second,
		LongTTL:  time.Second,
		Now:      func() time.Time { return now },
	})

	tokenString, _, err := jwtUtil.GenerateToken("u1", "13800000000", []string{"user"}, false)
	require.NoError(t, err)

	_, err = jwtUtil.ValidateToken(tokenString)
	assert.NoError(t, err, "token must be accepted at t=0")

	now = t0.Add(2 * time.Second)
	_, err = jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_InvalidToken(t *testing.T) {
	jwtUtil := newTestJWTUtil("secret", nil)

	_, err := jwtUtil.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = jwtUtil.ValidateToken("")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_WrongSecret(t *testing.T) {
	jwtUtil1 := newTestJWTUtil("secret1", nil)
	jwtUtil2 := newTestJWTUtil("secret2", nil)

	tokenString, _, _ := jwtUtil1.GenerateToken("u1", "13800000000", []string{"user"}, false)

	_, err := jwtUtil2.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_ExpiredWithWrongSecretIsInvalid(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuer := newTestJWTUtil("secret1", func() time.Time { return past })
	validator := newTestJWTUtil("secret2", nil)

	tokenString, _, _ := issuer.GenerateToken("u1", "13800000000", []string{"user"}, false)

	_, err := validator.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_InvalidSigningMethod(t *testing.T) {
	jwtUtil := newTestJWTUtil("secret", nil)
	claims := &JWTClaims{
		Phone: "13800000000",
		Roles: []string{"admin", "user"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tianyishenshu",
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	tokenString, _ := token.SignedString([]byte("secret"))

	_, err := jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_WrongIssuer(t *testing.T) {
	other := NewJWTUtil(JWTConfig{Secret: "secret", Issuer: "someone-else", ShortTTL: time.Hour, LongTTL: time.Hour})
	jwtUtil := newTestJWTUtil("secret", nil)

	tokenString, _, _ := other.GenerateToken("u1", "13800000000", []string{"user"}, false)

	_, err := jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_ValidateToken_MissingRoles(t *testing.T) {
	jwtUtil := newTestJWTUtil("secret", nil)

	tokenString, _, err := jwtUtil.GenerateToken("u1", "13800000000", nil, false)
	require.NoError(t, err)

	_, err = jwtUtil.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTUtil_GenerateToken_NoSecret(t *testing.T) {
	jwtUtil := newTestJWTUtil("", nil)

	_, _, err := jwtUtil.GenerateToken("u1", "13800000000", []string{"user"}, false)
	assert.Error(t, err)
}
