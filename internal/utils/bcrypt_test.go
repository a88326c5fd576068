package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	password := "password123"
	hashedPassword, err := h.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hashedPassword)
	assert.NotEqual(t, password, hashedPassword)
}

func TestHashPassword_Salted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	first, _ := h.HashPassword("password123")
	second, _ := h.HashPassword("password123")

	assert.NotEqual(t, first, second)
}

func TestCheckPasswordHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	password := "password123"
	hashedPassword, _ := h.HashPassword(password)

	assert.True(t, h.CheckPasswordHash(password, hashedPassword))
	assert.False(t, h.CheckPasswordHash("wrongpassword", hashedPassword))
}

func TestCheckPasswordHash_InvalidHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	assert.False(t, h.CheckPasswordHash("password123", "invalidhash"))
	assert.False(t, h.CheckPasswordHash("password123", ""))
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost())
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
	assert.Equal(t, 12, NewHasher(12).Cost())
}
