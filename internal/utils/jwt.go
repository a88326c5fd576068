package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid covers malformed, mis-signed and structurally incomplete tokens
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned only for correctly signed tokens past their expiry
	ErrTokenExpired = errors.New("token expired")
)

// JWTClaims custom claims for session tokens. Subject holds the identity ID.
type JWTClaims struct {
	Phone string   `json:"phone"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants role
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// JWTConfig configures session issuance and validation
type JWTConfig struct {
	Secret   string
	Issuer   string
	ShortTTL time.Duration
	LongTTL  time.Duration
	Now      func() time.Time
}

// JWTUtil issues and validates signed session tokens. It keeps no per-token state.
type JWTUtil struct {
	secretKey []byte
	issuer    string
	shortTTL  time.Duration
	longTTL   time.Duration
	now       func() time.Time
}

// NewJWTUtil creates a new JWTUtil
func NewJWTUtil(cfg JWTConfig) *JWTUtil {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &JWTUtil{
		secretKey: []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		shortTTL:  cfg.ShortTTL,
		longTTL:   cfg.LongTTL,
		now:       now,
	}
}

// TTL returns the session lifetime selected by the remember-me preference
func (ju *JWTUtil) TTL(rememberMe bool) time.Duration {
	if rememberMe {
		return ju.longTTL
	}
	return ju.shortTTL
}

// GenerateToken signs a session for the identity. The roles slice is copied into the claims.
func (ju *JWTUtil) GenerateToken(userID, phone string, roles []string, rememberMe bool) (string, time.Time, error) {
	if len(ju.secretKey) == 0 {
		return "", time.Time{}, errors.New("failed to sign token: signing secret is not configured")
	}
	issuedAt := ju.now()
	expiresAt := issuedAt.Add(ju.TTL(rememberMe))

	claims := &JWTClaims{
		Phone: phone,
		Roles: append([]string(nil), roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ju.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ju.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, claims.ExpiresAt.Time, nil
}

// ValidateToken verifies signature, issuer and expiry. The returned error wraps
// ErrTokenExpired or ErrTokenInvalid.
func (ju *JWTUtil) ValidateToken(tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ju.now),
	}
	if ju.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ju.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ju.secretKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || len(claims.Roles) == 0 {
		return nil, fmt.Errorf("%w: missing subject or roles", ErrTokenInvalid)
	}
	return claims, nil
}
