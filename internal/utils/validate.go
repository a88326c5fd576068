package utils

import (
	"regexp"
	"strings"
	"time"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores anything past 72 bytes

	exchangeCodeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	exchangeCodeRandomLen = 10
)

var (
	phonePattern        = regexp.MustCompile(`^1[3-9]\d{9}$`)
	smsCodePattern      = regexp.MustCompile(`^\d{6}$`)
	exchangeCodePattern = regexp.MustCompile(`^[A-Z0-9]{16}$`)
)

// IsValidPhone reports whether phone is an 11-digit mainland China mobile number
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// IsValidSMSCode reports whether code has the shape of a one-time SMS code
func IsValidSMSCode(code string) bool {
	return smsCodePattern.MatchString(code)
}

// IsValidPassword reports whether password has an acceptable length
func IsValidPassword(password string) bool {
	return len(password) >= MinPasswordLength && len(password) <= MaxPasswordLength
}

// NormalizeExchangeCode trims and upper-cases a candidate code
func NormalizeExchangeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidExchangeCode reports whether an already-normalized code is 16 upper-case alphanumerics
func IsValidExchangeCode(code string) bool {
	return exchangeCodePattern.MatchString(code)
}

// GenerateExchangeCode returns YYMMDD of now followed by 10 random alphanumerics
func GenerateExchangeCode(now time.Time) (string, error) {
	suffix, err := randomString(exchangeCodeAlphabet, exchangeCodeRandomLen)
	if err != nil {
		return "", err
	}
	return now.Format("060102") + suffix, nil
}
