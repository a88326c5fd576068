package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

const smsCodeDigits = 6

// GenerateSMSCode returns a uniformly random 6-digit numeric code
func GenerateSMSCode() (string, error) {
	return randomString("0123456789", smsCodeDigits)
}

// HashSMSCode returns the hex SHA-256 of code. Only hashes are stored.
func HashSMSCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
