package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an identity keyed by phone number
type User struct {
	ID            string     `json:"id"`
	Phone         string     `json:"phone"`
	PasswordHash  string     `json:"-"` // Do not expose password hash in JSON responses
	Roles         []string   `json:"roles"`
	RedeemedCodes []string   `json:"redeemed_codes"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasRole reports whether the user's role set contains role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasRedeemed reports whether code is already recorded against the user
func (u *User) HasRedeemed(code string) bool {
	for _, c := range u.RedeemedCodes {
		if c == code {
			return true
		}
	}
	return false
}
