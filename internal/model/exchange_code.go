package model

import "time"

const (
	ExchangeCodeStatusPending = "pending"
	ExchangeCodeStatusUsed    = "used"
	ExchangeCodeStatusExpired = "expired"
	ExchangeCodeStatusAll     = "all"
)

// ExchangeCode is a single-use invitation that gates first registration
type ExchangeCode struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	CreatedBy string     `json:"created_by"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedBy    *string    `json:"used_by,omitempty"`
}

// ExchangeCodeFilters narrows an administrative listing
type ExchangeCodeFilters struct {
	Status string // pending, used, expired or all
	Page   int
	Limit  int
}

// Offset returns the row offset for the requested page
func (f ExchangeCodeFilters) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// ExchangeCodeStats counts codes per status across the whole registry
type ExchangeCodeStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Used    int `json:"used"`
	Expired int `json:"expired"`
}

// Pagination describes the page returned by a listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ExchangeCodePage is the result of an administrative listing
type ExchangeCodePage struct {
	Codes      []ExchangeCode    `json:"codes"`
	Pagination Pagination        `json:"pagination"`
	Stats      ExchangeCodeStats `json:"stats"`
}
