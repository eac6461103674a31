// Package utils provides small helpers shared by the HTTP layer that carry
// no domain logic.
package utils

import "strconv"

// Page bounds for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
// Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page is a validated page request plus the metadata derived once the
// total is known.
type Page struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ParsePage reads raw page and page_size values. Page is at least 1 and
// page size is clamped to [1, MaxPageSize], defaulting to DefaultPageSize.
func ParsePage(page, pageSize string) Page {
	p := AtoiDefault(page, 1)
	if p < 1 {
		p = 1
	}
	ps := AtoiDefault(pageSize, DefaultPageSize)
	if ps < 1 {
		ps = 1
	}
	if ps > MaxPageSize {
		ps = MaxPageSize
	}
	return Page{Page: p, PageSize: ps}
}

// WithTotal fills the total and the derived fields.
func (p Page) WithTotal(total int64) Page {
	p.Total = total
	p.TotalPages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	p.HasNext = p.Page < p.TotalPages
	return p
}
