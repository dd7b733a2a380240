package domain

import (
	"fmt"
	"strings"
)

// Pagination defaults.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// SortDirection orders listing results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort selects a field and direction.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Normalize lowercases the sort and applies defaults.
func (s Sort) Normalize(defaultField string) Sort {
	field := strings.ToLower(strings.TrimSpace(s.Field))
	if field == "" {
		field = defaultField
	}
	dir := SortDirection(strings.ToLower(string(s.Direction)))
	if dir != SortAsc {
		dir = SortDesc
	}
	return Sort{Field: field, Direction: dir}
}

// Page is a one-based page request.
type Page struct {
	Number  int
	PerPage int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.PerPage
}

// PageMeta describes a page of results.
type PageMeta struct {
	Total       int
	PerPage     int
	CurrentPage int
	TotalPages  int
	From        int
	To          int
}

// NewPageMeta computes pagination metadata for a total row count.
func NewPageMeta(p Page, total int) PageMeta {
	p = p.Normalize()
	meta := PageMeta{
		Total:       total,
		PerPage:     p.PerPage,
		CurrentPage: p.Number,
	}
	meta.TotalPages = (total + p.PerPage - 1) / p.PerPage
	if total == 0 {
		return meta
	}
	offset := p.Offset()
	meta.From = offset + 1
	meta.To = min(offset+p.PerPage, total)
	if meta.From > total {
		meta.From, meta.To = 0, 0
	}
	return meta
}

var historySortColumns = map[string]string{
	"action_date":   "action_date",
	"action":        "action",
	"price":         "price_paid",
	"price_paid":    "price_paid",
	"tariff_name":   "tariff_name",
	"category_name": "category_name",
	"location_name": "location_name",
}

var subscriptionSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"start_date": "start_date",
	"end_date":   "end_date",
	"days_left":  "end_date",
	"price":      "price_paid",
	"price_paid": "price_paid",
	"status":     "status",
}

// HistorySort normalizes a history sort and maps its field to a stored column.
func HistorySort(s Sort) (Sort, error) {
	return resolveSort(s, "action_date", historySortColumns)
}

// SubscriptionSort normalizes a subscription sort and maps its field to a stored column.
func SubscriptionSort(s Sort) (Sort, error) {
	return resolveSort(s, "created_at", subscriptionSortColumns)
}

func resolveSort(s Sort, defaultField string, columns map[string]string) (Sort, error) {
	s = s.Normalize(defaultField)
	column, ok := columns[s.Field]
	if !ok {
		return Sort{}, fmt.Errorf("%w: %s", ErrInvalidSort, s.Field)
	}
	s.Field = column
	return s, nil
}
