package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Tariff codes.
const (
	TariffCodeDemo    = "demo"
	TariffCodePremium = "premium"
)

// Tariff is a purchasable plan.
type Tariff struct {
	ID            uuid.UUID
	Name          string
	Code          string
	DurationHours int
	BasePrice     Money
	IsActive      bool
}

// IsDemo reports whether the tariff is the free trial.
func (t Tariff) IsDemo() bool {
	return t.Code == TariffCodeDemo
}

// IsPremium reports whether the tariff is a paid premium plan.
func (t Tariff) IsPremium() bool {
	return t.Code == TariffCodePremium || strings.HasPrefix(t.Code, TariffCodePremium+"_")
}

// PremiumDays returns the day count encoded in premium_<days> codes, or 0.
func (t Tariff) PremiumDays() int {
	days, ok := strings.CutPrefix(t.Code, TariffCodePremium+"_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(days)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// PriceOverride replaces a tariff's base price for a location,
// optionally narrowed to a single category.
type PriceOverride struct {
	TariffID   uuid.UUID
	LocationID uuid.UUID
	CategoryID *uuid.UUID
	Price      Money
}

// Scope is the (category, location) pair a subscription grants access to.
type Scope struct {
	CategoryID uuid.UUID
	LocationID uuid.UUID
}

// Snapshot holds the display names copied into history entries.
type Snapshot struct {
	TariffName   string
	CategoryName string
	LocationName string
}
