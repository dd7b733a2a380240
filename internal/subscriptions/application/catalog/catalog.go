package catalog

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// Catalog answers price and tariff lookups. It is read-only.
type Catalog struct {
	repo domain.CatalogRepository
}

// New creates a Catalog backed by the given repository.
func New(repo domain.CatalogRepository) *Catalog {
	return &Catalog{repo: repo}
}

// Tariff returns a tariff by id or domain.ErrNotFound.
func (c *Catalog) Tariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error) {
	tariff, err := c.repo.FindTariff(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find tariff: %w", err)
	}
	if tariff == nil {
		return nil, fmt.Errorf("tariff %s: %w", id, domain.ErrNotFound)
	}
	return tariff, nil
}

// TariffByCode returns a tariff by its code or domain.ErrNotFound.
func (c *Catalog) TariffByCode(ctx context.Context, code string) (*domain.Tariff, error) {
	tariff, err := c.repo.FindTariffByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find tariff by code: %w", err)
	}
	if tariff == nil {
		return nil, fmt.Errorf("tariff %q: %w", code, domain.ErrNotFound)
	}
	return tariff, nil
}

// ActiveTariffs lists tariffs available for purchase.
func (c *Catalog) ActiveTariffs(ctx context.Context) ([]domain.Tariff, error) {
	return c.repo.ListActiveTariffs(ctx)
}

// ResolvePrice returns the price of a tariff for a scope.
// A category-specific override for the location wins, then a location-wide
// override, then the tariff's base price.
func (c *Catalog) ResolvePrice(ctx context.Context, tariffID, locationID, categoryID uuid.UUID) (domain.Money, error) {
	tariff, err := c.Tariff(ctx, tariffID)
	if err != nil {
		return 0, err
	}

	overrides, err := c.repo.FindPriceOverrides(ctx, tariffID, locationID)
	if err != nil {
		return 0, fmt.Errorf("find price overrides: %w", err)
	}
	return pickPrice(tariff.BasePrice, overrides, categoryID), nil
}

func pickPrice(base domain.Money, overrides []domain.PriceOverride, categoryID uuid.UUID) domain.Money {
	var locationWide *domain.Money
	for i := range overrides {
		o := overrides[i]
		if o.CategoryID != nil {
			if *o.CategoryID == categoryID {
				return o.Price
			}
			continue
		}
		if locationWide == nil {
			locationWide = &overrides[i].Price
		}
	}
	if locationWide != nil {
		return *locationWide
	}
	return base
}
