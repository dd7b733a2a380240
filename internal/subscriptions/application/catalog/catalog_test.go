package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogRepo struct {
	tariffs   map[uuid.UUID]domain.Tariff
	overrides []domain.PriceOverride
	err       error
}

func (f *fakeCatalogRepo) FindTariff(_ context.Context, id uuid.UUID) (*domain.Tariff, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tariffs[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeCatalogRepo) FindTariffByCode(_ context.Context, code string) (*domain.Tariff, error) {
	for _, t := range f.tariffs {
		if t.Code == code {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalogRepo) ListActiveTariffs(context.Context) ([]domain.Tariff, error) {
	var out []domain.Tariff
	for _, t := range f.tariffs {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeCatalogRepo) FindPriceOverrides(_ context.Context, tariffID, locationID uuid.UUID) ([]domain.PriceOverride, error) {
	var out []domain.PriceOverride
	for _, o := range f.overrides {
		if o.TariffID == tariffID && o.LocationID == locationID {
			out = append(out, o)
		}
	}
	return out, nil
}

func TestCatalog_ResolvePrice(t *testing.T) {
	ctx := context.Background()
	tariffID := uuid.New()
	moscow := uuid.New()
	kazan := uuid.New()
	flats := uuid.New()
	houses := uuid.New()

	repo := &fakeCatalogRepo{
		tariffs: map[uuid.UUID]domain.Tariff{
			tariffID: {ID: tariffID, Name: "Premium 30d", Code: "premium_30", DurationHours: 720, BasePrice: 5000, IsActive: true},
		},
		overrides: []domain.PriceOverride{
			{TariffID: tariffID, LocationID: moscow, Price: 7000},
			{TariffID: tariffID, LocationID: moscow, CategoryID: &flats, Price: 9000},
		},
	}
	c := New(repo)

	tests := []struct {
		name     string
		location uuid.UUID
		category uuid.UUID
		want     domain.Money
	}{
		{"category override wins", moscow, flats, 9000},
		{"location override", moscow, houses, 7000},
		{"base price", kazan, flats, 5000},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			price, err := c.ResolvePrice(ctx, tariffID, tt.location, tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.want, price)
		})
	}

	t.Run("unknown tariff", func(t *testing.T) {
		_, err := c.ResolvePrice(ctx, uuid.New(), moscow, flats)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("repository error", func(t *testing.T) {
		_, err := New(&fakeCatalogRepo{err: errors.New("boom")}).ResolvePrice(ctx, tariffID, moscow, flats)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCatalog_TariffByCode(t *testing.T) {
	demoID := uuid.New()
	c := New(&fakeCatalogRepo{tariffs: map[uuid.UUID]domain.Tariff{
		demoID: {ID: demoID, Code: "demo", DurationHours: 24, IsActive: true},
	}})

	tariff, err := c.TariffByCode(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, demoID, tariff.ID)

	_, err = c.TariffByCode(context.Background(), "gold")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
