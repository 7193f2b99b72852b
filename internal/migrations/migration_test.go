package migrations

import (
	"context"
	"testing"

	"agency_tracker/internal/models"
)

type memTaxRates struct {
	rates []models.TaxRate
}

func (m *memTaxRates) Create(_ context.Context, rate *models.TaxRate) error {
	rate.ID = uint(len(m.rates) + 1)
	m.rates = append(m.rates, *rate)
	return nil
}

func (m *memTaxRates) GetByID(context.Context, uint) (*models.TaxRate, error)     { return nil, nil }
func (m *memTaxRates) GetByName(context.Context, string) (*models.TaxRate, error) { return nil, nil }
func (m *memTaxRates) Update(context.Context, *models.TaxRate) error              { return nil }
func (m *memTaxRates) List(context.Context, bool) ([]models.TaxRate, error)       { return m.rates, nil }

func TestCreateDefaultDataSeedsOnce(t *testing.T) {
	repo := &memTaxRates{}
	ctx := context.Background()

	if err := createDefaultData(ctx, repo); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if len(repo.rates) != len(defaultTaxRates) {
		t.Fatalf("seeded %d rates, want %d", len(repo.rates), len(defaultTaxRates))
	}

	if err := createDefaultData(ctx, repo); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if len(repo.rates) != len(defaultTaxRates) {
		t.Errorf("second run inserted again: %d rates", len(repo.rates))
	}
}
