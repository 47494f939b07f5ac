package pricing

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/modules/guardrails"
)

type stubProducts struct {
	products map[string]*domain.Product
}

func (s *stubProducts) GetBySKU(sku string) (*domain.Product, error) {
	return s.products[sku], nil
}

type stubVelocities struct {
	unitsPerDay float64
}

func (s *stubVelocities) UnitsPerDay(outletID, sku string) (float64, error) {
	return s.unitsPerDay, nil
}

func TestService_PendingInputs(t *testing.T) {
	repo := NewRepository(setupPricingDB(t), zerolog.Nop())
	products := &stubProducts{products: map[string]*domain.Product{
		"SKU-1": {SKU: "SKU-1", UnitCost: 11.50},
	}}
	service := NewService(repo, products, &stubVelocities{unitsPerDay: 3}, zerolog.Nop())

	_, err := repo.Insert(Candidate{
		SKU:            "SKU-1",
		StoreID:        "out-1",
		CurrentPrice:   mustDecimal(t, "20.00"),
		CandidatePrice: mustDecimal(t, "23.00"),
	})
	require.NoError(t, err)

	inputs, err := service.PendingInputs(10, "run-1")
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	input := inputs[0]
	assert.Equal(t, domain.DecisionPricing, input.Context.Type)
	assert.Equal(t, "run-1", input.Context.RunID)
	assert.NoError(t, input.Context.Validate())

	assert.InDelta(t, 0.15, input.Context.Signals[guardrails.SignalPriceDeltaPct], 1e-9)
	assert.InDelta(t, 0.5, input.Context.Signals[guardrails.SignalMarginPct], 1e-9)
	assert.InDelta(t, 3, input.Context.Signals[guardrails.SignalVelocity], 1e-9)

	assert.InDelta(t, 0.5, input.Features["margin_uplift"], 1e-9)
	assert.InDelta(t, -0.15, input.Features["risk_penalty"], 1e-9)
	assert.InDelta(t, 0.75, input.Features["demand_score"], 1e-9)
}

func TestService_PendingInputs_SkipsUnknownProduct(t *testing.T) {
	repo := NewRepository(setupPricingDB(t), zerolog.Nop())
	service := NewService(repo, &stubProducts{products: map[string]*domain.Product{}}, nil, zerolog.Nop())

	_, err := repo.Insert(Candidate{
		SKU:            "SKU-ghost",
		StoreID:        "out-1",
		CurrentPrice:   mustDecimal(t, "10"),
		CandidatePrice: mustDecimal(t, "11"),
	})
	require.NoError(t, err)

	inputs, err := service.PendingInputs(10, "run-1")
	require.NoError(t, err)
	assert.Empty(t, inputs)
}
