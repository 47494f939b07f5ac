package pricing

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/modules/guardrails"
)

// ProductSource supplies unit costs for margin signals
type ProductSource interface {
	GetBySKU(sku string) (*domain.Product, error)
}

// VelocitySource supplies the demand proxy for candidate signals
type VelocitySource interface {
	UnitsPerDay(outletID, sku string) (float64, error)
}

// Service prepares price candidates for the decision pipeline
type Service struct {
	repo       *Repository
	products   ProductSource
	velocities VelocitySource
	log        zerolog.Logger
}

// NewService creates a pricing service
func NewService(repo *Repository, products ProductSource, velocities VelocitySource, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		products:   products,
		velocities: velocities,
		log:        log.With().Str("service", "pricing").Logger(),
	}
}

// Repository exposes the underlying candidate store
func (s *Service) Repository() *Repository {
	return s.repo
}

// MarkDecided transitions a candidate out of the pending pool
func (s *Service) MarkDecided(id int64) error {
	return s.repo.MarkDecided(id)
}

// PipelineInput is one pending candidate prepared for an orchestrator run
type PipelineInput struct {
	Candidate Candidate
	Context   domain.CandidateContext
	Features  domain.FeatureVector
}

// PendingInputs loads pending candidates and derives their signals and
// feature contributions. Candidates whose product is unknown are skipped
// with a warning, not failed.
func (s *Service) PendingInputs(limit int, runID string) ([]PipelineInput, error) {
	candidates, err := s.repo.ListPending(limit)
	if err != nil {
		return nil, err
	}

	inputs := make([]PipelineInput, 0, len(candidates))
	for _, candidate := range candidates {
		product, err := s.products.GetBySKU(candidate.SKU)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %s: %w", candidate.SKU, err)
		}
		if product == nil {
			s.log.Warn().Str("sku", candidate.SKU).Int64("candidate", candidate.ID).
				Msg("Price candidate references unknown product, skipping")
			continue
		}

		velocity := 0.0
		if s.velocities != nil {
			if v, err := s.velocities.UnitsPerDay(candidate.StoreID, candidate.SKU); err == nil {
				velocity = v
			}
		}

		unitCost := decimal.NewFromFloat(product.UnitCost)
		delta := candidate.DeltaPct()
		margin := candidate.MarginPct(unitCost)

		inputs = append(inputs, PipelineInput{
			Candidate: candidate,
			Context: domain.CandidateContext{
				Type:    domain.DecisionPricing,
				SKU:     candidate.SKU,
				StoreID: candidate.StoreID,
				RunID:   runID,
				Signals: map[string]float64{
					guardrails.SignalPriceDeltaPct: delta,
					guardrails.SignalMarginPct:     margin,
					guardrails.SignalVelocity:      velocity,
				},
			},
			Features: domain.FeatureVector{
				"margin_uplift": margin,
				"risk_penalty":  -math.Abs(delta),
				"demand_score":  velocity / (velocity + 1),
			},
		})
	}
	return inputs, nil
}
