package allocation

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/modules/guardrails"
)

// StockSource supplies current stock levels for one sku
type StockSource interface {
	HubStock(sku string) (int, error)
	OutletStocks(sku string) ([]domain.StockLevel, error)
}

// OutletSource supplies the outlets eligible for allocation
type OutletSource interface {
	ListActive() ([]domain.Outlet, error)
}

// VelocitySource supplies the demand proxy for candidate signals
type VelocitySource interface {
	UnitsPerDay(outletID, sku string) (float64, error)
}

// Plan is the outcome of one allocation planning run for a sku
type Plan struct {
	SKU            string                 `json:"sku"`
	SourceHub      string                 `json:"source_hub"`
	WarehouseStock int                    `json:"warehouse_stock"`
	Reserve        int                    `json:"reserve"`
	Surplus        int                    `json:"surplus"`
	Rows           []domain.AllocationRow `json:"rows"`
}

// Service turns raw stock levels into allocation plans and transfer drafts.
// The allocator itself never persists; the service hands drafts and candidate
// contexts to the decision pipeline, which owns persistence.
type Service struct {
	allocator  *Allocator
	stocks     StockSource
	outlets    OutletSource
	velocities VelocitySource
	log        zerolog.Logger
}

// NewService creates an allocation planning service
func NewService(
	allocator *Allocator,
	stocks StockSource,
	outlets OutletSource,
	velocities VelocitySource,
	log zerolog.Logger,
) *Service {
	return &Service{
		allocator:  allocator,
		stocks:     stocks,
		outlets:    outlets,
		velocities: velocities,
		log:        log.With().Str("service", "allocation").Logger(),
	}
}

// PlanSKU computes an allocation plan for one sku without persisting anything
func (s *Service) PlanSKU(sku string) (*Plan, error) {
	warehouseStock, err := s.stocks.HubStock(sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load hub stock for %s: %w", sku, err)
	}

	inputs, err := s.outletInputs(sku)
	if err != nil {
		return nil, err
	}

	reserve := s.allocator.Reserve(warehouseStock)
	return &Plan{
		SKU:            sku,
		SourceHub:      domain.HubOutletID,
		WarehouseStock: warehouseStock,
		Reserve:        reserve,
		Surplus:        warehouseStock - reserve,
		Rows:           s.allocator.Allocate(sku, warehouseStock, inputs),
	}, nil
}

// DraftTransfer converts one allocation row into a proposed transfer order
func (s *Service) DraftTransfer(plan *Plan, row domain.AllocationRow) (*domain.TransferOrder, error) {
	priority := domain.PriorityNormal
	if row.Capped {
		priority = domain.PriorityHigh
	}
	order, err := domain.NewTransferOrder(
		uuid.New().String(),
		plan.SourceHub,
		row.OutletID,
		domain.TransferProposed,
		priority,
		[]domain.TransferLine{{SKU: row.ProductID, Quantity: row.Quantity}},
		s.coverageConfidence(plan),
		fmt.Sprintf("surplus allocation of %d units", row.Quantity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to draft transfer for outlet %s: %w", row.OutletID, err)
	}
	return order, nil
}

// DraftTransfers converts a plan into one proposed transfer order per outlet.
// Outlets the plan skipped produce no draft.
func (s *Service) DraftTransfers(plan *Plan) ([]*domain.TransferOrder, error) {
	orders := make([]*domain.TransferOrder, 0, len(plan.Rows))
	for _, row := range plan.Rows {
		order, err := s.DraftTransfer(plan, row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Candidate builds the decision-pipeline input for one allocation row
func (s *Service) Candidate(plan *Plan, row domain.AllocationRow, runID string) domain.CandidateContext {
	velocity := 0.0
	if s.velocities != nil {
		if v, err := s.velocities.UnitsPerDay(row.OutletID, row.ProductID); err == nil {
			velocity = v
		} else {
			s.log.Warn().Err(err).Str("outlet", row.OutletID).Str("sku", row.ProductID).
				Msg("Velocity lookup failed, defaulting to zero")
		}
	}

	return domain.CandidateContext{
		Type:      domain.DecisionTransfer,
		SKU:       row.ProductID,
		StoreID:   row.OutletID,
		SourceHub: plan.SourceHub,
		RunID:     runID,
		Signals: map[string]float64{
			guardrails.SignalTransferQty: float64(row.Quantity),
			guardrails.SignalHubSurplus:  float64(plan.Surplus),
			guardrails.SignalVelocity:    velocity,
		},
	}
}

// outletInputs joins active outlets with their stock for the sku.
// Outlets with no stock row count as zero on hand.
func (s *Service) outletInputs(sku string) ([]OutletStock, error) {
	outlets, err := s.outlets.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to load outlets: %w", err)
	}

	levels, err := s.stocks.OutletStocks(sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load outlet stock for %s: %w", sku, err)
	}
	onHand := make(map[string]int, len(levels))
	for _, level := range levels {
		onHand[level.OutletID] = level.Quantity
	}

	inputs := make([]OutletStock, 0, len(outlets))
	for _, outlet := range outlets {
		inputs = append(inputs, OutletStock{
			OutletID: outlet.ID,
			Stock:    onHand[outlet.ID],
			Weight:   outlet.Weight,
		})
	}
	return inputs, nil
}

// coverageConfidence expresses how comfortably the surplus covers the plan
func (s *Service) coverageConfidence(plan *Plan) float64 {
	total := 0
	for _, row := range plan.Rows {
		total += row.Quantity
	}
	if total == 0 {
		return 0
	}
	return math.Min(1, float64(plan.Surplus)/float64(2*total))
}
