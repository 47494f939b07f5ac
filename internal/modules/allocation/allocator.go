// Package allocation distributes surplus warehouse stock across outlets
// using a tiered need heuristic with a proportional top-up phase.
package allocation

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/domain"
)

// Stock tier boundaries for the baseline need heuristic
const (
	lowStockTier = 5
	midStockTier = 20
)

// OutletStock is one outlet's input to an allocation run
type OutletStock struct {
	OutletID string  `json:"outlet_id"`
	Stock    int     `json:"stock"`
	Weight   float64 `json:"weight"`
}

// Allocator computes surplus distributions, one product per call.
// It holds no shared state and is safe to run in parallel across products.
type Allocator struct {
	cfg config.AllocatorConfig
	log zerolog.Logger
}

// NewAllocator creates a stock allocator
func NewAllocator(cfg config.AllocatorConfig, log zerolog.Logger) *Allocator {
	return &Allocator{
		cfg: cfg,
		log: log.With().Str("component", "allocator").Logger(),
	}
}

// Reserve returns the protective hub floor for a warehouse stock level
func (a *Allocator) Reserve(warehouseStock int) int {
	pctReserve := int(math.Ceil(float64(warehouseStock) * a.cfg.ReservePercent))
	if pctReserve < a.cfg.ReserveMinUnits {
		return a.cfg.ReserveMinUnits
	}
	return pctReserve
}

// Allocate distributes the surplus above the hub reserve across outlets.
// Baseline needs are satisfied greedily in ascending-stock order, then a
// configured fraction of any remaining surplus is split proportionally to
// outlet weights. Output is deterministic for identical inputs.
func (a *Allocator) Allocate(productID string, warehouseStock int, outlets []OutletStock) []domain.AllocationRow {
	surplus := warehouseStock - a.Reserve(warehouseStock)
	if surplus <= 0 || len(outlets) == 0 {
		return []domain.AllocationRow{}
	}

	ordered := make([]OutletStock, len(outlets))
	copy(ordered, outlets)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Stock != ordered[j].Stock {
			return ordered[i].Stock < ordered[j].Stock
		}
		if ordered[i].Weight != ordered[j].Weight {
			return ordered[i].Weight > ordered[j].Weight
		}
		return ordered[i].OutletID < ordered[j].OutletID
	})

	allocated := make([]int, len(ordered))
	remaining := surplus

	// Phase 1: satisfy baseline needs until the surplus runs out
	for i, outlet := range ordered {
		if remaining == 0 {
			break
		}
		need := a.baselineNeed(outlet.Stock)
		if need > a.cfg.MaxPerStore {
			need = a.cfg.MaxPerStore
		}
		if need > remaining {
			need = remaining
		}
		allocated[i] = need
		remaining -= need
	}

	// Phase 2: split a fraction of the leftover proportionally to weights
	if remaining > 0 {
		pool := int(math.Floor(float64(remaining) * a.cfg.ProportionalShare))
		totalWeight := 0.0
		for _, outlet := range ordered {
			totalWeight += outlet.Weight
		}
		if pool > 0 && totalWeight > 0 {
			for i, outlet := range ordered {
				extra := int(math.Floor(float64(pool) * outlet.Weight / totalWeight))
				if allocated[i]+extra > a.cfg.MaxPerStore {
					extra = a.cfg.MaxPerStore - allocated[i]
				}
				if extra > remaining {
					extra = remaining
				}
				if extra > 0 {
					allocated[i] += extra
					remaining -= extra
				}
			}
		}
	}

	rows := make([]domain.AllocationRow, 0, len(ordered))
	total := 0
	for i, outlet := range ordered {
		if allocated[i] == 0 {
			continue
		}
		total += allocated[i]
		rows = append(rows, domain.AllocationRow{
			OutletID:  outlet.OutletID,
			ProductID: productID,
			Quantity:  allocated[i],
			// Capped reflects the delivered quantity, not intermediate
			// clipping that a later surplus shortfall may have undone
			Capped: allocated[i] >= a.cfg.MaxPerStore,
		})
	}

	a.log.Debug().
		Str("product", productID).
		Int("warehouse_stock", warehouseStock).
		Int("surplus", surplus).
		Int("allocated", total).
		Int("outlets", len(rows)).
		Msg("Allocation computed")

	return rows
}

// baselineNeed derives an outlet's baseline need from its stock tier
func (a *Allocator) baselineNeed(stock int) int {
	switch {
	case stock == 0:
		return a.cfg.SeedQtyZero
	case stock < lowStockTier:
		need := a.cfg.TopupLowTo - stock
		if need < 0 {
			return 0
		}
		return need
	case stock < midStockTier:
		return a.cfg.MidTopup
	default:
		return 0
	}
}
