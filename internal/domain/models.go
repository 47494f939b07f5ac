// Package domain provides core domain models and types.
package domain

import "time"

// DecisionType represents the kind of operational decision a candidate proposes
type DecisionType string

const (
	DecisionTransfer DecisionType = "transfer"
	DecisionPricing  DecisionType = "pricing"
)

// Valid reports whether the decision type is a member of the closed enumeration
func (t DecisionType) Valid() bool {
	return t == DecisionTransfer || t == DecisionPricing
}

// Band represents the decision classification derived from a normalized score
type Band string

const (
	BandDiscard Band = "discard"
	BandPropose Band = "propose"
	BandAuto    Band = "auto"
)

// GuardrailStatus represents the outcome of a single guardrail rule check
type GuardrailStatus string

const (
	GuardrailAllow GuardrailStatus = "ALLOW"
	GuardrailWarn  GuardrailStatus = "WARN"
	GuardrailBlock GuardrailStatus = "BLOCK"
)

// Effect represents an audit-trail state transition for a proposal
type Effect string

const (
	EffectProposed Effect = "proposed"
	EffectApplied  Effect = "applied"
	EffectRejected Effect = "rejected"
)

// HubOutletID identifies the central warehouse in stock level rows
const HubOutletID = "hub"

// Outlet represents a retail store that receives stock from the warehouse hub
type Outlet struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Region   string  `json:"region"`
	Active   bool    `json:"active"`
	Capacity int     `json:"capacity"`
	Weight   float64 `json:"weight"` // Turnover-rate proxy used as allocation tie-breaker
}

// Product represents a catalogue item tracked across the chain
type Product struct {
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	UnitCost  float64   `json:"unit_cost"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// StockLevel represents current on-hand stock for a product at an outlet or hub
type StockLevel struct {
	OutletID  string    `json:"outlet_id"` // HubOutletID for warehouse rows
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VelocityStat represents aggregated sales velocity for a sku at an outlet
type VelocityStat struct {
	OutletID     string    `json:"outlet_id"`
	SKU          string    `json:"sku"`
	UnitsPerDay  float64   `json:"units_per_day"`
	WindowDays   int       `json:"window_days"`
	LastSoldAt   time.Time `json:"last_sold_at"`
	TurnoverRate float64   `json:"turnover_rate"`
}

// AllocationRow is one outlet's share of a surplus distribution.
// Produced fresh per allocation call; persistence is left to the caller.
type AllocationRow struct {
	OutletID  string `json:"outlet_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Capped    bool   `json:"capped"`
}
