// Package pricing manages price change candidates and turns them into
// decision pipeline inputs.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candidate lifecycle states
const (
	StatusPending = "pending"
	StatusDecided = "decided"
	StatusExpired = "expired"
)

// Candidate is a proposed price change for one sku at one store.
// Prices are exact decimals; float conversion happens only at the
// signal boundary.
type Candidate struct {
	ID             int64           `json:"id"`
	SKU            string          `json:"sku"`
	StoreID        string          `json:"store_id"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	CandidatePrice decimal.Decimal `json:"candidate_price"`
	Currency       string          `json:"currency"`
	Source         string          `json:"source"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
}

// Validate checks the candidate for structural problems
func (c Candidate) Validate() error {
	if c.SKU == "" || c.StoreID == "" {
		return fmt.Errorf("price candidate requires sku and store id")
	}
	if c.CurrentPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("current price must be positive, got %s", c.CurrentPrice)
	}
	if c.CandidatePrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("candidate price must be positive, got %s", c.CandidatePrice)
	}
	return nil
}

// DeltaPct returns the signed fractional price move
func (c Candidate) DeltaPct() float64 {
	if c.CurrentPrice.IsZero() {
		return 0
	}
	delta, _ := c.CandidatePrice.Sub(c.CurrentPrice).Div(c.CurrentPrice).Float64()
	return delta
}

// MarginPct returns the margin fraction at the candidate price for a unit cost
func (c Candidate) MarginPct(unitCost decimal.Decimal) float64 {
	if c.CandidatePrice.IsZero() {
		return 0
	}
	margin, _ := c.CandidatePrice.Sub(unitCost).Div(c.CandidatePrice).Float64()
	return margin
}
