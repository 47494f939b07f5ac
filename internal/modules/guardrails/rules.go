package guardrails

import (
	"fmt"
	"math"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/domain"
)

// Signal names the shipped rules read from the candidate context
const (
	SignalPriceDeltaPct = "price_delta_pct" // Signed fractional price move
	SignalMarginPct     = "margin_pct"      // Margin fraction at the candidate price
	SignalTransferQty   = "transfer_qty"    // Units the transfer candidate moves
	SignalHubSurplus    = "hub_surplus"     // Units the source hub can spare
	SignalVelocity      = "velocity"        // Units per day at the destination store
)

// PriceDeltaBoundRule blocks pricing moves larger than the configured bound.
// Transfer candidates pass through untouched.
type PriceDeltaBoundRule struct {
	MaxDeltaPct float64
}

// NewPriceDeltaBoundRule creates the rule from guardrail config
func NewPriceDeltaBoundRule(cfg config.GuardrailConfig) *PriceDeltaBoundRule {
	return &PriceDeltaBoundRule{MaxDeltaPct: cfg.MaxPriceDeltaPct}
}

// Code returns the rule code
func (r *PriceDeltaBoundRule) Code() string { return "price_delta_bound" }

// Evaluate checks the candidate's price move against the bound
func (r *PriceDeltaBoundRule) Evaluate(ctx domain.CandidateContext) RuleResult {
	if ctx.Type != domain.DecisionPricing {
		return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
	}

	delta := math.Abs(ctx.Signal(SignalPriceDeltaPct, 0))
	if delta > r.MaxDeltaPct {
		return RuleResult{
			Code:    r.Code(),
			Status:  domain.GuardrailBlock,
			Message: fmt.Sprintf("price move %.1f%% exceeds bound %.1f%%", delta*100, r.MaxDeltaPct*100),
			Meta:    map[string]interface{}{"delta_pct": delta, "max_delta_pct": r.MaxDeltaPct},
		}
	}
	return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
}

// MarginFloorRule blocks pricing candidates that would drop margin below the
// configured floor.
type MarginFloorRule struct {
	MinMarginPct float64
}

// NewMarginFloorRule creates the rule from guardrail config
func NewMarginFloorRule(cfg config.GuardrailConfig) *MarginFloorRule {
	return &MarginFloorRule{MinMarginPct: cfg.MinMarginPct}
}

// Code returns the rule code
func (r *MarginFloorRule) Code() string { return "margin_floor" }

// Evaluate checks the candidate margin against the floor
func (r *MarginFloorRule) Evaluate(ctx domain.CandidateContext) RuleResult {
	if ctx.Type != domain.DecisionPricing {
		return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
	}

	margin, ok := ctx.Signals[SignalMarginPct]
	if !ok {
		// Margin unknown - warn rather than block; pricing data providers
		// do not always carry unit cost
		return RuleResult{
			Code:    r.Code(),
			Status:  domain.GuardrailWarn,
			Message: "margin signal missing, floor not verified",
		}
	}

	if margin < r.MinMarginPct {
		return RuleResult{
			Code:    r.Code(),
			Status:  domain.GuardrailBlock,
			Message: fmt.Sprintf("margin %.1f%% below floor %.1f%%", margin*100, r.MinMarginPct*100),
			Meta:    map[string]interface{}{"margin_pct": margin, "min_margin_pct": r.MinMarginPct},
		}
	}
	return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
}

// StockAvailableRule blocks transfer candidates that would move more units
// than the source hub can spare.
type StockAvailableRule struct{}

// Code returns the rule code
func (r *StockAvailableRule) Code() string { return "stock_available" }

// Evaluate checks requested quantity against hub surplus
func (r *StockAvailableRule) Evaluate(ctx domain.CandidateContext) RuleResult {
	if ctx.Type != domain.DecisionTransfer {
		return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
	}

	qty := ctx.Signal(SignalTransferQty, 0)
	surplus := ctx.Signal(SignalHubSurplus, 0)
	if qty > surplus {
		return RuleResult{
			Code:    r.Code(),
			Status:  domain.GuardrailBlock,
			Message: fmt.Sprintf("transfer of %.0f units exceeds hub surplus of %.0f", qty, surplus),
			Meta:    map[string]interface{}{"transfer_qty": qty, "hub_surplus": surplus},
		}
	}
	return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
}

// VelocityFloorRule warns when the destination store sells the sku too slowly
// for the decision signals to be trustworthy. Advisory only; never blocks.
type VelocityFloorRule struct {
	Floor float64
}

// NewVelocityFloorRule creates the rule from guardrail config
func NewVelocityFloorRule(cfg config.GuardrailConfig) *VelocityFloorRule {
	return &VelocityFloorRule{Floor: cfg.VelocityFloor}
}

// Code returns the rule code
func (r *VelocityFloorRule) Code() string { return "velocity_floor" }

// Evaluate checks sales velocity against the floor
func (r *VelocityFloorRule) Evaluate(ctx domain.CandidateContext) RuleResult {
	velocity := ctx.Signal(SignalVelocity, 0)
	if velocity < r.Floor {
		return RuleResult{
			Code:    r.Code(),
			Status:  domain.GuardrailWarn,
			Message: fmt.Sprintf("sales velocity %.2f/day below floor %.2f/day", velocity, r.Floor),
			Meta:    map[string]interface{}{"velocity": velocity, "floor": r.Floor},
		}
	}
	return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
}

// CooloffChecker is the read-only cooloff lookup the guardrail uses.
// The guardrail never records anything; recording belongs to the
// orchestrator's auto-apply step.
type CooloffChecker interface {
	InWindow(subject, actionType string, hours int) (bool, error)
}

// CooloffGuardRule blocks candidates whose subject was auto-applied inside
// the cooloff window.
type CooloffGuardRule struct {
	checker CooloffChecker
	hours   int
}

// NewCooloffGuardRule creates the rule with a read-only cooloff lookup
func NewCooloffGuardRule(checker CooloffChecker, hours int) *CooloffGuardRule {
	return &CooloffGuardRule{checker: checker, hours: hours}
}

// Code returns the rule code
func (r *CooloffGuardRule) Code() string { return "cooloff_guard" }

// Evaluate blocks when the subject is inside the cooloff window. A lookup
// failure blocks too: an unverifiable cooloff must not allow a re-apply.
func (r *CooloffGuardRule) Evaluate(ctx domain.CandidateContext) RuleResult {
	inWindow, err := r.checker.InWindow(ctx.SKU, string(ctx.Type), r.hours)
	if err != nil {
		return RuleResult{
			Code:    r.Code(),
			Status:  domain.GuardrailBlock,
			Message: fmt.Sprintf("cooloff lookup failed: %v", err),
		}
	}
	if inWindow {
		return RuleResult{
			Code:    r.Code(),
			Status:  domain.GuardrailBlock,
			Message: fmt.Sprintf("subject inside %dh cooloff window", r.hours),
			Meta:    map[string]interface{}{"hours": r.hours},
		}
	}
	return RuleResult{Code: r.Code(), Status: domain.GuardrailAllow}
}
