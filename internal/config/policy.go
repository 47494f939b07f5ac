package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the score band boundaries. Passed explicitly into the
// scoring engine constructor; never read from process-wide state.
type Thresholds struct {
	AutoApplyMin float64 `yaml:"auto_apply_min" json:"auto_apply_min"`
	ProposeMin   float64 `yaml:"propose_min" json:"propose_min"`
}

// AllocatorConfig holds stock allocator tuning
type AllocatorConfig struct {
	ReserveMinUnits   int     `yaml:"reserve_min_units" json:"reserve_min_units"`
	ReservePercent    float64 `yaml:"reserve_percent" json:"reserve_percent"`
	SeedQtyZero       int     `yaml:"seed_qty_zero" json:"seed_qty_zero"`
	TopupLowTo        int     `yaml:"topup_low_to" json:"topup_low_to"`
	MidTopup          int     `yaml:"mid_topup" json:"mid_topup"`
	MaxPerStore       int     `yaml:"max_per_store" json:"max_per_store"`
	ProportionalShare float64 `yaml:"proportional_share" json:"proportional_share"`
}

// GuardrailConfig holds tuning for the shipped guardrail rules
type GuardrailConfig struct {
	MaxPriceDeltaPct float64 `yaml:"max_price_delta_pct" json:"max_price_delta_pct"`
	MinMarginPct     float64 `yaml:"min_margin_pct" json:"min_margin_pct"`
	VelocityFloor    float64 `yaml:"velocity_floor" json:"velocity_floor"`
}

// DriftConfig holds PSI alerting thresholds for the drift monitor
type DriftConfig struct {
	WarnPSI  float64 `yaml:"warn_psi" json:"warn_psi"`
	AlertPSI float64 `yaml:"alert_psi" json:"alert_psi"`
}

// AgentConfig holds bias/limit tuning for the autonomous loop
type AgentConfig struct {
	MaxItemsPerCycle int     `yaml:"max_items_per_cycle" json:"max_items_per_cycle"`
	ScoreBias        float64 `yaml:"score_bias" json:"score_bias"`
	RedecideHours    int     `yaml:"redecide_hours" json:"redecide_hours"`
}

// Policy is the decision policy: every tunable the pipeline consumes.
// Loaded from YAML with defaults applied for absent fields.
type Policy struct {
	Thresholds       Thresholds      `yaml:"thresholds" json:"thresholds"`
	CooloffHours     int             `yaml:"cooloff_hours" json:"cooloff_hours"`
	AutoApplyPricing bool            `yaml:"auto_apply_pricing" json:"auto_apply_pricing"`
	PersistBlocked   bool            `yaml:"persist_blocked" json:"persist_blocked"`
	Allocator        AllocatorConfig `yaml:"allocator" json:"allocator"`
	Guardrails       GuardrailConfig `yaml:"guardrails" json:"guardrails"`
	Drift            DriftConfig     `yaml:"drift" json:"drift"`
	Agent            AgentConfig     `yaml:"agent" json:"agent"`
}

// DefaultPolicy returns the policy used when no policy file is configured
func DefaultPolicy() *Policy {
	return &Policy{
		Thresholds: Thresholds{
			AutoApplyMin: 0.65,
			ProposeMin:   0.15,
		},
		CooloffHours:     24,
		AutoApplyPricing: false,
		PersistBlocked:   false,
		Allocator: AllocatorConfig{
			ReserveMinUnits:   5,
			ReservePercent:    0.2,
			SeedQtyZero:       3,
			TopupLowTo:        10,
			MidTopup:          2,
			MaxPerStore:       40,
			ProportionalShare: 0.5,
		},
		Guardrails: GuardrailConfig{
			MaxPriceDeltaPct: 0.15,
			MinMarginPct:     0.05,
			VelocityFloor:    0.1,
		},
		Drift: DriftConfig{
			WarnPSI:  0.1,
			AlertPSI: 0.25,
		},
		Agent: AgentConfig{
			MaxItemsPerCycle: 25,
			ScoreBias:        0,
			RedecideHours:    24,
		},
	}
}

// LoadPolicy reads the policy file, applying defaults for any field the file
// does not set. An empty path returns the default policy.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	return policy, nil
}

// Validate checks the policy for out-of-range values
func (p *Policy) Validate() error {
	if p.Thresholds.AutoApplyMin < 0 || p.Thresholds.AutoApplyMin > 1 {
		return fmt.Errorf("thresholds.auto_apply_min must be within [0,1], got %v", p.Thresholds.AutoApplyMin)
	}
	if p.Thresholds.ProposeMin < 0 || p.Thresholds.ProposeMin > 1 {
		return fmt.Errorf("thresholds.propose_min must be within [0,1], got %v", p.Thresholds.ProposeMin)
	}
	if p.Thresholds.ProposeMin > p.Thresholds.AutoApplyMin {
		return fmt.Errorf("thresholds.propose_min (%v) must not exceed auto_apply_min (%v)",
			p.Thresholds.ProposeMin, p.Thresholds.AutoApplyMin)
	}
	if p.CooloffHours <= 0 {
		return fmt.Errorf("cooloff_hours must be positive, got %d", p.CooloffHours)
	}
	if p.Allocator.ReservePercent < 0 || p.Allocator.ReservePercent > 1 {
		return fmt.Errorf("allocator.reserve_percent must be within [0,1], got %v", p.Allocator.ReservePercent)
	}
	if p.Allocator.ProportionalShare < 0 || p.Allocator.ProportionalShare > 1 {
		return fmt.Errorf("allocator.proportional_share must be within [0,1], got %v", p.Allocator.ProportionalShare)
	}
	if p.Allocator.MaxPerStore <= 0 {
		return fmt.Errorf("allocator.max_per_store must be positive, got %d", p.Allocator.MaxPerStore)
	}
	if p.Drift.WarnPSI > p.Drift.AlertPSI {
		return fmt.Errorf("drift.warn_psi (%v) must not exceed alert_psi (%v)", p.Drift.WarnPSI, p.Drift.AlertPSI)
	}
	return nil
}
