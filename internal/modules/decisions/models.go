// Package decisions contains the policy orchestrator and proposal
// persistence: the controller that sequences guardrail evaluation, scoring,
// persistence, cooloff gating and conditional auto-apply.
package decisions

import (
	"time"

	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/modules/guardrails"
	"github.com/aristath/storeops/internal/modules/scoring"
)

// Proposal is the persisted record of one scored, guardrail-evaluated
// candidate decision. Never mutated after creation except for the
// auto_applied flag set during the same run.
type Proposal struct {
	ID          int64                `json:"id"`
	Type        domain.DecisionType  `json:"type"`
	Band        domain.Band          `json:"band"`
	Score       float64              `json:"score"`
	Features    domain.FeatureVector `json:"features"`
	BlockedBy   string               `json:"blocked_by,omitempty"`
	ContextHash string               `json:"context_hash"`
	SubjectSKU  string               `json:"subject_sku"`
	StoreID     string               `json:"store_id"`
	RunID       string               `json:"run_id,omitempty"`
	AutoApplied bool                 `json:"auto_applied"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Result is the structured outcome of one orchestrator run, returned to the
// caller and JSON-serializable for the admin API
type Result struct {
	Status      string               `json:"status"` // blocked | discard | propose | auto
	RunID       string               `json:"run_id"`
	ProposalID  int64                `json:"proposal_id,omitempty"`
	Guardrail   guardrails.Outcome   `json:"guardrail"`
	Score       *scoring.ScoreResult `json:"score,omitempty"`
	AutoApplied bool                 `json:"auto_applied"`
	AutoReason  string               `json:"auto_reason,omitempty"`
}

// StatusBlocked is the terminal status of a guardrail-blocked run
const StatusBlocked = "blocked"

// Auto-apply skip reasons surfaced in Result.AutoReason
const (
	AutoReasonApplied      = "applied"
	AutoReasonNotPricing   = "not_pricing"
	AutoReasonBandNotAuto  = "band_not_auto"
	AutoReasonFlagDisabled = "flag_disabled"
	AutoReasonCooloff      = "cooloff_active"
	AutoReasonCheckFailed  = "cooloff_check_failed"
)
