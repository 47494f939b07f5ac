// Package guardrails provides the rule chain evaluated before any proposal
// is persisted or auto-applied.
package guardrails

import (
	"github.com/aristath/storeops/internal/domain"
)

// RuleResult is the outcome of a single guardrail rule check
type RuleResult struct {
	Code    string                 `json:"code"`
	Status  domain.GuardrailStatus `json:"status"`
	Message string                 `json:"message,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// TraceEntry is one row of the per-proposal guardrail trace
type TraceEntry struct {
	SequenceNo int                    `json:"sequence_no"`
	RuleCode   string                 `json:"rule_code"`
	Status     domain.GuardrailStatus `json:"status"`
	Message    string                 `json:"message,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Outcome is the aggregate result of evaluating the full chain
type Outcome struct {
	FinalStatus domain.GuardrailStatus `json:"final_status"`
	BlockedBy   string                 `json:"blocked_by,omitempty"`
	Results     []TraceEntry           `json:"results"`
}

// Blocked reports whether the chain blocked the candidate
func (o Outcome) Blocked() bool {
	return o.FinalStatus == domain.GuardrailBlock
}

// Rule is a single guardrail check. Rules must be pure with respect to
// external state: they read only from the context and injected read-only
// collaborators, and never mutate anything.
type Rule interface {
	Code() string
	Evaluate(ctx domain.CandidateContext) RuleResult
}
