package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// FeatureVector maps named feature contributions to signed values.
// Keys must be stable across a single evaluation so the normalized
// sum is reproducible; ordering is otherwise irrelevant.
type FeatureVector map[string]float64

// CandidateContext is the ephemeral input to one decision pipeline run.
// It is never persisted verbatim; ContextHash links it to audit records.
type CandidateContext struct {
	Type      DecisionType       `json:"type"`
	SKU       string             `json:"sku"`
	StoreID   string             `json:"store_id"`
	SourceHub string             `json:"source_hub,omitempty"`
	Signals   map[string]float64 `json:"signals"`
	RunID     string             `json:"run_id,omitempty"`
}

// Validate checks the context for structural problems before evaluation.
// Malformed contexts are a caller defect and fail fast.
func (c CandidateContext) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("invalid candidate type: %q", c.Type)
	}
	if strings.TrimSpace(c.SKU) == "" {
		return fmt.Errorf("candidate context missing sku")
	}
	if strings.TrimSpace(c.StoreID) == "" {
		return fmt.Errorf("candidate context missing store id")
	}
	if c.Type == DecisionTransfer && strings.TrimSpace(c.SourceHub) == "" {
		return fmt.Errorf("transfer candidate missing source hub")
	}
	return nil
}

// Signal returns a named signal value, or the fallback when absent
func (c CandidateContext) Signal(name string, fallback float64) float64 {
	if v, ok := c.Signals[name]; ok {
		return v
	}
	return fallback
}

// ContextHash derives a stable fingerprint of the decision-relevant fields.
// Signals are folded in sorted key order so two contexts with the same
// content always hash identically regardless of map iteration order.
func (c CandidateContext) ContextHash() string {
	parts := []string{
		string(c.Type),
		strings.TrimSpace(c.SKU),
		strings.TrimSpace(c.StoreID),
		strings.TrimSpace(c.SourceHub),
	}

	keys := make([]string, 0, len(c.Signals))
	for k := range c.Signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.6f", k, c.Signals[k]))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
