package guardrails

import (
	"testing"

	"github.com/aristath/storeops/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRule returns a fixed result, for exercising chain mechanics
type stubRule struct {
	code   string
	status domain.GuardrailStatus
}

func (r stubRule) Code() string { return r.code }

func (r stubRule) Evaluate(_ domain.CandidateContext) RuleResult {
	return RuleResult{Code: r.code, Status: r.status}
}

func testContext() domain.CandidateContext {
	return domain.CandidateContext{
		Type:    domain.DecisionPricing,
		SKU:     "SKU-1",
		StoreID: "STORE-01",
	}
}

func TestChain_AllAllow(t *testing.T) {
	chain := NewChain(zerolog.Nop(),
		stubRule{"a", domain.GuardrailAllow},
		stubRule{"b", domain.GuardrailAllow},
	)

	outcome := chain.Evaluate(testContext())

	assert.Equal(t, domain.GuardrailAllow, outcome.FinalStatus)
	assert.Empty(t, outcome.BlockedBy)
	assert.False(t, outcome.Blocked())
	require.Len(t, outcome.Results, 2)
}

func TestChain_WarnDoesNotBlock(t *testing.T) {
	chain := NewChain(zerolog.Nop(),
		stubRule{"a", domain.GuardrailWarn},
		stubRule{"b", domain.GuardrailAllow},
	)

	outcome := chain.Evaluate(testContext())

	assert.Equal(t, domain.GuardrailAllow, outcome.FinalStatus)
	assert.Empty(t, outcome.BlockedBy)
}

func TestChain_BlockedByIsFirstBlockingRule(t *testing.T) {
	tests := []struct {
		name      string
		rules     []Rule
		blockedBy string
	}{
		{
			name: "single block",
			rules: []Rule{
				stubRule{"a", domain.GuardrailAllow},
				stubRule{"b", domain.GuardrailBlock},
			},
			blockedBy: "b",
		},
		{
			name: "first of several blocks wins",
			rules: []Rule{
				stubRule{"a", domain.GuardrailBlock},
				stubRule{"b", domain.GuardrailBlock},
				stubRule{"c", domain.GuardrailBlock},
			},
			blockedBy: "a",
		},
		{
			name: "block after warn",
			rules: []Rule{
				stubRule{"a", domain.GuardrailWarn},
				stubRule{"b", domain.GuardrailBlock},
				stubRule{"c", domain.GuardrailAllow},
			},
			blockedBy: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewChain(zerolog.Nop(), tt.rules...)
			outcome := chain.Evaluate(testContext())

			assert.Equal(t, domain.GuardrailBlock, outcome.FinalStatus)
			assert.Equal(t, tt.blockedBy, outcome.BlockedBy)

			// BlockedBy must match the first BLOCK entry by sequence
			for _, entry := range outcome.Results {
				if entry.Status == domain.GuardrailBlock {
					assert.Equal(t, entry.RuleCode, outcome.BlockedBy)
					break
				}
			}
		})
	}
}

func TestChain_NoShortCircuit(t *testing.T) {
	chain := NewChain(zerolog.Nop(),
		stubRule{"a", domain.GuardrailBlock},
		stubRule{"b", domain.GuardrailAllow},
		stubRule{"c", domain.GuardrailWarn},
	)

	outcome := chain.Evaluate(testContext())

	// All rules run even after a block, so the trace is complete
	require.Len(t, outcome.Results, 3)
	assert.Equal(t, 1, outcome.Results[0].SequenceNo)
	assert.Equal(t, 3, outcome.Results[2].SequenceNo)
}

func TestChain_EmptyChainAllows(t *testing.T) {
	chain := NewChain(zerolog.Nop())
	outcome := chain.Evaluate(testContext())

	assert.Equal(t, domain.GuardrailAllow, outcome.FinalStatus)
	assert.Empty(t, outcome.Results)
}
