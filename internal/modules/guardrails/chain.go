package guardrails

import (
	"github.com/aristath/storeops/internal/domain"
	"github.com/rs/zerolog"
)

// Chain evaluates an ordered list of guardrail rules against a candidate
// context. Every rule runs so the trace is complete; there is no
// short-circuit on the first block.
type Chain struct {
	rules []Rule
	log   zerolog.Logger
}

// NewChain creates a guardrail chain. Rules are evaluated strictly in the
// order given here.
func NewChain(log zerolog.Logger, rules ...Rule) *Chain {
	return &Chain{
		rules: rules,
		log:   log.With().Str("component", "guardrail_chain").Logger(),
	}
}

// Rules returns the registered rule codes in evaluation order
func (c *Chain) Rules() []string {
	codes := make([]string, len(c.rules))
	for i, rule := range c.rules {
		codes[i] = rule.Code()
	}
	return codes
}

// Evaluate runs all rules against the context. FinalStatus is BLOCK when any
// rule blocks, ALLOW otherwise; BlockedBy is the code of the first blocking
// rule by sequence, which is deterministic given the registration order.
func (c *Chain) Evaluate(ctx domain.CandidateContext) Outcome {
	outcome := Outcome{
		FinalStatus: domain.GuardrailAllow,
		Results:     make([]TraceEntry, 0, len(c.rules)),
	}

	for i, rule := range c.rules {
		result := rule.Evaluate(ctx)
		outcome.Results = append(outcome.Results, TraceEntry{
			SequenceNo: i + 1,
			RuleCode:   result.Code,
			Status:     result.Status,
			Message:    result.Message,
			Meta:       result.Meta,
		})

		if result.Status == domain.GuardrailBlock {
			if outcome.FinalStatus != domain.GuardrailBlock {
				outcome.FinalStatus = domain.GuardrailBlock
				outcome.BlockedBy = result.Code
			}
			c.log.Info().
				Str("rule", result.Code).
				Str("sku", ctx.SKU).
				Str("store", ctx.StoreID).
				Str("message", result.Message).
				Msg("Guardrail blocked candidate")
		}
	}

	return outcome
}
