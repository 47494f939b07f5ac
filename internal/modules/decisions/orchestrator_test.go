package decisions

import (
	"fmt"
	"testing"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/modules/guardrails"
	"github.com/aristath/storeops/internal/modules/scoring"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProposalStore records inserts in memory
type fakeProposalStore struct {
	proposals   []Proposal
	traces      [][]guardrails.TraceEntry
	autoApplied []int64
	failInsert  bool
}

func (f *fakeProposalStore) InsertWithTrace(p Proposal, trace []guardrails.TraceEntry) (int64, error) {
	if f.failInsert {
		return 0, fmt.Errorf("disk full")
	}
	f.proposals = append(f.proposals, p)
	f.traces = append(f.traces, trace)
	return int64(len(f.proposals)), nil
}

func (f *fakeProposalStore) MarkAutoApplied(proposalID int64) error {
	f.autoApplied = append(f.autoApplied, proposalID)
	return nil
}

// fakeCooloff returns a scripted acquire outcome
type fakeCooloff struct {
	acquire  bool
	err      error
	acquired []string
}

func (f *fakeCooloff) TryAcquire(_ int64, subject, _ string, _ int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.acquire {
		f.acquired = append(f.acquired, subject)
	}
	return f.acquire, nil
}

// fakeAudit records effects, optionally failing every write
type fakeAudit struct {
	effects []domain.Effect
	fail    bool
}

func (f *fakeAudit) Insert(_ int64, _, _ string, effect domain.Effect, _ map[string]interface{}) error {
	if f.fail {
		return fmt.Errorf("audit db unavailable")
	}
	f.effects = append(f.effects, effect)
	return nil
}

// blockRule and allowRule drive the chain in tests
type fixedRule struct {
	code   string
	status domain.GuardrailStatus
}

func (r fixedRule) Code() string { return r.code }
func (r fixedRule) Evaluate(_ domain.CandidateContext) guardrails.RuleResult {
	return guardrails.RuleResult{Code: r.code, Status: r.status}
}

type orchestratorFixture struct {
	orch      *Orchestrator
	proposals *fakeProposalStore
	cooloffs  *fakeCooloff
	audits    *fakeAudit
	policy    *config.Policy
}

func newFixture(t *testing.T, blocked bool, policy *config.Policy) *orchestratorFixture {
	t.Helper()

	if policy == nil {
		policy = config.DefaultPolicy()
	}

	status := domain.GuardrailAllow
	if blocked {
		status = domain.GuardrailBlock
	}
	chain := guardrails.NewChain(zerolog.Nop(),
		fixedRule{"rule_one", domain.GuardrailAllow},
		fixedRule{"rule_two", status},
	)

	f := &orchestratorFixture{
		proposals: &fakeProposalStore{},
		cooloffs:  &fakeCooloff{acquire: true},
		audits:    &fakeAudit{},
		policy:    policy,
	}
	f.orch = NewOrchestrator(chain, scoring.NewEngine(policy.Thresholds),
		f.proposals, f.cooloffs, f.audits, nil, policy, zerolog.Nop())
	return f
}

func pricingCandidate() domain.CandidateContext {
	return domain.CandidateContext{
		Type:    domain.DecisionPricing,
		SKU:     "SKU-1",
		StoreID: "STORE-01",
	}
}

func autoBandFeatures() domain.FeatureVector {
	// norm 0.9 -> score 0.95, above the default 0.65 auto threshold
	return domain.FeatureVector{"margin_uplift": 0.95, "risk_penalty": -0.05}
}

func TestRun_RejectsInvalidContext(t *testing.T) {
	f := newFixture(t, false, nil)

	_, err := f.orch.Run(domain.CandidateContext{Type: "bogus"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid candidate context")
	assert.Empty(t, f.proposals.proposals)
}

func TestRun_BlockedIsNotPersistedByDefault(t *testing.T) {
	f := newFixture(t, true, nil)

	result, err := f.orch.Run(pricingCandidate(), autoBandFeatures())
	require.NoError(t, err)

	assert.Equal(t, StatusBlocked, result.Status)
	assert.Equal(t, "rule_two", result.Guardrail.BlockedBy)
	assert.NotEmpty(t, result.RunID)
	assert.Zero(t, result.ProposalID)
	assert.Nil(t, result.Score)
	assert.Empty(t, f.proposals.proposals, "blocked contexts are not persisted by default")
	assert.Empty(t, f.audits.effects)
}

func TestRun_BlockedPersistedWhenConfigured(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.PersistBlocked = true
	f := newFixture(t, true, policy)

	result, err := f.orch.Run(pricingCandidate(), autoBandFeatures())
	require.NoError(t, err)

	assert.Equal(t, StatusBlocked, result.Status)
	require.Len(t, f.proposals.proposals, 1)
	assert.Equal(t, "rule_two", f.proposals.proposals[0].BlockedBy)
	assert.Equal(t, domain.BandDiscard, f.proposals.proposals[0].Band)
	assert.Equal(t, []domain.Effect{domain.EffectRejected}, f.audits.effects)
}

func TestRun_PersistsProposalWithFullTrace(t *testing.T) {
	f := newFixture(t, false, nil)

	result, err := f.orch.Run(pricingCandidate(), autoBandFeatures())
	require.NoError(t, err)

	assert.Equal(t, "auto", result.Status)
	require.Len(t, f.proposals.proposals, 1)
	assert.Equal(t, result.ProposalID, int64(1))
	require.Len(t, f.proposals.traces[0], 2, "trace batch carries every rule result")

	p := f.proposals.proposals[0]
	assert.Equal(t, domain.BandAuto, p.Band)
	assert.InDelta(t, 0.95, p.Score, 1e-9)
	assert.NotEmpty(t, p.ContextHash)
	assert.Equal(t, result.RunID, p.RunID)
}

func TestRun_UsesProvidedRunID(t *testing.T) {
	f := newFixture(t, false, nil)

	ctx := pricingCandidate()
	ctx.RunID = "batch-7"
	result, err := f.orch.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "batch-7", result.RunID)
}

func TestRun_PersistenceFailureIsHard(t *testing.T) {
	f := newFixture(t, false, nil)
	f.proposals.failInsert = true

	_, err := f.orch.Run(pricingCandidate(), autoBandFeatures())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist proposal")
}

func TestRun_AutoApply(t *testing.T) {
	tests := []struct {
		name        string
		ctxType     domain.DecisionType
		features    domain.FeatureVector
		flag        bool
		acquire     bool
		acquireErr  error
		wantApplied bool
		wantReason  string
	}{
		{
			name:        "applies for pricing auto band with flag",
			ctxType:     domain.DecisionPricing,
			features:    autoBandFeatures(),
			flag:        true,
			acquire:     true,
			wantApplied: true,
			wantReason:  AutoReasonApplied,
		},
		{
			name:       "transfer decisions never auto-apply",
			ctxType:    domain.DecisionTransfer,
			features:   autoBandFeatures(),
			flag:       true,
			acquire:    true,
			wantReason: AutoReasonNotPricing,
		},
		{
			name:       "propose band skips",
			ctxType:    domain.DecisionPricing,
			features:   domain.FeatureVector{"a": 0.2},
			flag:       true,
			acquire:    true,
			wantReason: AutoReasonBandNotAuto,
		},
		{
			name:       "flag disabled skips",
			ctxType:    domain.DecisionPricing,
			features:   autoBandFeatures(),
			flag:       false,
			acquire:    true,
			wantReason: AutoReasonFlagDisabled,
		},
		{
			name:       "cooloff held skips",
			ctxType:    domain.DecisionPricing,
			features:   autoBandFeatures(),
			flag:       true,
			acquire:    false,
			wantReason: AutoReasonCooloff,
		},
		{
			name:       "cooloff failure downgrades to manual",
			ctxType:    domain.DecisionPricing,
			features:   autoBandFeatures(),
			flag:       true,
			acquireErr: fmt.Errorf("db locked"),
			wantReason: AutoReasonCheckFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := config.DefaultPolicy()
			policy.AutoApplyPricing = tt.flag
			f := newFixture(t, false, policy)
			f.cooloffs.acquire = tt.acquire
			f.cooloffs.err = tt.acquireErr

			ctx := pricingCandidate()
			ctx.Type = tt.ctxType
			if tt.ctxType == domain.DecisionTransfer {
				ctx.SourceHub = "HUB-1"
			}

			result, err := f.orch.Run(ctx, tt.features)
			require.NoError(t, err)

			assert.Equal(t, tt.wantApplied, result.AutoApplied)
			assert.Equal(t, tt.wantReason, result.AutoReason)

			if tt.wantApplied {
				assert.Equal(t, []int64{result.ProposalID}, f.proposals.autoApplied)
				assert.Contains(t, f.audits.effects, domain.EffectApplied)
			} else {
				assert.Empty(t, f.proposals.autoApplied)
				assert.NotContains(t, f.audits.effects, domain.EffectApplied)
			}
		})
	}
}

func TestRun_AuditFailureDoesNotAbort(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.AutoApplyPricing = true
	f := newFixture(t, false, policy)
	f.audits.fail = true

	result, err := f.orch.Run(pricingCandidate(), autoBandFeatures())
	require.NoError(t, err, "audit writes are best-effort observability")
	assert.True(t, result.AutoApplied)
}
