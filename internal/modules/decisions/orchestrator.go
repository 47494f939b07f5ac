package decisions

import (
	"fmt"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/events"
	"github.com/aristath/storeops/internal/modules/guardrails"
	"github.com/aristath/storeops/internal/modules/scoring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CooloffStore is the orchestrator's write-side cooloff contract. TryAcquire
// must be atomic: check the window and record the hold in one operation.
type CooloffStore interface {
	TryAcquire(proposalID int64, subject, actionType string, hours int) (bool, error)
}

// AuditLog receives action-effect records. Writes are best-effort
// observability; failures must not abort an otherwise-successful decision.
type AuditLog interface {
	Insert(proposalID int64, subject, actionType string, effect domain.Effect, metadata map[string]interface{}) error
}

// ProposalStore persists proposals with their guardrail trace
type ProposalStore interface {
	InsertWithTrace(p Proposal, trace []guardrails.TraceEntry) (int64, error)
	MarkAutoApplied(proposalID int64) error
}

// EventEmitter publishes pipeline events for the admin stream
type EventEmitter interface {
	Emit(eventType events.EventType, module string, data map[string]interface{})
}

// Orchestrator sequences one decision run: guardrails, scoring, persistence,
// cooloff gating and conditional auto-apply. Stateless per invocation apart
// from the shared persistence store; safe to run concurrently across
// different subjects.
type Orchestrator struct {
	chain     *guardrails.Chain
	engine    *scoring.Engine
	proposals ProposalStore
	cooloffs  CooloffStore
	audits    AuditLog
	emitter   EventEmitter
	policy    *config.Policy
	log       zerolog.Logger
}

// NewOrchestrator creates the pipeline controller
func NewOrchestrator(
	chain *guardrails.Chain,
	engine *scoring.Engine,
	proposals ProposalStore,
	cooloffs CooloffStore,
	audits AuditLog,
	emitter EventEmitter,
	policy *config.Policy,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		chain:     chain,
		engine:    engine,
		proposals: proposals,
		cooloffs:  cooloffs,
		audits:    audits,
		emitter:   emitter,
		policy:    policy,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes the pipeline for one candidate. Validation and persistence
// failures return an error; a guardrail block is a normal terminal outcome
// reported via Result.Status.
func (o *Orchestrator) Run(ctx domain.CandidateContext, features domain.FeatureVector) (Result, error) {
	if err := ctx.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid candidate context: %w", err)
	}

	runID := ctx.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	outcome := o.chain.Evaluate(ctx)
	if outcome.Blocked() {
		return o.finishBlocked(ctx, runID, outcome)
	}

	scoreResult := o.engine.Score(features)

	proposalID, err := o.proposals.InsertWithTrace(Proposal{
		Type:        ctx.Type,
		Band:        scoreResult.Band,
		Score:       scoreResult.Score,
		Features:    features,
		ContextHash: ctx.ContextHash(),
		SubjectSKU:  ctx.SKU,
		StoreID:     ctx.StoreID,
		RunID:       runID,
	}, outcome.Results)
	if err != nil {
		return Result{}, fmt.Errorf("failed to persist proposal: %w", err)
	}

	o.auditBestEffort(proposalID, ctx, domain.EffectProposed, map[string]interface{}{
		"band":  string(scoreResult.Band),
		"score": scoreResult.Score,
	})
	o.emit(events.ProposalCreated, map[string]interface{}{
		"proposal_id": proposalID,
		"sku":         ctx.SKU,
		"store_id":    ctx.StoreID,
		"band":        string(scoreResult.Band),
		"run_id":      runID,
	})

	result := Result{
		Status:     string(scoreResult.Band),
		RunID:      runID,
		ProposalID: proposalID,
		Guardrail:  outcome,
		Score:      &scoreResult,
	}
	result.AutoApplied, result.AutoReason = o.maybeAutoApply(ctx, scoreResult, proposalID)

	return result, nil
}

// finishBlocked handles the guardrail-blocked terminal path. By default
// blocked contexts are not persisted; PersistBlocked turns on durable
// logging of blocked attempts for audit completeness.
func (o *Orchestrator) finishBlocked(ctx domain.CandidateContext, runID string, outcome guardrails.Outcome) (Result, error) {
	result := Result{
		Status:    StatusBlocked,
		RunID:     runID,
		Guardrail: outcome,
	}

	o.emit(events.GuardrailBlocked, map[string]interface{}{
		"sku":        ctx.SKU,
		"store_id":   ctx.StoreID,
		"blocked_by": outcome.BlockedBy,
		"run_id":     runID,
	})

	if !o.policy.PersistBlocked {
		return result, nil
	}

	proposalID, err := o.proposals.InsertWithTrace(Proposal{
		Type:        ctx.Type,
		Band:        domain.BandDiscard,
		Score:       0,
		Features:    domain.FeatureVector{},
		BlockedBy:   outcome.BlockedBy,
		ContextHash: ctx.ContextHash(),
		SubjectSKU:  ctx.SKU,
		StoreID:     ctx.StoreID,
		RunID:       runID,
	}, outcome.Results)
	if err != nil {
		return Result{}, fmt.Errorf("failed to persist blocked proposal: %w", err)
	}

	result.ProposalID = proposalID
	o.auditBestEffort(proposalID, ctx, domain.EffectRejected, map[string]interface{}{
		"blocked_by": outcome.BlockedBy,
	})

	return result, nil
}

// maybeAutoApply runs the auto-apply pilot: pricing decisions in the auto
// band, gated by the feature flag and the atomic cooloff acquire
func (o *Orchestrator) maybeAutoApply(ctx domain.CandidateContext, score scoring.ScoreResult, proposalID int64) (bool, string) {
	if ctx.Type != domain.DecisionPricing {
		return false, AutoReasonNotPricing
	}
	if score.Band != domain.BandAuto {
		return false, AutoReasonBandNotAuto
	}
	if !o.policy.AutoApplyPricing {
		return false, AutoReasonFlagDisabled
	}

	acquired, err := o.cooloffs.TryAcquire(proposalID, ctx.SKU, string(ctx.Type), o.policy.CooloffHours)
	if err != nil {
		// The proposal is already durably recorded; an unverifiable cooloff
		// downgrades to a manual proposal rather than failing the run
		o.log.Error().Err(err).
			Int64("proposal_id", proposalID).
			Str("sku", ctx.SKU).
			Msg("Cooloff acquire failed, skipping auto-apply")
		return false, AutoReasonCheckFailed
	}
	if !acquired {
		return false, AutoReasonCooloff
	}

	if err := o.proposals.MarkAutoApplied(proposalID); err != nil {
		o.log.Error().Err(err).Int64("proposal_id", proposalID).Msg("Failed to flag proposal auto-applied")
	}

	o.auditBestEffort(proposalID, ctx, domain.EffectApplied, map[string]interface{}{
		"score": score.Score,
		"auto":  true,
	})
	o.emit(events.AutoApplied, map[string]interface{}{
		"proposal_id": proposalID,
		"sku":         ctx.SKU,
		"store_id":    ctx.StoreID,
	})

	o.log.Info().
		Int64("proposal_id", proposalID).
		Str("sku", ctx.SKU).
		Float64("score", score.Score).
		Msg("Pricing decision auto-applied")

	return true, AutoReasonApplied
}

func (o *Orchestrator) auditBestEffort(proposalID int64, ctx domain.CandidateContext, effect domain.Effect, metadata map[string]interface{}) {
	if o.audits == nil {
		return
	}
	if err := o.audits.Insert(proposalID, ctx.SKU, string(ctx.Type), effect, metadata); err != nil {
		o.log.Warn().Err(err).
			Int64("proposal_id", proposalID).
			Str("effect", string(effect)).
			Msg("Audit write failed")
	}
}

func (o *Orchestrator) emit(eventType events.EventType, data map[string]interface{}) {
	if o.emitter != nil {
		o.emitter.Emit(eventType, "decisions", data)
	}
}
