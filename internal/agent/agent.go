package agent

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/events"
	"github.com/aristath/storeops/internal/modules/allocation"
	"github.com/aristath/storeops/internal/modules/decisions"
	"github.com/aristath/storeops/internal/modules/guardrails"
	"github.com/aristath/storeops/internal/modules/pricing"
)

// agentBiasFeature is the feature key the score bias is injected under
const agentBiasFeature = "agent_bias"

// DecisionRunner drives one candidate through the decision pipeline
type DecisionRunner interface {
	Run(ctx domain.CandidateContext, features domain.FeatureVector) (decisions.Result, error)
}

// PricingSource supplies pending price candidates as pipeline inputs
type PricingSource interface {
	PendingInputs(limit int, runID string) ([]pricing.PipelineInput, error)
	MarkDecided(id int64) error
}

// AllocationPlanner plans surplus distributions and drafts transfers
type AllocationPlanner interface {
	PlanSKU(sku string) (*allocation.Plan, error)
	Candidate(plan *allocation.Plan, row domain.AllocationRow, runID string) domain.CandidateContext
	DraftTransfer(plan *allocation.Plan, row domain.AllocationRow) (*domain.TransferOrder, error)
}

// HubSKUSource lists skus the warehouse currently holds
type HubSKUSource interface {
	SKUsWithHubStock(limit int) ([]string, error)
}

// TransferStore persists drafted transfer orders
type TransferStore interface {
	Insert(order *domain.TransferOrder) error
}

// EventEmitter publishes agent cycle events
type EventEmitter interface {
	Emit(eventType events.EventType, module string, data map[string]interface{})
}

// Agent is the decision cycle job. Each cycle pulls pending pricing
// candidates and hub surplus, dedupes repeated triggers by idempotency key,
// and runs each item through the orchestrator up to the configured limit.
type Agent struct {
	runner     DecisionRunner
	pricing    PricingSource
	allocation AllocationPlanner
	hubSKUs    HubSKUSource
	transfers  TransferStore
	runs       *RunRepository
	emitter    EventEmitter
	cfg        config.AgentConfig
	log        zerolog.Logger
	clock      func() time.Time

	// Held for the whole cycle; the cron schedule and the manual run
	// endpoint both call Run, overlapping cycles skip
	runMu sync.Mutex

	// Keys decided in earlier cycles with their decision time; repeated
	// triggers are skipped until the redecide window lapses
	decidedAt map[string]time.Time
}

// NewAgent creates the decision cycle job
func NewAgent(
	runner DecisionRunner,
	pricingSource PricingSource,
	planner AllocationPlanner,
	hubSKUs HubSKUSource,
	transfers TransferStore,
	runs *RunRepository,
	emitter EventEmitter,
	cfg config.AgentConfig,
	log zerolog.Logger,
) *Agent {
	return &Agent{
		runner:     runner,
		pricing:    pricingSource,
		allocation: planner,
		hubSKUs:    hubSKUs,
		transfers:  transfers,
		runs:       runs,
		emitter:    emitter,
		cfg:        cfg,
		log:        log.With().Str("component", "agent").Logger(),
		clock:      time.Now,
		decidedAt:  make(map[string]time.Time),
	}
}

// SetClock overrides the time source for tests
func (a *Agent) SetClock(clock func() time.Time) {
	a.clock = clock
}

// Name returns the job name
func (a *Agent) Name() string {
	return "decision_cycle"
}

// Run executes one sense/decide/act cycle. Overlapping invocations (the
// cron schedule racing a manual trigger) skip rather than run concurrently.
func (a *Agent) Run() error {
	if !a.runMu.TryLock() {
		a.log.Warn().Msg("Agent cycle already running, skipping")
		return nil
	}
	defer a.runMu.Unlock()

	runID := uuid.New().String()
	log := a.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("Agent cycle starting")

	a.pruneDecided()

	var rowID int64
	if a.runs != nil {
		var err error
		if rowID, err = a.runs.Start(runID); err != nil {
			log.Warn().Err(err).Msg("Failed to record cycle start")
		}
	}

	stats := &cycleStats{budget: a.cfg.MaxItemsPerCycle}

	a.decidePricing(runID, stats, log)
	a.decideTransfers(runID, stats, log)

	if a.runs != nil && rowID > 0 {
		if err := a.runs.Finish(rowID, stats.seen, stats.decided, stats.autoApplied, stats.lastErr); err != nil {
			log.Warn().Err(err).Msg("Failed to record cycle finish")
		}
	}

	if a.emitter != nil {
		a.emitter.Emit(events.AgentCycleDone, "agent", map[string]interface{}{
			"run_id":       runID,
			"items_seen":   stats.seen,
			"decided":      stats.decided,
			"auto_applied": stats.autoApplied,
		})
	}

	log.Info().
		Int("seen", stats.seen).
		Int("decided", stats.decided).
		Int("auto_applied", stats.autoApplied).
		Msg("Agent cycle complete")
	return stats.lastErr
}

type cycleStats struct {
	budget      int
	seen        int
	decided     int
	autoApplied int
	lastErr     error
}

func (s *cycleStats) exhausted() bool {
	return s.budget > 0 && s.seen >= s.budget
}

// redecideWindow is how long an idempotency key suppresses repeated
// transfer triggers before the subject becomes eligible again
func (a *Agent) redecideWindow() time.Duration {
	hours := a.cfg.RedecideHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// pruneDecided drops dedupe entries older than the redecide window so the
// set stays bounded and lapsed subjects can be re-decided
func (a *Agent) pruneDecided() {
	cutoff := a.clock().Add(-a.redecideWindow())
	for key, at := range a.decidedAt {
		if at.Before(cutoff) {
			delete(a.decidedAt, key)
		}
	}
}

func (a *Agent) decidePricing(runID string, stats *cycleStats, log zerolog.Logger) {
	if a.pricing == nil || stats.exhausted() {
		return
	}

	remaining := stats.budget - stats.seen
	inputs, err := a.pricing.PendingInputs(remaining, runID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load pending price candidates")
		stats.lastErr = err
		return
	}

	for _, input := range inputs {
		if stats.exhausted() {
			return
		}
		stats.seen++

		a.applyBias(input.Features)
		result, err := a.runner.Run(input.Context, input.Features)
		if err != nil {
			log.Error().Err(err).Str("sku", input.Context.SKU).Msg("Pricing decision failed")
			stats.lastErr = err
			continue
		}
		stats.decided++
		if result.AutoApplied {
			stats.autoApplied++
		}

		if err := a.pricing.MarkDecided(input.Candidate.ID); err != nil {
			log.Warn().Err(err).Int64("candidate", input.Candidate.ID).
				Msg("Failed to mark price candidate decided")
		}
	}
}

func (a *Agent) decideTransfers(runID string, stats *cycleStats, log zerolog.Logger) {
	if a.allocation == nil || a.hubSKUs == nil || stats.exhausted() {
		return
	}

	skus, err := a.hubSKUs.SKUsWithHubStock(stats.budget)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list hub skus")
		stats.lastErr = err
		return
	}

	for _, sku := range skus {
		if stats.exhausted() {
			return
		}

		plan, err := a.allocation.PlanSKU(sku)
		if err != nil {
			log.Error().Err(err).Str("sku", sku).Msg("Allocation planning failed")
			stats.lastErr = err
			continue
		}

		for _, row := range plan.Rows {
			if stats.exhausted() {
				return
			}

			key := decisions.KeyFromSignal(row.OutletID, row.ProductID, row.Quantity, 0, 0,
				plan.SourceHub, decisions.DefaultKeyPurpose)
			if _, ok := a.decidedAt[key]; ok {
				continue
			}

			stats.seen++
			ctx := a.allocation.Candidate(plan, row, runID)
			features := a.transferFeatures(plan, row, ctx)
			a.applyBias(features)

			result, err := a.runner.Run(ctx, features)
			if err != nil {
				log.Error().Err(err).Str("sku", sku).Str("outlet", row.OutletID).
					Msg("Transfer decision failed")
				stats.lastErr = err
				continue
			}
			stats.decided++
			a.decidedAt[key] = a.clock()

			if result.Status == decisions.StatusBlocked || result.Status == string(domain.BandDiscard) {
				continue
			}

			order, err := a.allocation.DraftTransfer(plan, row)
			if err != nil {
				log.Error().Err(err).Str("sku", sku).Msg("Transfer drafting failed")
				stats.lastErr = err
				continue
			}
			if err := a.transfers.Insert(order); err != nil {
				log.Error().Err(err).Str("transfer", order.TransferID).Msg("Transfer insert failed")
				stats.lastErr = err
				continue
			}

			if a.emitter != nil {
				a.emitter.Emit(events.TransferDrafted, "agent", map[string]interface{}{
					"transfer_id": order.TransferID,
					"sku":         sku,
					"dest_store":  row.OutletID,
					"quantity":    row.Quantity,
					"proposal_id": result.ProposalID,
				})
			}
		}
	}
}

// transferFeatures derives scoring contributions from the allocation context
func (a *Agent) transferFeatures(plan *allocation.Plan, row domain.AllocationRow, ctx domain.CandidateContext) domain.FeatureVector {
	velocity := ctx.Signal(guardrails.SignalVelocity, 0)

	coverage := 0.0
	if row.Quantity > 0 {
		coverage = math.Min(1, float64(plan.Surplus)/float64(4*row.Quantity))
	}

	urgency := 0.2
	if row.Capped {
		urgency = 0.6
	}

	return domain.FeatureVector{
		"demand_score":     velocity / (velocity + 1),
		"surplus_coverage": coverage,
		"urgency":          urgency,
	}
}

func (a *Agent) applyBias(features domain.FeatureVector) {
	if a.cfg.ScoreBias != 0 {
		features[agentBiasFeature] = a.cfg.ScoreBias
	}
}
