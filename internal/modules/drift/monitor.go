package drift

import (
	"fmt"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/events"
	"github.com/rs/zerolog"
)

// ScoreSource supplies the observed score population for a feature set
type ScoreSource func(featureSet string, limit int) ([]float64, error)

// EventEmitter publishes drift alerts
type EventEmitter interface {
	Emit(eventType events.EventType, module string, data map[string]interface{})
}

// Monitor compares live score populations against stored baselines.
// Monitoring-only: it never blocks decisions; callers wire PSI status into
// their own alerting or guardrails.
type Monitor struct {
	scores    ScoreSource
	baselines *BaselineStore
	metrics   *Repository
	emitter   EventEmitter
	cfg       config.DriftConfig
	log       zerolog.Logger
}

// NewMonitor creates a drift monitor
func NewMonitor(
	scores ScoreSource,
	baselines *BaselineStore,
	metrics *Repository,
	emitter EventEmitter,
	cfg config.DriftConfig,
	log zerolog.Logger,
) *Monitor {
	return &Monitor{
		scores:    scores,
		baselines: baselines,
		metrics:   metrics,
		emitter:   emitter,
		cfg:       cfg,
		log:       log.With().Str("component", "drift_monitor").Logger(),
	}
}

// Check computes PSI for one feature set against its baseline. When no
// baseline exists the current population becomes the baseline. The metric
// insert is best-effort; a failed write logs and returns the computed result.
func (m *Monitor) Check(featureSet string, sampleLimit int) (*Metric, error) {
	samples, err := m.scores(featureSet, sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch score population for %s: %w", featureSet, err)
	}
	if len(samples) == 0 {
		m.log.Debug().Str("feature_set", featureSet).Msg("No samples, skipping drift check")
		return nil, nil
	}

	observed := BucketizeScores(samples, DefaultScoreBuckets)

	expected, err := m.baselines.Load(featureSet)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline for %s: %w", featureSet, err)
	}
	if expected == nil {
		if err := m.baselines.Save(featureSet, observed, len(samples)); err != nil {
			return nil, fmt.Errorf("failed to seed baseline for %s: %w", featureSet, err)
		}
		m.log.Info().Str("feature_set", featureSet).Int("samples", len(samples)).Msg("Baseline seeded")
		return nil, nil
	}

	result := ComputePSI(expected, observed)
	status := m.status(result.PSI)

	metric := &Metric{
		FeatureSet: featureSet,
		PSI:        result.PSI,
		Status:     status,
		Buckets:    result.Buckets,
	}

	if err := m.metrics.InsertMetric(featureSet, result.PSI, status, result.Buckets); err != nil {
		m.log.Warn().Err(err).Str("feature_set", featureSet).Msg("Drift metric write failed")
	}

	if status == StatusAlert && m.emitter != nil {
		m.emitter.Emit(events.DriftAlert, "drift", map[string]interface{}{
			"feature_set": featureSet,
			"psi":         result.PSI,
		})
	}

	m.log.Info().
		Str("feature_set", featureSet).
		Float64("psi", result.PSI).
		Str("status", status).
		Msg("Drift check complete")

	return metric, nil
}

// RebaseBaseline replaces the stored baseline with the current population
func (m *Monitor) RebaseBaseline(featureSet string, sampleLimit int) error {
	samples, err := m.scores(featureSet, sampleLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch score population for %s: %w", featureSet, err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples available to rebase %s", featureSet)
	}
	return m.baselines.Save(featureSet, BucketizeScores(samples, DefaultScoreBuckets), len(samples))
}

func (m *Monitor) status(psi float64) string {
	switch {
	case psi >= m.cfg.AlertPSI:
		return StatusAlert
	case psi >= m.cfg.WarnPSI:
		return StatusWarn
	default:
		return StatusStable
	}
}
