package drift

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/events"
)

func setupDriftDBs(t *testing.T) (decisions *sql.DB, cache *sql.DB) {
	t.Helper()

	decisions, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { decisions.Close() })

	_, err = decisions.Exec(`
		CREATE TABLE drift_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			feature_set TEXT NOT NULL,
			psi REAL NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('stable', 'warn', 'alert')),
			buckets_json TEXT NOT NULL DEFAULT '[]',
			computed_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	cache, err = sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	_, err = cache.Exec(`
		CREATE TABLE signal_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			feature_set TEXT NOT NULL,
			payload BLOB NOT NULL,
			taken_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return decisions, cache
}

type captureEmitter struct {
	events []events.EventType
}

func (c *captureEmitter) Emit(eventType events.EventType, module string, data map[string]interface{}) {
	c.events = append(c.events, eventType)
}

func newTestMonitor(t *testing.T, scores ScoreSource, emitter EventEmitter) (*Monitor, *Repository, *BaselineStore) {
	t.Helper()
	decisionsDB, cacheDB := setupDriftDBs(t)
	log := zerolog.Nop()
	metrics := NewRepository(decisionsDB, log)
	baselines := NewBaselineStore(cacheDB, log)
	cfg := config.DriftConfig{WarnPSI: 0.1, AlertPSI: 0.25}
	return NewMonitor(scores, baselines, metrics, emitter, cfg, log), metrics, baselines
}

func TestMonitor_FirstCheckSeedsBaseline(t *testing.T) {
	scores := func(featureSet string, limit int) ([]float64, error) {
		return []float64{0.4, 0.5, 0.6}, nil
	}
	monitor, metrics, baselines := newTestMonitor(t, scores, nil)

	metric, err := monitor.Check("pricing_score", 100)
	require.NoError(t, err)
	assert.Nil(t, metric, "seeding run produces no metric")

	baseline, err := baselines.Load("pricing_score")
	require.NoError(t, err)
	assert.NotNil(t, baseline)

	recent, err := metrics.ListRecent("pricing_score", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMonitor_StablePopulationStaysStable(t *testing.T) {
	scores := func(featureSet string, limit int) ([]float64, error) {
		return []float64{0.1, 0.3, 0.5, 0.7, 0.9}, nil
	}
	emitter := &captureEmitter{}
	monitor, metrics, _ := newTestMonitor(t, scores, emitter)

	_, err := monitor.Check("transfer_score", 100)
	require.NoError(t, err)

	metric, err := monitor.Check("transfer_score", 100)
	require.NoError(t, err)
	require.NotNil(t, metric)
	assert.InDelta(t, 0, metric.PSI, 1e-9)
	assert.Equal(t, StatusStable, metric.Status)
	assert.Empty(t, emitter.events)

	recent, err := metrics.ListRecent("transfer_score", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, StatusStable, recent[0].Status)
}

func TestMonitor_ShiftedPopulationAlerts(t *testing.T) {
	calls := 0
	scores := func(featureSet string, limit int) ([]float64, error) {
		calls++
		if calls == 1 {
			return []float64{0.05, 0.08, 0.12, 0.15, 0.18}, nil
		}
		return []float64{0.85, 0.88, 0.92, 0.95, 0.98}, nil
	}
	emitter := &captureEmitter{}
	monitor, _, _ := newTestMonitor(t, scores, emitter)

	_, err := monitor.Check("pricing_score", 100)
	require.NoError(t, err)

	metric, err := monitor.Check("pricing_score", 100)
	require.NoError(t, err)
	require.NotNil(t, metric)
	assert.Equal(t, StatusAlert, metric.Status)
	assert.Greater(t, metric.PSI, 0.25)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, events.DriftAlert, emitter.events[0])
}

func TestMonitor_NoSamplesSkips(t *testing.T) {
	scores := func(featureSet string, limit int) ([]float64, error) {
		return nil, nil
	}
	monitor, _, _ := newTestMonitor(t, scores, nil)

	metric, err := monitor.Check("pricing_score", 100)
	require.NoError(t, err)
	assert.Nil(t, metric)
}

func TestMonitor_RebaseReplacesBaseline(t *testing.T) {
	calls := 0
	scores := func(featureSet string, limit int) ([]float64, error) {
		calls++
		if calls == 1 {
			return []float64{0.1, 0.15, 0.2}, nil
		}
		return []float64{0.8, 0.85, 0.9}, nil
	}
	monitor, _, _ := newTestMonitor(t, scores, nil)

	_, err := monitor.Check("pricing_score", 100)
	require.NoError(t, err)

	// Shifted population would alert against the old baseline
	require.NoError(t, monitor.RebaseBaseline("pricing_score", 100))

	metric, err := monitor.Check("pricing_score", 100)
	require.NoError(t, err)
	require.NotNil(t, metric)
	assert.Equal(t, StatusStable, metric.Status)
}
