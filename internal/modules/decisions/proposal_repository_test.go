package decisions

import (
	"database/sql"
	"testing"

	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/modules/guardrails"
	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDecisionsDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE proposals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			band TEXT NOT NULL,
			score REAL NOT NULL,
			feature_json TEXT NOT NULL,
			blocked_by TEXT,
			context_hash TEXT NOT NULL,
			subject_sku TEXT NOT NULL,
			store_id TEXT NOT NULL,
			run_id TEXT,
			auto_applied INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE guardrail_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			proposal_id INTEGER NOT NULL,
			run_id TEXT,
			sequence_no INTEGER NOT NULL,
			rule_code TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			metadata TEXT,
			created_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func sampleProposal() Proposal {
	return Proposal{
		Type:        domain.DecisionPricing,
		Band:        domain.BandPropose,
		Score:       0.62,
		Features:    domain.FeatureVector{"margin_uplift": 0.3, "risk_penalty": -0.1},
		ContextHash: "abc123",
		SubjectSKU:  "SKU-1",
		StoreID:     "STORE-01",
		RunID:       "run-1",
	}
}

func sampleTrace() []guardrails.TraceEntry {
	return []guardrails.TraceEntry{
		{SequenceNo: 1, RuleCode: "price_delta_bound", Status: domain.GuardrailAllow},
		{SequenceNo: 2, RuleCode: "margin_floor", Status: domain.GuardrailWarn, Message: "margin signal missing, floor not verified"},
	}
}

func TestInsertWithTrace_RoundTrip(t *testing.T) {
	repo := NewProposalRepository(setupDecisionsDB(t), zerolog.Nop())

	id, err := repo.InsertWithTrace(sampleProposal(), sampleTrace())
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.DecisionPricing, got.Type)
	assert.Equal(t, domain.BandPropose, got.Band)
	assert.InDelta(t, 0.62, got.Score, 1e-9)
	assert.Equal(t, "SKU-1", got.SubjectSKU)
	assert.Equal(t, "run-1", got.RunID)
	assert.False(t, got.AutoApplied)
	assert.InDelta(t, 0.3, got.Features["margin_uplift"], 1e-9)

	trace, err := repo.GetTrace(id)
	require.NoError(t, err)
	require.Len(t, trace, 2)
	assert.Equal(t, "price_delta_bound", trace[0].RuleCode)
	assert.Equal(t, domain.GuardrailWarn, trace[1].Status)
	assert.Equal(t, "margin signal missing, floor not verified", trace[1].Message)
}

func TestInsertWithTrace_AtomicOnTraceFailure(t *testing.T) {
	db := setupDecisionsDB(t)
	repo := NewProposalRepository(db, zerolog.Nop())

	// Recreate the trace table with a constraint the second entry violates,
	// so the batch fails after the proposal row was written inside the tx
	_, err := db.Exec(`DROP TABLE guardrail_traces`)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE guardrail_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			proposal_id INTEGER NOT NULL,
			run_id TEXT,
			sequence_no INTEGER NOT NULL CHECK(sequence_no < 2),
			rule_code TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			metadata TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	_, err = repo.InsertWithTrace(sampleProposal(), sampleTrace())
	require.Error(t, err)

	// The proposal row must have been rolled back with the trace
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM proposals`).Scan(&count))
	assert.Equal(t, 0, count, "no proposal may exist without its guardrail trace")
}

func TestMarkAutoApplied(t *testing.T) {
	repo := NewProposalRepository(setupDecisionsDB(t), zerolog.Nop())

	id, err := repo.InsertWithTrace(sampleProposal(), sampleTrace())
	require.NoError(t, err)

	require.NoError(t, repo.MarkAutoApplied(id))

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.True(t, got.AutoApplied)
}

func TestGetByID_Missing(t *testing.T) {
	repo := NewProposalRepository(setupDecisionsDB(t), zerolog.Nop())

	got, err := repo.GetByID(999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRecentAndRecentScores(t *testing.T) {
	repo := NewProposalRepository(setupDecisionsDB(t), zerolog.Nop())

	scores := []float64{0.2, 0.5, 0.8}
	for _, s := range scores {
		p := sampleProposal()
		p.Score = s
		_, err := repo.InsertWithTrace(p, nil)
		require.NoError(t, err)
	}

	recent, err := repo.ListRecent(2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	got, err := repo.RecentScores(domain.DecisionPricing, 10)
	require.NoError(t, err)
	assert.Equal(t, scores, got, "scores return oldest first")

	transfer, err := repo.RecentScores(domain.DecisionTransfer, 10)
	require.NoError(t, err)
	assert.Empty(t, transfer)
}
