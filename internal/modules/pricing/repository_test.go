package pricing

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPricingDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE price_candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sku TEXT NOT NULL,
			store_id TEXT NOT NULL,
			current_price TEXT NOT NULL,
			candidate_price TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'EUR',
			source TEXT NOT NULL DEFAULT 'elasticity',
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'decided', 'expired')),
			created_at INTEGER NOT NULL,
			decided_at INTEGER
		)
	`)
	require.NoError(t, err)

	return db
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestRepository_InsertAndListPending(t *testing.T) {
	repo := NewRepository(setupPricingDB(t), zerolog.Nop())

	id, err := repo.Insert(Candidate{
		SKU:            "SKU-1",
		StoreID:        "out-1",
		CurrentPrice:   mustDecimal(t, "19.99"),
		CandidatePrice: mustDecimal(t, "21.49"),
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	pending, err := repo.ListPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "SKU-1", pending[0].SKU)
	assert.Equal(t, StatusPending, pending[0].Status)
	// Decimal exactness survives the text round trip
	assert.True(t, pending[0].CurrentPrice.Equal(mustDecimal(t, "19.99")))
	assert.True(t, pending[0].CandidatePrice.Equal(mustDecimal(t, "21.49")))
	assert.Equal(t, "EUR", pending[0].Currency)
}

func TestRepository_InsertRejectsInvalid(t *testing.T) {
	repo := NewRepository(setupPricingDB(t), zerolog.Nop())

	tests := []struct {
		name      string
		candidate Candidate
	}{
		{"missing sku", Candidate{StoreID: "out-1", CurrentPrice: mustDecimal(t, "10"), CandidatePrice: mustDecimal(t, "11")}},
		{"zero current price", Candidate{SKU: "SKU-1", StoreID: "out-1", CandidatePrice: mustDecimal(t, "11")}},
		{"negative candidate price", Candidate{SKU: "SKU-1", StoreID: "out-1", CurrentPrice: mustDecimal(t, "10"), CandidatePrice: mustDecimal(t, "-1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Insert(tt.candidate)
			assert.Error(t, err)
		})
	}
}

func TestRepository_MarkDecided(t *testing.T) {
	repo := NewRepository(setupPricingDB(t), zerolog.Nop())

	id, err := repo.Insert(Candidate{
		SKU:            "SKU-1",
		StoreID:        "out-1",
		CurrentPrice:   mustDecimal(t, "10.00"),
		CandidatePrice: mustDecimal(t, "11.00"),
	})
	require.NoError(t, err)

	require.NoError(t, repo.MarkDecided(id))

	pending, err := repo.ListPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A second decide on the same candidate fails
	assert.Error(t, repo.MarkDecided(id))
}

func TestRepository_ExpireOlderThan(t *testing.T) {
	db := setupPricingDB(t)
	repo := NewRepository(db, zerolog.Nop())

	old := time.Now().Add(-48 * time.Hour)
	_, err := db.Exec(`
		INSERT INTO price_candidates (sku, store_id, current_price, candidate_price, status, created_at)
		VALUES ('SKU-old', 'out-1', '10', '11', 'pending', ?)
	`, old.Unix())
	require.NoError(t, err)

	_, err = repo.Insert(Candidate{
		SKU:            "SKU-fresh",
		StoreID:        "out-1",
		CurrentPrice:   mustDecimal(t, "10"),
		CandidatePrice: mustDecimal(t, "11"),
	})
	require.NoError(t, err)

	expired, err := repo.ExpireOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	pending, err := repo.ListPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "SKU-fresh", pending[0].SKU)
}

func TestCandidate_DeltaAndMargin(t *testing.T) {
	c := Candidate{
		CurrentPrice:   mustDecimal(t, "20.00"),
		CandidatePrice: mustDecimal(t, "23.00"),
	}

	assert.InDelta(t, 0.15, c.DeltaPct(), 1e-9)
	assert.InDelta(t, 0.5, c.MarginPct(mustDecimal(t, "11.50")), 1e-9)

	cut := Candidate{
		CurrentPrice:   mustDecimal(t, "20.00"),
		CandidatePrice: mustDecimal(t, "18.00"),
	}
	assert.InDelta(t, -0.10, cut.DeltaPct(), 1e-9)
}
