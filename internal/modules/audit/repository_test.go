package audit

import (
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/storeops/internal/domain"
	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuditDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			proposal_id INTEGER NOT NULL,
			subject_sku TEXT NOT NULL,
			action_type TEXT NOT NULL,
			effect TEXT NOT NULL CHECK(effect IN ('proposed', 'applied', 'rejected')),
			metadata TEXT,
			applied_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func TestInsertAndListBySubject(t *testing.T) {
	repo := NewRepository(setupAuditDB(t), zerolog.Nop())

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })

	require.NoError(t, repo.Insert(1, "SKU-1", "pricing", domain.EffectProposed, nil))
	require.NoError(t, repo.Insert(1, "SKU-1", "pricing", domain.EffectApplied,
		map[string]interface{}{"auto": true}))
	require.NoError(t, repo.Insert(2, "SKU-2", "transfer", domain.EffectProposed, nil))

	records, err := repo.ListBySubject("SKU-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	assert.Equal(t, domain.EffectApplied, records[0].Effect)
	assert.Equal(t, true, records[0].Metadata["auto"])
	assert.Equal(t, domain.EffectProposed, records[1].Effect)
	assert.Nil(t, records[1].Metadata)
}

func TestInsert_RejectsUnknownEffect(t *testing.T) {
	repo := NewRepository(setupAuditDB(t), zerolog.Nop())

	err := repo.Insert(1, "SKU-1", "pricing", domain.Effect("archived"), nil)
	assert.Error(t, err)
}

func TestListSince(t *testing.T) {
	repo := NewRepository(setupAuditDB(t), zerolog.Nop())

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	repo.SetClock(func() time.Time { return base })
	require.NoError(t, repo.Insert(1, "SKU-1", "pricing", domain.EffectProposed, nil))

	repo.SetClock(func() time.Time { return base.Add(48 * time.Hour) })
	require.NoError(t, repo.Insert(2, "SKU-2", "pricing", domain.EffectApplied, nil))

	records, err := repo.ListSince(base.Add(24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ProposalID)

	records, err = repo.ListSince(base.Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
