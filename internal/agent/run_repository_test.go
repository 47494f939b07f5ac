package agent

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRunsDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE agent_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			items_seen INTEGER NOT NULL DEFAULT 0,
			items_decided INTEGER NOT NULL DEFAULT 0,
			items_auto_applied INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)
	`)
	require.NoError(t, err)

	return db
}

func TestRunRepository_StartAndFinish(t *testing.T) {
	repo := NewRunRepository(setupRunsDB(t), zerolog.Nop())

	id, err := repo.Start("run-1")
	require.NoError(t, err)
	assert.Positive(t, id)

	records, err := repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Nil(t, records[0].FinishedAt)

	require.NoError(t, repo.Finish(id, 10, 8, 2, nil))

	records, err = repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].FinishedAt)
	assert.Equal(t, 10, records[0].ItemsSeen)
	assert.Equal(t, 8, records[0].ItemsDecided)
	assert.Equal(t, 2, records[0].ItemsAutoApplied)
	assert.Empty(t, records[0].Error)
}

func TestRunRepository_FinishWithError(t *testing.T) {
	repo := NewRunRepository(setupRunsDB(t), zerolog.Nop())

	id, err := repo.Start("run-1")
	require.NoError(t, err)
	require.NoError(t, repo.Finish(id, 3, 1, 0, errors.New("feed unavailable")))

	records, err := repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "feed unavailable", records[0].Error)
}
