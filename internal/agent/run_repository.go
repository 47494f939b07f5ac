package agent

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunRecord is one completed or in-flight agent cycle
type RunRecord struct {
	ID               int64      `json:"id"`
	RunID            string     `json:"run_id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	ItemsSeen        int        `json:"items_seen"`
	ItemsDecided     int        `json:"items_decided"`
	ItemsAutoApplied int        `json:"items_auto_applied"`
	Error            string     `json:"error,omitempty"`
}

// RunRepository records agent cycles in the cache database
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates an agent run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "agent_runs").Logger(),
	}
}

// Start records the beginning of a cycle and returns the row id
func (r *RunRepository) Start(runID string) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO agent_runs (run_id, started_at)
		VALUES (?, ?)
	`, runID, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to record agent run start: %w", err)
	}
	return result.LastInsertId()
}

// Finish closes out a cycle with its counters and optional error
func (r *RunRepository) Finish(id int64, seen, decided, autoApplied int, runErr error) error {
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	_, err := r.db.Exec(`
		UPDATE agent_runs
		SET finished_at = ?, items_seen = ?, items_decided = ?, items_auto_applied = ?, error = ?
		WHERE id = ?
	`, time.Now().Unix(), seen, decided, autoApplied, nullIfEmpty(errText), id)
	if err != nil {
		return fmt.Errorf("failed to record agent run finish: %w", err)
	}
	return nil
}

// ListRecent returns the newest cycles, most recent first
func (r *RunRepository) ListRecent(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, run_id, started_at, finished_at, items_seen, items_decided, items_auto_applied, error
		FROM agent_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec        RunRecord
			startedAt  int64
			finishedAt sql.NullInt64
			errText    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &startedAt, &finishedAt,
			&rec.ItemsSeen, &rec.ItemsDecided, &rec.ItemsAutoApplied, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan agent run: %w", err)
		}
		rec.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			finished := time.Unix(finishedAt.Int64, 0).UTC()
			rec.FinishedAt = &finished
		}
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
