// Package cooloff tracks auto-applied actions per subject and blocks
// re-application inside a configurable time window.
package cooloff

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles cooloff records in the decisions database.
// Records are append-only and expire logically: the time-bounded queries
// exclude stale rows, no background expiry runs.
type Repository struct {
	db    *sql.DB
	log   zerolog.Logger
	clock func() time.Time
}

// NewRepository creates a cooloff repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		log:   log.With().Str("repo", "cooloff").Logger(),
		clock: time.Now,
	}
}

// SetClock overrides the wall clock, for tests
func (r *Repository) SetClock(clock func() time.Time) {
	r.clock = clock
}

// InWindow reports whether any record for (subject, actionType) has
// applied_at within hours of now
func (r *Repository) InWindow(subject, actionType string, hours int) (bool, error) {
	cutoff := r.clock().Add(-time.Duration(hours) * time.Hour).Unix()

	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM cooloffs
		WHERE subject_sku = ? AND action_type = ? AND applied_at >= ?
	`, subject, actionType, cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query cooloff window: %w", err)
	}

	return count > 0, nil
}

// Record inserts a cooloff record for an auto-applied action
func (r *Repository) Record(proposalID int64, subject, actionType string, hours int) error {
	now := r.clock()
	_, err := r.db.Exec(`
		INSERT INTO cooloffs (proposal_id, subject_sku, action_type, window_bucket, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`, proposalID, subject, actionType, windowBucket(now, hours), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to record cooloff: %w", err)
	}

	r.log.Debug().
		Int64("proposal_id", proposalID).
		Str("subject", subject).
		Str("action_type", actionType).
		Msg("Cooloff recorded")
	return nil
}

// TryAcquire atomically checks the window and records the cooloff in a single
// conditional insert. It returns true when the window was free and is now
// held by this proposal. Concurrent callers for the same subject cannot both
// acquire: the sliding-window predicate is evaluated inside the insert and
// the UNIQUE(subject, action_type, window_bucket) index backs it up.
func (r *Repository) TryAcquire(proposalID int64, subject, actionType string, hours int) (bool, error) {
	now := r.clock()
	cutoff := now.Add(-time.Duration(hours) * time.Hour).Unix()

	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO cooloffs (proposal_id, subject_sku, action_type, window_bucket, applied_at)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM cooloffs
			WHERE subject_sku = ? AND action_type = ? AND applied_at >= ?
		)
	`, proposalID, subject, actionType, windowBucket(now, hours), now.Unix(),
		subject, actionType, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to acquire cooloff: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read cooloff insert result: %w", err)
	}

	acquired := rows > 0
	if acquired {
		r.log.Debug().
			Int64("proposal_id", proposalID).
			Str("subject", subject).
			Str("action_type", actionType).
			Msg("Cooloff window acquired")
	}
	return acquired, nil
}

// windowBucket partitions time into hours-sized buckets for the uniqueness
// constraint backing TryAcquire
func windowBucket(now time.Time, hours int) int64 {
	if hours <= 0 {
		hours = 1
	}
	return now.Unix() / int64(hours*3600)
}
