// Package audit provides the append-only action-effect log used for
// compliance review.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/storeops/internal/domain"
	"github.com/rs/zerolog"
)

// Record is one audit-trail row: a single state transition for a proposal
type Record struct {
	ID         int64                  `json:"id"`
	ProposalID int64                  `json:"proposal_id"`
	SubjectSKU string                 `json:"subject_sku"`
	ActionType string                 `json:"action_type"`
	Effect     domain.Effect          `json:"effect"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	AppliedAt  time.Time              `json:"applied_at"`
}

// Repository handles audit log database operations
type Repository struct {
	db    *sql.DB
	log   zerolog.Logger
	clock func() time.Time
}

// NewRepository creates an audit repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		log:   log.With().Str("repo", "audit").Logger(),
		clock: time.Now,
	}
}

// SetClock overrides the wall clock, for tests
func (r *Repository) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Insert appends one audit record. Rows are immutable once written.
func (r *Repository) Insert(proposalID int64, subject, actionType string, effect domain.Effect, metadata map[string]interface{}) error {
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	_, err := r.db.Exec(`
		INSERT INTO audit_log (proposal_id, subject_sku, action_type, effect, metadata, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, proposalID, subject, actionType, string(effect), nullableString(metaJSON), r.clock().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	r.log.Debug().
		Int64("proposal_id", proposalID).
		Str("subject", subject).
		Str("effect", string(effect)).
		Msg("Audit record written")
	return nil
}

// ListBySubject returns audit records for a subject, newest first
func (r *Repository) ListBySubject(subject string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT id, proposal_id, subject_sku, action_type, effect, metadata, applied_at
		FROM audit_log
		WHERE subject_sku = ?
		ORDER BY applied_at DESC, id DESC
		LIMIT ?
	`, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListSince returns all audit records within a compliance window, newest first
func (r *Repository) ListSince(since time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(`
		SELECT id, proposal_id, subject_sku, action_type, effect, metadata, applied_at
		FROM audit_log
		WHERE applied_at >= ?
		ORDER BY applied_at DESC, id DESC
		LIMIT ?
	`, since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec       Record
			effect    string
			metaJSON  sql.NullString
			appliedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.ProposalID, &rec.SubjectSKU, &rec.ActionType, &effect, &metaJSON, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Effect = domain.Effect(effect)
		rec.AppliedAt = time.Unix(appliedAt, 0).UTC()
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
