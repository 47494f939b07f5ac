package decisions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/storeops/internal/database"
	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/modules/guardrails"
	"github.com/rs/zerolog"
)

// proposalColumns avoids SELECT *; order must match scanProposal
const proposalColumns = `id, type, band, score, feature_json, blocked_by, context_hash, subject_sku, store_id, run_id, auto_applied, created_at`

// ProposalRepository handles proposal and guardrail-trace persistence.
// A proposal and its trace batch are written inside a single transaction:
// a proposal without its trace must never exist.
type ProposalRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProposalRepository creates a proposal repository
func NewProposalRepository(db *sql.DB, log zerolog.Logger) *ProposalRepository {
	return &ProposalRepository{
		db:  db,
		log: log.With().Str("repo", "proposal").Logger(),
	}
}

// InsertWithTrace persists the proposal and its full guardrail trace batch
// atomically, returning the new proposal id
func (r *ProposalRepository) InsertWithTrace(p Proposal, trace []guardrails.TraceEntry) (int64, error) {
	featureJSON, err := json.Marshal(p.Features)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal features: %w", err)
	}

	var proposalID int64
	now := time.Now().Unix()

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO proposals
			(type, band, score, feature_json, blocked_by, context_hash, subject_sku, store_id, run_id, auto_applied, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		`, string(p.Type), string(p.Band), p.Score, string(featureJSON),
			nullString(p.BlockedBy), p.ContextHash, p.SubjectSKU, p.StoreID, nullString(p.RunID), now)
		if err != nil {
			return fmt.Errorf("failed to insert proposal: %w", err)
		}

		proposalID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read proposal id: %w", err)
		}

		for _, entry := range trace {
			var metaJSON interface{}
			if entry.Meta != nil {
				b, err := json.Marshal(entry.Meta)
				if err != nil {
					return fmt.Errorf("failed to marshal trace metadata: %w", err)
				}
				metaJSON = string(b)
			}

			if _, err := tx.Exec(`
				INSERT INTO guardrail_traces
				(proposal_id, run_id, sequence_no, rule_code, status, message, metadata, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, proposalID, nullString(p.RunID), entry.SequenceNo, entry.RuleCode,
				string(entry.Status), nullString(entry.Message), metaJSON, now); err != nil {
				return fmt.Errorf("failed to insert guardrail trace %s: %w", entry.RuleCode, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info().
		Int64("proposal_id", proposalID).
		Str("type", string(p.Type)).
		Str("band", string(p.Band)).
		Str("sku", p.SubjectSKU).
		Msg("Proposal persisted")

	return proposalID, nil
}

// MarkAutoApplied sets the auto_applied flag on a freshly created proposal
func (r *ProposalRepository) MarkAutoApplied(proposalID int64) error {
	_, err := r.db.Exec(`UPDATE proposals SET auto_applied = 1 WHERE id = ?`, proposalID)
	if err != nil {
		return fmt.Errorf("failed to mark proposal %d auto-applied: %w", proposalID, err)
	}
	return nil
}

// GetByID retrieves a proposal, or nil when it does not exist
func (r *ProposalRepository) GetByID(id int64) (*Proposal, error) {
	row := r.db.QueryRow("SELECT "+proposalColumns+" FROM proposals WHERE id = ?", id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal %d: %w", id, err)
	}
	return p, nil
}

// ListRecent returns the newest proposals, most recent first
func (r *ProposalRepository) ListRecent(limit int) ([]Proposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query("SELECT "+proposalColumns+" FROM proposals ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		p, err := scanProposalRows(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// GetTrace returns the guardrail trace for a proposal in sequence order
func (r *ProposalRepository) GetTrace(proposalID int64) ([]guardrails.TraceEntry, error) {
	rows, err := r.db.Query(`
		SELECT sequence_no, rule_code, status, message, metadata
		FROM guardrail_traces
		WHERE proposal_id = ?
		ORDER BY sequence_no
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query guardrail trace: %w", err)
	}
	defer rows.Close()

	var trace []guardrails.TraceEntry
	for rows.Next() {
		var (
			entry    guardrails.TraceEntry
			status   string
			message  sql.NullString
			metaJSON sql.NullString
		)
		if err := rows.Scan(&entry.SequenceNo, &entry.RuleCode, &status, &message, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan guardrail trace: %w", err)
		}
		entry.Status = domain.GuardrailStatus(status)
		entry.Message = message.String
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &entry.Meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal trace metadata: %w", err)
			}
		}
		trace = append(trace, entry)
	}
	return trace, rows.Err()
}

// RecentScores returns the scores of the newest proposals of one decision
// type, oldest first. The drift monitor bucketizes these into the observed
// distribution.
func (r *ProposalRepository) RecentScores(decisionType domain.DecisionType, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(`
		SELECT score FROM (
			SELECT score, id FROM proposals WHERE type = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, string(decisionType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProposal(row *sql.Row) (*Proposal, error) {
	return scanProposalFrom(row)
}

func scanProposalRows(rows *sql.Rows) (*Proposal, error) {
	return scanProposalFrom(rows)
}

func scanProposalFrom(s rowScanner) (*Proposal, error) {
	var (
		p           Proposal
		ptype       string
		band        string
		featureJSON string
		blockedBy   sql.NullString
		runID       sql.NullString
		autoApplied int
		createdAt   int64
	)
	if err := s.Scan(&p.ID, &ptype, &band, &p.Score, &featureJSON, &blockedBy,
		&p.ContextHash, &p.SubjectSKU, &p.StoreID, &runID, &autoApplied, &createdAt); err != nil {
		return nil, err
	}
	p.Type = domain.DecisionType(ptype)
	p.Band = domain.Band(band)
	p.BlockedBy = blockedBy.String
	p.RunID = runID.String
	p.AutoApplied = autoApplied != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	if featureJSON != "" {
		if err := json.Unmarshal([]byte(featureJSON), &p.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposal features: %w", err)
		}
	}
	return &p, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
