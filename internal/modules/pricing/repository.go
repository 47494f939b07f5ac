package pricing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles price candidate persistence.
// Prices are stored as text so decimal exactness survives the round trip.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price candidate repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "pricing").Logger(),
	}
}

// Insert stores a new pending candidate and returns its id
func (r *Repository) Insert(c Candidate) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	currency := c.Currency
	if currency == "" {
		currency = "EUR"
	}
	source := c.Source
	if source == "" {
		source = "elasticity"
	}

	result, err := r.db.Exec(`
		INSERT INTO price_candidates (sku, store_id, current_price, candidate_price, currency, source, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.SKU, c.StoreID, c.CurrentPrice.String(), c.CandidatePrice.String(), currency, source, StatusPending, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert price candidate: %w", err)
	}
	return result.LastInsertId()
}

// ListPending returns pending candidates, oldest first
func (r *Repository) ListPending(limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, sku, store_id, current_price, candidate_price, currency, source, status, created_at, decided_at
		FROM price_candidates
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?
	`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending price candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// MarkDecided transitions a candidate out of the pending pool
func (r *Repository) MarkDecided(id int64) error {
	result, err := r.db.Exec(`
		UPDATE price_candidates
		SET status = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`, StatusDecided, time.Now().Unix(), id, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark price candidate %d decided: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check decided update for candidate %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("price candidate %d is not pending", id)
	}
	return nil
}

// ExpireOlderThan expires pending candidates created before the cutoff and
// returns how many were expired
func (r *Repository) ExpireOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE price_candidates
		SET status = ?, decided_at = ?
		WHERE status = ? AND created_at < ?
	`, StatusExpired, time.Now().Unix(), StatusPending, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to expire price candidates: %w", err)
	}
	return result.RowsAffected()
}

func scanCandidates(rows *sql.Rows) ([]Candidate, error) {
	var candidates []Candidate
	for rows.Next() {
		var (
			c              Candidate
			currentPrice   string
			candidatePrice string
			createdAt      int64
			decidedAt      sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.SKU, &c.StoreID, &currentPrice, &candidatePrice,
			&c.Currency, &c.Source, &c.Status, &createdAt, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price candidate: %w", err)
		}

		var err error
		if c.CurrentPrice, err = decimal.NewFromString(currentPrice); err != nil {
			return nil, fmt.Errorf("corrupt current price %q for candidate %d: %w", currentPrice, c.ID, err)
		}
		if c.CandidatePrice, err = decimal.NewFromString(candidatePrice); err != nil {
			return nil, fmt.Errorf("corrupt candidate price %q for candidate %d: %w", candidatePrice, c.ID, err)
		}

		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		if decidedAt.Valid {
			decided := time.Unix(decidedAt.Int64, 0).UTC()
			c.DecidedAt = &decided
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
