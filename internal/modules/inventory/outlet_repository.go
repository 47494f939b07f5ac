// Package inventory provides repositories over the retail database:
// chain topology, stock levels and sales velocity.
package inventory

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/domain"
)

// OutletRepository handles outlet persistence
type OutletRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewOutletRepository creates a new outlet repository
func NewOutletRepository(db *sql.DB, log zerolog.Logger) *OutletRepository {
	return &OutletRepository{
		db:  db,
		log: log.With().Str("repo", "outlets").Logger(),
	}
}

// ListActive returns all active outlets ordered by id
func (r *OutletRepository) ListActive() ([]domain.Outlet, error) {
	rows, err := r.db.Query(`
		SELECT id, name, region, active, capacity, weight
		FROM outlets
		WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outlets: %w", err)
	}
	defer rows.Close()
	return scanOutlets(rows)
}

// GetByID returns one outlet, or nil when it does not exist
func (r *OutletRepository) GetByID(id string) (*domain.Outlet, error) {
	var o domain.Outlet
	var region sql.NullString
	err := r.db.QueryRow(`
		SELECT id, name, region, active, capacity, weight
		FROM outlets
		WHERE id = ?
	`, id).Scan(&o.ID, &o.Name, &region, &o.Active, &o.Capacity, &o.Weight)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outlet %s: %w", id, err)
	}
	o.Region = region.String
	return &o, nil
}

// Upsert inserts or replaces an outlet
func (r *OutletRepository) Upsert(o domain.Outlet) error {
	_, err := r.db.Exec(`
		INSERT INTO outlets (id, name, region, active, capacity, weight)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			region = excluded.region,
			active = excluded.active,
			capacity = excluded.capacity,
			weight = excluded.weight
	`, o.ID, o.Name, o.Region, o.Active, o.Capacity, o.Weight)
	if err != nil {
		return fmt.Errorf("failed to upsert outlet %s: %w", o.ID, err)
	}
	return nil
}

func scanOutlets(rows *sql.Rows) ([]domain.Outlet, error) {
	var outlets []domain.Outlet
	for rows.Next() {
		var o domain.Outlet
		var region sql.NullString
		if err := rows.Scan(&o.ID, &o.Name, &region, &o.Active, &o.Capacity, &o.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan outlet: %w", err)
		}
		o.Region = region.String
		outlets = append(outlets, o)
	}
	return outlets, rows.Err()
}
