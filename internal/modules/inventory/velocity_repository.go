package inventory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/domain"
)

// VelocityRepository handles sales velocity persistence.
// Rows are written by the POS feed consumer and read as decision signals.
type VelocityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewVelocityRepository creates a new velocity repository
func NewVelocityRepository(db *sql.DB, log zerolog.Logger) *VelocityRepository {
	return &VelocityRepository{
		db:  db,
		log: log.With().Str("repo", "velocity").Logger(),
	}
}

// UnitsPerDay returns the velocity for one outlet/sku pair, zero when unknown
func (r *VelocityRepository) UnitsPerDay(outletID, sku string) (float64, error) {
	var unitsPerDay float64
	err := r.db.QueryRow(`
		SELECT units_per_day FROM sales_velocity
		WHERE outlet_id = ? AND sku = ?
	`, outletID, sku).Scan(&unitsPerDay)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get velocity for %s at %s: %w", sku, outletID, err)
	}
	return unitsPerDay, nil
}

// Upsert inserts or replaces one velocity row
func (r *VelocityRepository) Upsert(stat domain.VelocityStat) error {
	var lastSold interface{}
	if !stat.LastSoldAt.IsZero() {
		lastSold = stat.LastSoldAt.Unix()
	}
	_, err := r.db.Exec(`
		INSERT INTO sales_velocity (outlet_id, sku, units_per_day, window_days, turnover_rate, last_sold_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(outlet_id, sku) DO UPDATE SET
			units_per_day = excluded.units_per_day,
			window_days = excluded.window_days,
			turnover_rate = excluded.turnover_rate,
			last_sold_at = excluded.last_sold_at,
			updated_at = excluded.updated_at
	`, stat.OutletID, stat.SKU, stat.UnitsPerDay, stat.WindowDays, stat.TurnoverRate, lastSold, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert velocity for %s at %s: %w", stat.SKU, stat.OutletID, err)
	}
	return nil
}

// ListBySKU returns all velocity rows for a sku ordered by outlet
func (r *VelocityRepository) ListBySKU(sku string) ([]domain.VelocityStat, error) {
	rows, err := r.db.Query(`
		SELECT outlet_id, sku, units_per_day, window_days, turnover_rate, last_sold_at
		FROM sales_velocity
		WHERE sku = ?
		ORDER BY outlet_id
	`, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to query velocity for %s: %w", sku, err)
	}
	defer rows.Close()

	var stats []domain.VelocityStat
	for rows.Next() {
		var (
			stat     domain.VelocityStat
			lastSold sql.NullInt64
		)
		if err := rows.Scan(&stat.OutletID, &stat.SKU, &stat.UnitsPerDay, &stat.WindowDays, &stat.TurnoverRate, &lastSold); err != nil {
			return nil, fmt.Errorf("failed to scan velocity: %w", err)
		}
		if lastSold.Valid {
			stat.LastSoldAt = time.Unix(lastSold.Int64, 0).UTC()
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
