package inventory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/domain"
)

// StockRepository handles stock level persistence for outlets and the hub
type StockRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repo", "stock").Logger(),
	}
}

// HubStock returns the warehouse quantity for a sku, zero when no row exists
func (r *StockRepository) HubStock(sku string) (int, error) {
	var quantity int
	err := r.db.QueryRow(`
		SELECT quantity FROM stock_levels
		WHERE outlet_id = ? AND sku = ?
	`, domain.HubOutletID, sku).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get hub stock for %s: %w", sku, err)
	}
	return quantity, nil
}

// OutletStocks returns the per-outlet stock rows for a sku, hub excluded
func (r *StockRepository) OutletStocks(sku string) ([]domain.StockLevel, error) {
	rows, err := r.db.Query(`
		SELECT outlet_id, sku, quantity, updated_at
		FROM stock_levels
		WHERE sku = ? AND outlet_id != ?
		ORDER BY outlet_id
	`, sku, domain.HubOutletID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outlet stock for %s: %w", sku, err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		var (
			level     domain.StockLevel
			updatedAt int64
		)
		if err := rows.Scan(&level.OutletID, &level.SKU, &level.Quantity, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		level.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// SetLevel inserts or replaces one stock level row
func (r *StockRepository) SetLevel(outletID, sku string, quantity int) error {
	_, err := r.db.Exec(`
		INSERT INTO stock_levels (outlet_id, sku, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(outlet_id, sku) DO UPDATE SET
			quantity = excluded.quantity,
			updated_at = excluded.updated_at
	`, outletID, sku, quantity, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set stock level for %s at %s: %w", sku, outletID, err)
	}
	return nil
}

// Adjust applies a signed delta to one stock level row, creating it at the
// delta value when absent. Quantities never go below zero.
func (r *StockRepository) Adjust(outletID, sku string, delta int) error {
	_, err := r.db.Exec(`
		INSERT INTO stock_levels (outlet_id, sku, quantity, updated_at)
		VALUES (?, ?, MAX(?, 0), ?)
		ON CONFLICT(outlet_id, sku) DO UPDATE SET
			quantity = MAX(quantity + ?, 0),
			updated_at = excluded.updated_at
	`, outletID, sku, delta, time.Now().Unix(), delta)
	if err != nil {
		return fmt.Errorf("failed to adjust stock for %s at %s: %w", sku, outletID, err)
	}
	return nil
}

// SKUsWithHubStock returns skus the warehouse currently holds, highest
// quantity first, limited for agent cycles
func (r *StockRepository) SKUsWithHubStock(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT sku FROM stock_levels
		WHERE outlet_id = ? AND quantity > 0
		ORDER BY quantity DESC, sku
		LIMIT ?
	`, domain.HubOutletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hub skus: %w", err)
	}
	defer rows.Close()

	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, fmt.Errorf("failed to scan sku: %w", err)
		}
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}
