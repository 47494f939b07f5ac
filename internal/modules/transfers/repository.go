// Package transfers persists transfer orders and drives their state machine.
package transfers

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/database"
	"github.com/aristath/storeops/internal/domain"
)

// Repository handles transfer order persistence.
// An order and its lines are written inside a single transaction.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a transfer order repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "transfers").Logger(),
	}
}

// Insert persists a transfer order with its lines atomically
func (r *Repository) Insert(order *domain.TransferOrder) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO transfer_orders
			(transfer_id, source_hub, dest_store, status, priority, confidence, reason, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, order.TransferID, order.SourceHub, order.DestStore, string(order.Status), string(order.Priority),
			order.Confidence, order.Reason, order.CreatedAt.Unix(), order.UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert transfer order: %w", err)
		}

		for _, line := range order.Lines {
			if _, err := tx.Exec(`
				INSERT INTO transfer_order_lines (transfer_id, sku, quantity)
				VALUES (?, ?, ?)
			`, order.TransferID, line.SKU, line.Quantity); err != nil {
				return fmt.Errorf("failed to insert transfer line for %s: %w", line.SKU, err)
			}
		}
		return nil
	})
}

// GetByID returns one transfer order with its lines, or nil when absent
func (r *Repository) GetByID(transferID string) (*domain.TransferOrder, error) {
	var (
		order     domain.TransferOrder
		reason    sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := r.db.QueryRow(`
		SELECT transfer_id, source_hub, dest_store, status, priority, confidence, reason, created_at, updated_at
		FROM transfer_orders
		WHERE transfer_id = ?
	`, transferID).Scan(&order.TransferID, &order.SourceHub, &order.DestStore, &order.Status,
		&order.Priority, &order.Confidence, &reason, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer order %s: %w", transferID, err)
	}
	order.Reason = reason.String
	order.CreatedAt = time.Unix(createdAt, 0).UTC()
	order.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	lines, err := r.linesFor(transferID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return &order, nil
}

// ListByStatus returns orders in one status, newest first
func (r *Repository) ListByStatus(status domain.TransferStatus, limit int) ([]domain.TransferOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT transfer_id, source_hub, dest_store, status, priority, confidence, reason, created_at, updated_at
		FROM transfer_orders
		WHERE status = ?
		ORDER BY created_at DESC, transfer_id
		LIMIT ?
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.TransferOrder
	for rows.Next() {
		var (
			order     domain.TransferOrder
			reason    sql.NullString
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&order.TransferID, &order.SourceHub, &order.DestStore, &order.Status,
			&order.Priority, &order.Confidence, &reason, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer order: %w", err)
		}
		order.Reason = reason.String
		order.CreatedAt = time.Unix(createdAt, 0).UTC()
		order.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		lines, err := r.linesFor(orders[i].TransferID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

// Transition advances an order through its state machine and persists the
// result. Illegal transitions fail without touching the row.
func (r *Repository) Transition(transferID string, target domain.TransferStatus) (*domain.TransferOrder, error) {
	order, err := r.GetByID(transferID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("transfer order %s not found", transferID)
	}

	if err := order.TransitionTo(target); err != nil {
		return nil, err
	}

	_, err = r.db.Exec(`
		UPDATE transfer_orders
		SET status = ?, updated_at = ?
		WHERE transfer_id = ?
	`, string(order.Status), order.UpdatedAt.Unix(), transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to persist transition for %s: %w", transferID, err)
	}

	r.log.Info().
		Str("transfer", transferID).
		Str("status", string(order.Status)).
		Msg("Transfer order transitioned")
	return order, nil
}

func (r *Repository) linesFor(transferID string) ([]domain.TransferLine, error) {
	rows, err := r.db.Query(`
		SELECT sku, quantity FROM transfer_order_lines
		WHERE transfer_id = ?
		ORDER BY id
	`, transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer lines for %s: %w", transferID, err)
	}
	defer rows.Close()

	var lines []domain.TransferLine
	for rows.Next() {
		var line domain.TransferLine
		if err := rows.Scan(&line.SKU, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan transfer line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
