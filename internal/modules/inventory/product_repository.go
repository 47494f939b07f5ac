package inventory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/domain"
)

// ProductRepository handles product catalogue persistence
type ProductRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB, log zerolog.Logger) *ProductRepository {
	return &ProductRepository{
		db:  db,
		log: log.With().Str("repo", "products").Logger(),
	}
}

// GetBySKU returns one product, or nil when it does not exist
func (r *ProductRepository) GetBySKU(sku string) (*domain.Product, error) {
	var (
		p         domain.Product
		category  sql.NullString
		createdAt int64
	)
	err := r.db.QueryRow(`
		SELECT sku, name, category, unit_cost, active, created_at
		FROM products
		WHERE sku = ?
	`, sku).Scan(&p.SKU, &p.Name, &category, &p.UnitCost, &p.Active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", sku, err)
	}
	p.Category = category.String
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// ListActive returns all active products ordered by sku
func (r *ProductRepository) ListActive() ([]domain.Product, error) {
	rows, err := r.db.Query(`
		SELECT sku, name, category, unit_cost, active, created_at
		FROM products
		WHERE active = 1
		ORDER BY sku
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var (
			p         domain.Product
			category  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&p.SKU, &p.Name, &category, &p.UnitCost, &p.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Category = category.String
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		products = append(products, p)
	}
	return products, rows.Err()
}

// Upsert inserts or replaces a product
func (r *ProductRepository) Upsert(p domain.Product) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`
		INSERT INTO products (sku, name, category, unit_cost, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			unit_cost = excluded.unit_cost,
			active = excluded.active
	`, p.SKU, p.Name, p.Category, p.UnitCost, p.Active, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.SKU, err)
	}
	return nil
}
