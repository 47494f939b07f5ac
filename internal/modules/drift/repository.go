package drift

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Status bands for a computed PSI value
const (
	StatusStable = "stable"
	StatusWarn   = "warn"
	StatusAlert  = "alert"
)

// Metric is one persisted drift measurement
type Metric struct {
	ID         int64                `json:"id"`
	FeatureSet string               `json:"feature_set"`
	PSI        float64              `json:"psi"`
	Status     string               `json:"status"`
	Buckets    []BucketContribution `json:"buckets"`
	ComputedAt time.Time            `json:"computed_at"`
}

// Repository persists drift metrics in the decisions database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a drift metrics repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "drift").Logger(),
	}
}

// InsertMetric appends one drift measurement
func (r *Repository) InsertMetric(featureSet string, psi float64, status string, buckets []BucketContribution) error {
	bucketsJSON, err := json.Marshal(buckets)
	if err != nil {
		return fmt.Errorf("failed to marshal drift buckets: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO drift_metrics (feature_set, psi, status, buckets_json, computed_at)
		VALUES (?, ?, ?, ?, ?)
	`, featureSet, psi, status, string(bucketsJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert drift metric: %w", err)
	}
	return nil
}

// ListRecent returns the newest drift metrics for a feature set
func (r *Repository) ListRecent(featureSet string, limit int) ([]Metric, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, feature_set, psi, status, buckets_json, computed_at
		FROM drift_metrics
		WHERE feature_set = ?
		ORDER BY computed_at DESC, id DESC
		LIMIT ?
	`, featureSet, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query drift metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var (
			m           Metric
			bucketsJSON string
			computedAt  int64
		)
		if err := rows.Scan(&m.ID, &m.FeatureSet, &m.PSI, &m.Status, &bucketsJSON, &computedAt); err != nil {
			return nil, fmt.Errorf("failed to scan drift metric: %w", err)
		}
		m.ComputedAt = time.Unix(computedAt, 0).UTC()
		if err := json.Unmarshal([]byte(bucketsJSON), &m.Buckets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal drift buckets: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
