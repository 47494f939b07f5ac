package drift

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// baselineSnapshot is the msgpack payload stored per feature set
type baselineSnapshot struct {
	Distribution map[string]float64 `msgpack:"distribution"`
	SampleCount  int                `msgpack:"sample_count"`
}

// BaselineStore persists expected distributions in the cache database.
// Payloads are msgpack for compactness; snapshots are ephemeral and can be
// rebuilt from the proposal history at any time.
type BaselineStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBaselineStore creates a baseline snapshot store
func NewBaselineStore(db *sql.DB, log zerolog.Logger) *BaselineStore {
	return &BaselineStore{
		db:  db,
		log: log.With().Str("repo", "drift_baseline").Logger(),
	}
}

// Save stores a new baseline distribution for the feature set
func (s *BaselineStore) Save(featureSet string, distribution map[string]float64, sampleCount int) error {
	payload, err := msgpack.Marshal(baselineSnapshot{
		Distribution: distribution,
		SampleCount:  sampleCount,
	})
	if err != nil {
		return fmt.Errorf("failed to encode baseline snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO signal_snapshots (feature_set, payload, taken_at)
		VALUES (?, ?, ?)
	`, featureSet, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store baseline snapshot: %w", err)
	}

	s.log.Debug().
		Str("feature_set", featureSet).
		Int("sample_count", sampleCount).
		Msg("Baseline snapshot stored")
	return nil
}

// Load returns the most recent baseline distribution for the feature set,
// or nil when no baseline exists yet
func (s *BaselineStore) Load(featureSet string) (map[string]float64, error) {
	var payload []byte
	err := s.db.QueryRow(`
		SELECT payload FROM signal_snapshots
		WHERE feature_set = ?
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`, featureSet).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline snapshot: %w", err)
	}

	var snapshot baselineSnapshot
	if err := msgpack.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode baseline snapshot: %w", err)
	}
	return snapshot.Distribution, nil
}
