package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePSI_IdenticalDistributionsAreZero(t *testing.T) {
	dist := map[string]float64{"low": 0.3, "mid": 0.5, "high": 0.2}

	result := ComputePSI(dist, dist)

	assert.InDelta(t, 0, result.PSI, 1e-12)
	for _, bucket := range result.Buckets {
		assert.InDelta(t, 0, bucket.Contribution, 1e-12)
	}
}

func TestComputePSI_ShiftProducesPositivePSI(t *testing.T) {
	expected := map[string]float64{"low": 0.5, "high": 0.5}
	observed := map[string]float64{"low": 0.2, "high": 0.8}

	result := ComputePSI(expected, observed)

	assert.Greater(t, result.PSI, 0.0)
	// Each bucket's (o-e)*ln(o/e) is non-negative
	for _, bucket := range result.Buckets {
		assert.GreaterOrEqual(t, bucket.Contribution, 0.0)
	}
}

func TestComputePSI_UnionOfBucketKeys(t *testing.T) {
	expected := map[string]float64{"a": 0.6, "b": 0.4}
	observed := map[string]float64{"b": 0.5, "c": 0.5}

	result := ComputePSI(expected, observed)

	require.Len(t, result.Buckets, 3)
	// Buckets are ordered by key for deterministic output
	assert.Equal(t, "a", result.Buckets[0].Bucket)
	assert.Equal(t, "b", result.Buckets[1].Bucket)
	assert.Equal(t, "c", result.Buckets[2].Bucket)

	// Missing sides are floored at epsilon, never zero
	assert.Greater(t, result.Buckets[0].Observed, 0.0)
	assert.Greater(t, result.Buckets[2].Expected, 0.0)
	// A bucket present on one side only contributes heavily
	assert.Greater(t, result.PSI, 1.0)
}

func TestComputePSI_EmptyInputs(t *testing.T) {
	result := ComputePSI(nil, nil)
	assert.Zero(t, result.PSI)
	assert.Empty(t, result.Buckets)
}

func TestBucketizeScores(t *testing.T) {
	samples := []float64{0.05, 0.05, 0.55, 0.95, 1.0, -0.2}

	dist := BucketizeScores(samples, 10)

	// Six samples: three in the lowest bucket (clamped -0.2 joins the 0.05s),
	// one mid, two in the top bucket (1.0 is clamped just under 1)
	assert.InDelta(t, 0.5, dist["0.00-0.10"], 1e-9)
	assert.InDelta(t, 1.0/6.0, dist["0.50-0.60"], 1e-9)
	assert.InDelta(t, 2.0/6.0, dist["0.90-1.00"], 1e-9)

	total := 0.0
	for _, fraction := range dist {
		total += fraction
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestBucketizeScores_Empty(t *testing.T) {
	assert.Empty(t, BucketizeScores(nil, 10))
}
