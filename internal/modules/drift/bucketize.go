package drift

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultScoreBuckets is the bucket count used for score populations
const DefaultScoreBuckets = 10

// BucketizeScores converts raw score samples from [0,1] into a bucketed
// fraction distribution suitable for ComputePSI. Samples are clamped into
// the unit interval; an empty sample set yields an empty distribution.
func BucketizeScores(samples []float64, buckets int) map[string]float64 {
	if buckets <= 0 {
		buckets = DefaultScoreBuckets
	}
	if len(samples) == 0 {
		return map[string]float64{}
	}

	// stat.Histogram needs sorted samples strictly inside the divider range
	clamped := make([]float64, len(samples))
	for i, s := range samples {
		clamped[i] = math.Min(math.Max(s, 0), math.Nextafter(1, 0))
	}
	sort.Float64s(clamped)

	dividers := make([]float64, buckets+1)
	floats.Span(dividers, 0, 1)

	counts := stat.Histogram(nil, dividers, clamped, nil)

	total := float64(len(clamped))
	dist := make(map[string]float64, buckets)
	for i, count := range counts {
		dist[bucketLabel(dividers[i], dividers[i+1])] = count / total
	}
	return dist
}

func bucketLabel(lo, hi float64) string {
	return fmt.Sprintf("%.2f-%.2f", lo, hi)
}
