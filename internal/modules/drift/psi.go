// Package drift detects distribution shift in feature and score populations
// via the Population Stability Index.
package drift

import (
	"math"
	"sort"
)

// psiEpsilon floors both sides of every bucket so log and division are
// always defined
const psiEpsilon = 1e-9

// BucketContribution is one bucket's share of the total PSI
type BucketContribution struct {
	Bucket       string  `json:"bucket"`
	Expected     float64 `json:"expected"`
	Observed     float64 `json:"observed"`
	Contribution float64 `json:"contribution"`
}

// PSIResult is the outcome of one PSI computation
type PSIResult struct {
	PSI     float64              `json:"psi"`
	Buckets []BucketContribution `json:"buckets"`
}

// ComputePSI compares expected vs observed bucketed fractions over the union
// of bucket keys. Per bucket the contribution is (o-e)*ln(o/e); the total is
// their sum. Higher values mean greater drift; no direction is implied.
func ComputePSI(expected, observed map[string]float64) PSIResult {
	keys := make(map[string]bool, len(expected)+len(observed))
	for k := range expected {
		keys[k] = true
	}
	for k := range observed {
		keys[k] = true
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	result := PSIResult{Buckets: make([]BucketContribution, 0, len(ordered))}
	for _, k := range ordered {
		e := math.Max(expected[k], psiEpsilon)
		o := math.Max(observed[k], psiEpsilon)
		contribution := (o - e) * math.Log(o/e)

		result.PSI += contribution
		result.Buckets = append(result.Buckets, BucketContribution{
			Bucket:       k,
			Expected:     e,
			Observed:     o,
			Contribution: contribution,
		})
	}

	return result
}
