package usecase

import (
	"math"
	"sort"
)

// quantile returns the q-th quantile of values using linear interpolation between
// the closest ranks: position q*(n-1) in the sorted sample.
// values is not modified. ok is false for an empty sample.
func quantile(values []float64, q float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return sortedQuantile(sorted, q), true
}

// sortedQuantile is quantile over an already sorted, non-empty sample
func sortedQuantile(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}

	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// median is the 0.5 quantile
func median(values []float64) (float64, bool) {
	return quantile(values, 0.5)
}
