// Package stats implements the statistics kernel shared by every ranging
// attempt: median, IQR-based outlier rejection, and population variance.
package stats

import "sort"

// Median returns the middle value of xs (the mean of the two middle values
// when len(xs) is even). Median panics on an empty slice; callers must not
// call it with zero samples.
func Median(xs []float64) float64 {
	n := len(xs)
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Variance returns the population variance of xs around center:
// sum((x_i - center)^2) / n.
func Variance(xs []float64, center float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - center
		sum += d * d
	}
	return sum / float64(len(xs))
}

// minIQRSamples is the smallest sample count IQRFilter will act on; below
// this it is a no-op (quartiles are not meaningful on fewer than four points).
const minIQRSamples = 4

// IQRFilter removes outliers from xs in place using the standard 1.5*IQR
// fence: Q1 at index floor(n/4) and Q3 at floor(3n/4) of a sorted copy,
// retaining only elements within [Q1-1.5*IQR, Q3+1.5*IQR]. The surviving
// elements keep their original relative order. For len(xs) < 4 it returns
// xs unchanged. IQRFilter is idempotent: filtering an already-filtered
// slice returns the same slice.
func IQRFilter(xs []float64) []float64 {
	if len(xs) < minIQRSamples {
		return xs
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[3*n/4]
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	kept := xs[:0]
	for _, x := range xs {
		if x >= lo && x <= hi {
			kept = append(kept, x)
		}
	}
	return kept
}
