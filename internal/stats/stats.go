// Package stats provides the pure numeric kernel shared by the energy
// ledger and the pattern registry: means, population variance, higher
// central moments, and a least-squares trend slope.
//
// All functions are stateless and never fail. Degenerate inputs (fewer
// than two samples, zero variance) produce neutral zero results rather
// than errors so that callers in the tick loop degrade gracefully.
package stats

import "math"

// Moments holds the normalized third and fourth central moments of a
// sample. A zero Moments is returned when the sample is too small or has
// no spread.
type Moments struct {
	Skewness float64
	Kurtosis float64
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance of values (divisor n, not n-1),
// or 0 for fewer than two samples.
func Variance(values []float64) float64 {
	return VarianceAround(values, Mean(values))
}

// VarianceAround computes the population variance of values around a
// precomputed mean. Callers that already hold the mean avoid a second
// pass over the sample.
func VarianceAround(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// ComputeMoments returns the skewness and kurtosis of values, computed as
// the third and fourth central moments normalized by stddev^3 and
// variance^2 respectively. Samples with fewer than two values or zero
// variance yield a zero Moments.
func ComputeMoments(values []float64) Moments {
	if len(values) < 2 {
		return Moments{}
	}
	mean := Mean(values)
	variance := VarianceAround(values, mean)
	if variance == 0 {
		return Moments{}
	}

	n := float64(len(values))
	m3 := 0.0
	m4 := 0.0
	for _, v := range values {
		d := v - mean
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m3 /= n
	m4 /= n

	stddev := math.Sqrt(variance)
	return Moments{
		Skewness: m3 / (stddev * stddev * stddev),
		Kurtosis: m4 / (variance * variance),
	}
}

// Trend returns the slope of an ordinary least-squares fit of values
// against their index positions 0..n-1. It returns 0 for fewer than two
// samples or a degenerate denominator.
func Trend(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}
