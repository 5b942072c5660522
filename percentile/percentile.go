// Package percentile implements the prctile/prctile2 contracts
// consumed by the core classifier (spec.md §6): an inclusive
// linear-interpolation rank statistic over an integer or float sample
// array.
package percentile

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Prctile computes the pct-th percentile (0-100) of samples[:n] using
// inclusive linear interpolation. min and max are the caller's
// extremes over the same population (tracked during the row scan or
// taken from the collected samples after it); they are cross-checked here against the actual
// extremes rather than recomputed independently. n == 0 returns 0
// without failure, per contract.
func Prctile(samples []int16, n int, min, max int16, pct float64) (float64, error) {
	if n == 0 {
		return 0, nil
	}
	if n > len(samples) {
		return 0, fmt.Errorf("percentile: n=%d exceeds sample length %d", n, len(samples))
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentile: pct=%v out of range [0,100]", pct)
	}

	sorted := make([]int16, n)
	copy(sorted, samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if lo.Min(sorted) < min || lo.Max(sorted) > max {
		return 0, fmt.Errorf("percentile: sample outside caller-reported [%d,%d] bounds", min, max)
	}

	return interpolate(intsToFloats(sorted), pct), nil
}

// Prctile2 is the float32 analogue of Prctile, over a compact sample
// array rather than a fixed-capacity one sourced from row scans.
func Prctile2(samples []float32, n int, min, max float32, pct float64) (float64, error) {
	if n == 0 {
		return 0, nil
	}
	if n > len(samples) {
		return 0, fmt.Errorf("percentile: n=%d exceeds sample length %d", n, len(samples))
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentile: pct=%v out of range [0,100]", pct)
	}

	sorted := make([]float32, n)
	copy(sorted, samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if lo.Min(sorted) < min || lo.Max(sorted) > max {
		return 0, fmt.Errorf("percentile: sample outside caller-reported [%v,%v] bounds", min, max)
	}

	out := make([]float64, n)
	for i, v := range sorted {
		out[i] = float64(v)
	}
	return interpolate(out, pct), nil
}

// interpolate applies inclusive linear interpolation over an
// already-sorted ascending sample array.
func interpolate(sorted []float64, pct float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	rank := (pct / 100) * float64(n-1)
	lowIdx := int(rank)
	highIdx := lowIdx + 1
	if highIdx >= n {
		return sorted[n-1]
	}

	frac := rank - float64(lowIdx)
	return sorted[lowIdx] + frac*(sorted[highIdx]-sorted[lowIdx])
}

func intsToFloats(v []int16) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
