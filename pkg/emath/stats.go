package emath

import(
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const DefaultClipIters = 5

// ClippedStats are the background level and noise of a raster, measured
// on the samples that survive sigma clipping.
type ClippedStats struct {
	Mean    float64
	Median  float64
	Std     float64
	N       int // samples left after clipping
}

func (cs ClippedStats)String() string {
	return fmt.Sprintf("mean=%.4f median=%.4f std=%.4f (n=%d)", cs.Mean, cs.Median, cs.Std, cs.N)
}

// SigmaClippedStats repeatedly discards samples further than sigma
// standard deviations from the median, until nothing more is discarded
// or maxIters passes have run. NaN and infinite samples are never
// counted. The standard deviation is the population one.
func SigmaClippedStats(g FloatGrid, sigma float64, maxIters int) ClippedStats {
	vals := make([]float64, 0, g.Len())
	for _, v := range g.values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return ClippedStats{}
	}

	sort.Float64s(vals)
	for iter:=0; iter<maxIters; iter++ {
		median := sortedMedian(vals)
		_, std := stat.PopMeanStdDev(vals, nil)
		lo, hi := median - sigma*std, median + sigma*std

		// vals is sorted, so the survivors are a contiguous run
		start := sort.SearchFloat64s(vals, lo)
		end := sort.Search(len(vals), func(i int) bool { return vals[i] > hi })
		if start == 0 && end == len(vals) {
			break
		}
		vals = vals[start:end]
		if len(vals) == 0 {
			return ClippedStats{}
		}
	}

	mean, std := stat.PopMeanStdDev(vals, nil)
	return ClippedStats{
		Mean:   mean,
		Median: sortedMedian(vals),
		Std:    std,
		N:      len(vals),
	}
}

// The middle two samples are averaged for even lengths; gonum's
// stat.Quantile picks one of them instead.
func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}
