package emath

import "math"

// Kernels are truncated at this many standard deviations.
const gaussianTruncate = 4.0

// reflectIndex maps an out-of-range index back into [0,n) by mirroring
// about the edges, repeating the edge sample: (d c b a | a b c d | d c b a).
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2*n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// GaussianKernel1D returns a normalized kernel of length 2*radius+1.
func GaussianKernel1D(sigma float64) []float64 {
	radius := int(gaussianTruncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma*sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur returns a separably smoothed copy of the grid. A sigma of
// zero (or less) returns an unmodified copy.
func (g1 FloatGrid)GaussianBlur(sigma float64) FloatGrid {
	if sigma <= 0 {
		return g1.Copy()
	}

	width := g1.Dx()
	height := g1.Dy()
	kernel := GaussianKernel1D(sigma)
	radius := len(kernel)/2

	T  := g1.NewFromThis()
	g2 := g1.NewFromThis()

	//--- X blur, build up in T
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			t := 0.0
			for k:=-radius; k<=radius; k++ {
				t += kernel[k+radius] * g1.Get(reflectIndex(x+k, width), y)
			}
			T.Set(x, y, t)
		}
	}

	//--- Y blur, read from T and generate output
	for x:=0; x<width; x++ {
		for y:=0; y<height; y++ {
			t := 0.0
			for k:=-radius; k<=radius; k++ {
				t += kernel[k+radius] * T.Get(x, reflectIndex(y+k, height))
			}
			g2.Set(x, y, t)
		}
	}

	return g2
}
