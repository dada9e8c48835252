package estars

import(
	"fmt"
	"math"

	"github.com/abworrall/destar/pkg/emath"
)

const fwhmToSigma = 0.42466090014400953 // 1 / (2 * sqrt(2 * ln 2))

// A Star is one detected point source. X and Y are in pixel coords, and
// may be fractional.
type Star struct {
	X, Y        float64
	Peak        float64  // Background-subtracted value at the peak pixel
	Flux        float64  // Sum of the positive samples in the footprint
	Sharpness   float64
	Roundness   float64
}

func (s Star)String() string {
	return fmt.Sprintf("star(%7.2f,%7.2f) peak=%.1f sharp=%.2f round=%.2f", s.X, s.Y, s.Peak, s.Sharpness, s.Roundness)
}

// A Finder looks for point sources in a background-subtracted image, in
// the style of DAOFIND: the image is convolved with a kernel that is the
// least squares fit for the amplitude of a Gaussian of the given FWHM, and
// local maxima of that above Threshold are kept, provided they are not
// too sharp (hot pixels) or too elongated (cosmic rays, trails).
type Finder struct {
	FWHM        float64
	Threshold   float64  // In the same units as the image

	SharpLo     float64
	SharpHi     float64
	RoundLo     float64
	RoundHi     float64
}

func NewFinder(fwhm, threshold float64) Finder {
	return Finder{
		FWHM:      fwhm,
		Threshold: threshold,
		SharpLo:   0.2,
		SharpHi:   1.0,
		RoundLo:  -1.0,
		RoundHi:   1.0,
	}
}

type offset struct {
	dx, dy int
	k      float64 // kernel weight
}

// footprint returns the kernel offsets, central one first.
func (f Finder)footprint() []offset {
	sigma := f.FWHM * fwhmToSigma
	r := math.Max(2.0, 1.5*sigma)
	half := int(r)

	offs := []offset{}
	gauss := []float64{}
	sum, sumSq := 0.0, 0.0
	for dy:=-half; dy<=half; dy++ {
		for dx:=-half; dx<=half; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > r*r {
				continue
			}
			g := math.Exp(-d2 / (2.0*sigma*sigma))
			o := offset{dx: dx, dy: dy}
			if dx == 0 && dy == 0 {
				offs = append([]offset{o}, offs...)
				gauss = append([]float64{g}, gauss...)
			} else {
				offs = append(offs, o)
				gauss = append(gauss, g)
			}
			sum += g
			sumSq += g*g
		}
	}

	n := float64(len(offs))
	mean := sum / n
	denom := sumSq - sum*sum/n
	for i := range offs {
		offs[i].k = (gauss[i] - mean) / denom
	}
	return offs
}

func sample(g emath.FloatGrid, x, y int) (float64, bool) {
	if x < 0 || y < 0 || x >= g.Dx() || y >= g.Dy() {
		return 0, false
	}
	v := g.Get(x, y)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Convolve applies the detection kernel. Samples off the edge, and
// non-finite samples, count as zero.
func (f Finder)Convolve(g emath.FloatGrid) emath.FloatGrid {
	offs := f.footprint()
	out := g.NewFromThis()
	for y:=0; y<g.Dy(); y++ {
		for x:=0; x<g.Dx(); x++ {
			t := 0.0
			for _, o := range offs {
				if v, ok := sample(g, x+o.dx, y+o.dy); ok {
					t += o.k * v
				}
			}
			out.Set(x, y, t)
		}
	}
	return out
}

// Find returns the stars in the background subtracted image g, in the
// raster order of their peak pixels.
func (f Finder)Find(g emath.FloatGrid) []Star {
	offs := f.footprint()
	conv := f.Convolve(g)
	stars := []Star{}

	for y:=0; y<g.Dy(); y++ {
		for x:=0; x<g.Dx(); x++ {
			c := conv.Get(x, y)
			if !(c > f.Threshold) || !isLocalMax(conv, x, y, offs) {
				continue
			}
			s, ok := f.measure(g, x, y, c, offs)
			if !ok {
				continue
			}
			stars = append(stars, s)
		}
	}

	return stars
}

// A plateau of equal values yields one peak: the first in raster order.
func isLocalMax(conv emath.FloatGrid, x, y int, offs []offset) bool {
	c := conv.Get(x, y)
	for _, o := range offs[1:] {
		xx, yy := x+o.dx, y+o.dy
		if xx < 0 || yy < 0 || xx >= conv.Dx() || yy >= conv.Dy() {
			continue
		}
		v := conv.Get(xx, yy)
		if v > c {
			return false
		}
		if v == c && (yy < y || (yy == y && xx < x)) {
			return false
		}
	}
	return true
}

func (f Finder)measure(g emath.FloatGrid, x, y int, c float64, offs []offset) (Star, bool) {
	peak, ok := sample(g, x, y)
	if !ok {
		return Star{}, false
	}

	neighbourSum, nNeighbours := 0.0, 0
	sumW, sumWX, sumWY := 0.0, 0.0, 0.0
	for _, o := range offs {
		v, ok := sample(g, x+o.dx, y+o.dy)
		if !ok {
			continue
		}
		if o.dx != 0 || o.dy != 0 {
			neighbourSum += v
			nNeighbours++
		}
		if v > 0 {
			sumW += v
			sumWX += v * float64(o.dx)
			sumWY += v * float64(o.dy)
		}
	}

	s := Star{X: float64(x), Y: float64(y), Peak: peak, Flux: sumW}
	if nNeighbours > 0 {
		s.Sharpness = (peak - neighbourSum/float64(nNeighbours)) / c
	}

	if sumW > 0 {
		cx, cy := sumWX/sumW, sumWY/sumW
		mxx, myy := 0.0, 0.0
		for _, o := range offs {
			if v, ok := sample(g, x+o.dx, y+o.dy); ok && v > 0 {
				mxx += v * (float64(o.dx)-cx) * (float64(o.dx)-cx)
				myy += v * (float64(o.dy)-cy) * (float64(o.dy)-cy)
			}
		}
		if mxx+myy > 0 {
			s.Roundness = 2.0 * (mxx - myy) / (mxx + myy)
		}
		s.X += cx
		s.Y += cy
	}

	if s.Sharpness < f.SharpLo || s.Sharpness > f.SharpHi {
		return s, false
	}
	if s.Roundness < f.RoundLo || s.Roundness > f.RoundHi {
		return s, false
	}
	return s, true
}
