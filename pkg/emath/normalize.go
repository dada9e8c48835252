package emath

import(
	"fmt"
	"image"
	"math"

	"github.com/codahale/hdrhistogram"
)

// Normalize linearly stretches the grid onto [0,255], based on its own
// min and max. A flat grid (min == max) comes back all zero. NaN and
// infinite samples map to zero. The same function feeds both the display
// and the PNG export, so the two always match.
func Normalize(fg FloatGrid) *image.Gray {
	img := image.NewGray(fg.Bounds())
	min, max, ok := fg.MinMax()
	if !ok || max == min {
		return img
	}

	scale := max - min
	for y:=0; y<fg.Dy(); y++ {
		for x:=0; x<fg.Dx(); x++ {
			v := fg.Get(x, y)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			img.Pix[y*img.Stride + x] = uint8((v - min) / scale * 255.0)
		}
	}
	return img
}

// LevelSummary describes the distribution of gray levels, for logging.
func LevelSummary(img *image.Gray) string {
	h := hdrhistogram.New(0, 255, 3)
	b := img.Bounds()
	for y:=b.Min.Y; y<b.Max.Y; y++ {
		for x:=b.Min.X; x<b.Max.X; x++ {
			h.RecordValue(int64(img.GrayAt(x, y).Y))
		}
	}

	return fmt.Sprintf("levels[n=%d p1=%d p50=%d p99=%d mean=%.1f]",
		h.TotalCount(), h.ValueAtQuantile(1), h.ValueAtQuantile(50), h.ValueAtQuantile(99), h.Mean())
}
