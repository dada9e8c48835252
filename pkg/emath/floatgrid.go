package emath

import(
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
)

// A FloatGrid is a single-plane raster of float64 samples, stored row
// major. Every stage of the star removal pipeline reads and writes these.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

// NewFloatGridFromValues wraps vals (not copied); len(vals) must be w*h.
func NewFloatGridFromValues(w, h int, vals []float64) FloatGrid {
	if w*h != len(vals) {
		panic(fmt.Sprintf("NewFloatGridFromValues: %dx%d grid needs %d values, got %d", w, h, w*h, len(vals)))
	}
	return FloatGrid{stride: w, values: vals}
}

func (g1 *FloatGrid)NewFromThis() FloatGrid  { return NewFloatGrid(g1.Dx(), g1.Dy()) }
func (fg *FloatGrid)Set(x, y int, v float64) { fg.values[fg.stride*y + x] = v }
func (fg *FloatGrid)Get(x, y int) float64    { return fg.values[fg.stride*y + x] }
func (fg *FloatGrid)Dx() int                 { return fg.stride }
func (fg *FloatGrid)Len() int                { return len(fg.values) }
func (fg *FloatGrid)Bounds() image.Rectangle { return image.Rect(0, 0, fg.Dx(), fg.Dy()) }

func (fg *FloatGrid)Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

// Values exposes the backing slice; callers must not hang on to it past
// the lifetime of the grid they were given.
func (fg *FloatGrid)Values() []float64       { return fg.values }

func (g1 *FloatGrid)Copy() FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values:make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return g2
}

func (g1 *FloatGrid)SameShape(g2 FloatGrid) bool {
	return g1.Dx() == g2.Dx() && g1.Dy() == g2.Dy()
}

// Equal is a bitwise comparison, so two NaNs in the same spot compare equal.
func (g1 *FloatGrid)Equal(g2 FloatGrid) bool {
	if !g1.SameShape(g2) {
		return false
	}
	for i := range g1.values {
		if math.Float64bits(g1.values[i]) != math.Float64bits(g2.values[i]) {
			return false
		}
	}
	return true
}

// MinMax ignores NaN and infinite samples. ok is false if nothing is left.
func (fg *FloatGrid)MinMax() (min, max float64, ok bool) {
	min, max = math.MaxFloat64, -math.MaxFloat64
	for _, v := range fg.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v > max { max = v }
		if v < min { min = v }
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}

func (fg *FloatGrid)Stats() string {
	min, max, _ := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToImg saves the normalized grayscale version of the grid, with a title
// drawn in the top left corner. Used for debug dumps only.
func (fg *FloatGrid)ToImg(title, filename string) error {
	gray := Normalize(*fg)
	img := image.NewRGBA(gray.Bounds())
	for y:=0; y<fg.Dy(); y++ {
		for x:=0; x<fg.Dx(); x++ {
			img.Set(x, y, color.Gray{gray.GrayAt(x,y).Y})
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1,0.2,0.2)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}
