package destar

import(
	"fmt"

	"github.com/abworrall/destar/pkg/emath"
)

// Composite blends the background estimate into the original, using the
// soft mask as the per-pixel weight:
//
//   final = mask*background + (1-mask)*original
//
// Mismatched shapes are a programming error, and panic.
func Composite(mask, background, original emath.FloatGrid) emath.FloatGrid {
	if !mask.SameShape(background) || !mask.SameShape(original) {
		panic(fmt.Sprintf("Composite: shape mismatch, mask %dx%d, background %dx%d, original %dx%d",
			mask.Dx(), mask.Dy(), background.Dx(), background.Dy(), original.Dx(), original.Dy()))
	}

	final := original.NewFromThis()
	m, b, o, f := mask.Values(), background.Values(), original.Values(), final.Values()
	for i := range f {
		f[i] = m[i]*b[i] + (1.0-m[i])*o[i]
	}
	return final
}
