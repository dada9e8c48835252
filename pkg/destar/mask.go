package destar

import(
	"github.com/abworrall/destar/pkg/emath"
	"github.com/abworrall/destar/pkg/estars"
)

// BuildStarMask paints a filled disk of the given radius at each star,
// on a w x h grid of zeros. Centres are truncated to whole pixels; disks
// are clipped to the grid, and overlaps just stay at 1.
func BuildStarMask(w, h int, stars []estars.Star, radius int) emath.FloatGrid {
	mask := emath.NewFloatGrid(w, h)

	for _, s := range stars {
		x, y := int(s.X), int(s.Y)

		// Box around the disk, clipped to the grid (Max is exclusive)
		yMin, yMax := max(y-radius, 0), min(y+radius+1, h)
		xMin, xMax := max(x-radius, 0), min(x+radius+1, w)

		for yy:=yMin; yy<yMax; yy++ {
			for xx:=xMin; xx<xMax; xx++ {
				if (yy-y)*(yy-y) + (xx-x)*(xx-x) <= radius*radius {
					mask.Set(xx, yy, 1.0)
				}
			}
		}
	}

	return mask
}

// SoftenMask blurs the binary mask into a [0,1] weight map.
func SoftenMask(mask emath.FloatGrid, sigma float64, blur BlurFunc) emath.FloatGrid {
	soft := blur(mask, sigma)
	vals := soft.Values()
	for i, v := range vals {
		if v < 0 {
			vals[i] = 0
		} else if v > 1 {
			vals[i] = 1
		}
	}
	return soft
}
