package estars

import(
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// RingColor grades a star by sharpness: soft, bloated detections are
// drawn blue, tight ones red.
func (f Finder)RingColor(s Star) color.Color {
	t := 0.5
	if f.SharpHi > f.SharpLo {
		t = (s.Sharpness - f.SharpLo) / (f.SharpHi - f.SharpLo)
	}
	if t < 0 { t = 0 }
	if t > 1 { t = 1 }
	return colorful.Hsv(240.0 * (1.0 - t), 0.9, 1.0)
}

// DrawOverlay plots a ring of the given radius around each star, on top
// of a gray rendering of the image, and saves it as a PNG.
func (f Finder)DrawOverlay(base *image.Gray, stars []Star, radius float64, filename string) error {
	dc := gg.NewContextForImage(base)
	dc.SetLineWidth(1)
	for _, s := range stars {
		dc.SetColor(f.RingColor(s))
		// pixel centres sit at +0.5 in gg's coordinate space
		dc.DrawCircle(s.X+0.5, s.Y+0.5, radius)
		dc.Stroke()
	}
	return dc.SavePNG(filename)
}
