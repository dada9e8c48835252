package destar

import(
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/abworrall/destar/pkg/emath"
)

const ExportExtension = ".png"

func DefaultOutputNames() map[Kind]string {
	return map[Kind]string{
		KindOriginal:   "original.png",
		KindSoftMask:   "star_mask.png",
		KindBackground: "starless.png",
		KindFinal:      "final.png",
	}
}

func HasExportExtension(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ExportExtension
}

func WritePNG(img image.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return png.Encode(writer, img)
	}
}

// Display is the 8-bit rendering of one derived image, exactly as Export
// would write it.
func (s *Session)Display(k Kind) (*image.Gray, error) {
	ds := s.Snapshot()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	g, err := ds.grid(k)
	if err != nil {
		return nil, err
	}
	return emath.Normalize(g), nil
}

// Preview is Display, scaled down (never up) so neither side exceeds maxDim.
func (s *Session)Preview(k Kind, maxDim int) (image.Image, error) {
	gray, err := s.Display(k)
	if err != nil {
		return nil, err
	}

	b := gray.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return gray, nil
	}

	scale := float64(maxDim) / float64(b.Dx())
	if b.Dy() > b.Dx() {
		scale = float64(maxDim) / float64(b.Dy())
	}
	w, h := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
	if w < 1 { w = 1 }
	if h < 1 { h = 1 }

	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), gray, b, draw.Src, nil)
	return dst, nil
}

// Export normalizes one derived image and writes it as a PNG.
func (s *Session)Export(k Kind, filename string) error {
	if !HasExportExtension(filename) {
		return &UnsupportedFormatError{Path: filename}
	}
	gray, err := s.Display(k)
	if err != nil {
		return err
	}
	return WritePNG(gray, filename)
}

// ExportAll writes all four derived images into dir, under the names in
// the session config. They all come from the same regeneration.
func (s *Session)ExportAll(dir string) ([]string, error) {
	ds := s.Snapshot()
	if ds == nil {
		return nil, ErrNotLoaded
	}

	names := s.Config.OutputNames
	if names == nil {
		names = DefaultOutputNames()
	}

	written := []string{}
	for _, k := range Kinds {
		filename := filepath.Join(dir, names[k])
		if !HasExportExtension(filename) {
			return written, &UnsupportedFormatError{Path: filename}
		}
		g, _ := ds.grid(k)
		if err := WritePNG(emath.Normalize(g), filename); err != nil {
			return written, fmt.Errorf("export %s: %w", k, err)
		}
		written = append(written, filename)
	}

	s.logger().Infof("Exported %d images to %s", len(written), dir)
	return written, nil
}
