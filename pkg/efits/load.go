package efits

// Loads the primary image of a FITS file into an emath.FloatGrid.
// FITS standard: https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf

import(
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/abworrall/destar/pkg/emath"
)

var(
	Extensions = []string{".fits", ".fit", ".fts"}

	ErrNotFITS    = errors.New("not a FITS file")
	ErrNoImage    = errors.New("FITS file contains no image data")
)

// A SourceError says why a file could not be used as a source raster.
type SourceError struct {
	Filename string
	Err      error
}

func (e *SourceError)Error() string { return fmt.Sprintf("load %s: %v", e.Filename, e.Err) }
func (e *SourceError)Unwrap() error { return e.Err }

// Raster is the single plane we pulled out of a FITS file.
type Raster struct {
	Filename string
	Axes     []int  // The full NAXISn list, before we dropped down to 2-D
	Bitpix   int
	emath.FloatGrid
}

func (r Raster)String() string {
	return fmt.Sprintf("%s: BITPIX %d, axes %v, %s", filepath.Base(r.Filename), r.Bitpix, r.Axes, r.FloatGrid.Stats())
}

func HasFITSExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads the primary HDU. If it has more than two axes, we always take
// index 0 along every axis past NAXIS2; that is just the first plane in
// the file.
func Load(filename string) (Raster, error) {
	r := Raster{Filename: filename}

	if item, err := os.Stat(filename); err != nil {
		return r, &SourceError{filename, err}
	} else if item.IsDir() {
		return r, &SourceError{filename, fmt.Errorf("is a directory")}
	}

	if !HasFITSExtension(filename) {
		return r, &SourceError{filename, fmt.Errorf("%w: extension must be one of %v", ErrNotFITS, Extensions)}
	}

	reader, err := os.Open(filename)
	if err != nil {
		return r, &SourceError{filename, err}
	}
	defer reader.Close()

	f, err := fitsio.Open(reader)
	if err != nil {
		return r, &SourceError{filename, fmt.Errorf("%w: %v", ErrNotFITS, err)}
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return r, &SourceError{filename, ErrNoImage}
	}
	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return r, &SourceError{filename, ErrNoImage}
	}

	hdr := img.Header()
	r.Axes = append([]int(nil), hdr.Axes()...)
	r.Bitpix = hdr.Bitpix()

	grid, err := decodePlane(img.Raw(), r.Axes, r.Bitpix, headerFloat(hdr, "BZERO", 0), headerFloat(hdr, "BSCALE", 1))
	if err != nil {
		return r, &SourceError{filename, err}
	}
	r.FloatGrid = grid

	return r, nil
}

func headerFloat(hdr *fitsio.Header, key string, def float64) float64 {
	card := hdr.Get(key)
	if card == nil {
		return def
	}
	switch v := card.Value.(type) {
	case float64: return v
	case float32: return float64(v)
	case int:     return float64(v)
	case int64:   return float64(v)
	case int32:   return float64(v)
	}
	return def
}

// decodePlane turns the big-endian payload into floats, applying the
// BZERO/BSCALE linear scaling. Only the first NAXIS1*NAXIS2 samples are read.
func decodePlane(raw []byte, axes []int, bitpix int, bzero, bscale float64) (emath.FloatGrid, error) {
	if len(axes) < 2 {
		return emath.FloatGrid{}, fmt.Errorf("%w: NAXIS=%d, need at least 2", ErrNoImage, len(axes))
	}
	for i, n := range axes {
		if n <= 0 {
			return emath.FloatGrid{}, fmt.Errorf("%w: NAXIS%d=%d", ErrNoImage, i+1, n)
		}
	}

	w, h := axes[0], axes[1]
	bytesPer := bitpix / 8
	if bytesPer < 0 {
		bytesPer = -bytesPer
	}
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return emath.FloatGrid{}, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
	if len(raw) < w*h*bytesPer {
		return emath.FloatGrid{}, fmt.Errorf("%w: payload has %d bytes, a %dx%d plane needs %d", ErrNoImage, len(raw), w, h, w*h*bytesPer)
	}

	be := binary.BigEndian
	vals := make([]float64, w*h)
	for i := range vals {
		b := raw[i*bytesPer:]
		var v float64
		switch bitpix {
		case 8:   v = float64(b[0])
		case 16:  v = float64(int16(be.Uint16(b)))
		case 32:  v = float64(int32(be.Uint32(b)))
		case 64:  v = float64(int64(be.Uint64(b)))
		case -32: v = float64(math.Float32frombits(be.Uint32(b)))
		case -64: v = math.Float64frombits(be.Uint64(b))
		}
		vals[i] = bzero + bscale*v
	}

	return emath.NewFloatGridFromValues(w, h, vals), nil
}
