package destar

import(
	"fmt"
	"math"
	"strings"
)

const(
	ParamClipSigma  = "clipSigma"
	ParamFWHM       = "fwhm"
	ParamThreshold  = "threshold"
	ParamRadius     = "radius"
	ParamBlurSigma  = "blurSigma"
	ParamFilterSize = "filterSize"
)

var(
	ParamNames = []string{ParamClipSigma, ParamFWHM, ParamThreshold, ParamRadius, ParamBlurSigma, ParamFilterSize}
)

// A Domain is a closed interval of acceptable values.
type Domain struct {
	Min, Max float64
}

func (d Domain)Contains(v float64) bool { return v >= d.Min && v <= d.Max } // false for NaN
func (d Domain)String() string          { return fmt.Sprintf("[%g, %g]", d.Min, d.Max) }

// MaxFilterSize keeps filter sizes inside the range an int can hold on
// every platform. MedianFilter clips the window to the raster anyway.
const MaxFilterSize = math.MaxInt32

var(
	ClipSigmaDomain = Domain{2.0, 5.0}
	FWHMDomain      = Domain{1.5, 10.0}
	ThresholdDomain = Domain{3.0, 10.0}
	BlurSigmaDomain = Domain{0.0, 3.0}
)

// ParameterSet holds the six knobs that drive a regeneration. Radius is
// tied to FWHM, and FilterSize to Radius; see Validate.
type ParameterSet struct {
	ClipSigma   float64  // Sigma clipping factor for the background/noise estimate
	FWHM        float64  // Approximate star size in pixels, for the detector
	Threshold   float64  // Detection threshold, in multiples of the background noise
	Radius      int      // Radius of the disk painted into the star mask
	BlurSigma   float64  // Softening applied to the edge of the star mask
	FilterSize  int      // Median filter window used to build the starless image
}

func DefaultParameters() ParameterSet {
	ps := ParameterSet{
		ClipSigma: 3.0,
		FWHM:      3.0,
		Threshold: 5.0,
		BlurSigma: 2.0,
	}
	ps.Radius, _ = ps.RadiusBounds()
	ps.FilterSize = ps.MinFilterSize()
	return ps
}

func (ps ParameterSet)String() string {
	return fmt.Sprintf("params[clip=%.2f fwhm=%.2f thresh=%.2f radius=%d blur=%.2f filter=%d]",
		ps.ClipSigma, ps.FWHM, ps.Threshold, ps.Radius, ps.BlurSigma, ps.FilterSize)
}

// RadiusBounds are [1.5*FWHM, 2*FWHM], each truncated to an integer.
func (ps ParameterSet)RadiusBounds() (int, int) {
	return int(1.5 * ps.FWHM), int(2.0 * ps.FWHM)
}

func (ps ParameterSet)MinFilterSize() int { return 2*ps.Radius + 1 }

func (ps ParameterSet)Get(name string) (float64, error) {
	switch canonicalName(name) {
	case ParamClipSigma:  return ps.ClipSigma, nil
	case ParamFWHM:       return ps.FWHM, nil
	case ParamThreshold:  return ps.Threshold, nil
	case ParamRadius:     return float64(ps.Radius), nil
	case ParamBlurSigma:  return ps.BlurSigma, nil
	case ParamFilterSize: return float64(ps.FilterSize), nil
	}
	return 0, fmt.Errorf("no parameter named '%s', wanted one of %v", name, ParamNames)
}

// Validate checks every field against its domain, and the cross-field
// constraints on Radius and FilterSize.
func (ps ParameterSet)Validate() error {
	for _, name := range ParamNames {
		v, _ := ps.Get(name)
		if err := ps.checkDomain(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (ps ParameterSet)checkDomain(name string, v float64) error {
	reject := func(reason string, args ...interface{}) error {
		return &ValidationError{Param: name, Value: v, Reason: fmt.Sprintf(reason, args...)}
	}

	switch name {
	case ParamClipSigma:
		if !ClipSigmaDomain.Contains(v) { return reject("outside %s", ClipSigmaDomain) }
	case ParamFWHM:
		if !FWHMDomain.Contains(v) { return reject("outside %s", FWHMDomain) }
	case ParamThreshold:
		if !ThresholdDomain.Contains(v) { return reject("outside %s", ThresholdDomain) }
	case ParamBlurSigma:
		if !BlurSigmaDomain.Contains(v) { return reject("outside %s", BlurSigmaDomain) }

	case ParamRadius:
		lo, hi := ps.RadiusBounds()
		if !isWhole(v) { return reject("must be an integer") }
		if v < float64(lo) || v > float64(hi) {
			return reject("outside [%d, %d] for fwhm=%g", lo, hi, ps.FWHM)
		}

	case ParamFilterSize:
		if !isWhole(v) { return reject("must be an integer") }
		if v > MaxFilterSize { return reject("must be at most %d", MaxFilterSize) }
		if math.Mod(v, 2) == 0 { return reject("must be odd") }
		if v < float64(ps.MinFilterSize()) {
			return reject("must be at least %d for radius=%d", ps.MinFilterSize(), ps.Radius)
		}

	default:
		return reject("unknown parameter, wanted one of %v", ParamNames)
	}
	return nil
}

// With returns a copy of ps with one field changed, plus the names of any
// dependent fields that had to be repaired to keep the set consistent. A
// change that fails its own domain check is rejected outright.
func (ps ParameterSet)With(name string, v float64) (ParameterSet, []string, error) {
	name = canonicalName(name)
	if err := ps.checkDomain(name, v); err != nil {
		return ps, nil, err
	}

	next := ps
	switch name {
	case ParamClipSigma:   next.ClipSigma = v
	case ParamFWHM:        next.FWHM = v
	case ParamThreshold:   next.Threshold = v
	case ParamRadius:      next.Radius = int(v)
	case ParamBlurSigma:   next.BlurSigma = v
	case ParamFilterSize:  next.FilterSize = int(v)
	}

	repaired := next.repair()
	if err := next.Validate(); err != nil {
		return ps, nil, err
	}
	return next, repaired, nil
}

// repair makes one pass down the dependency chain, fwhm -> radius ->
// filterSize, moving each dependent to its nearest valid value. Each
// field is only ever pushed towards its own bound, so one pass settles.
// Fields named in keep are left for Validate to judge.
func (ps *ParameterSet)repair(keep ...string) []string {
	repaired := []string{}
	kept := func(name string) bool {
		for _, k := range keep {
			if k == name {
				return true
			}
		}
		return false
	}

	if lo, hi := ps.RadiusBounds(); !kept(ParamRadius) {
		if ps.Radius < lo {
			ps.Radius = lo
			repaired = append(repaired, ParamRadius)
		} else if ps.Radius > hi {
			ps.Radius = hi
			repaired = append(repaired, ParamRadius)
		}
	}

	if !kept(ParamFilterSize) && ps.FilterSize < ps.MinFilterSize() {
		ps.FilterSize = ps.MinFilterSize()
		repaired = append(repaired, ParamFilterSize)
	}

	return repaired
}

// isWhole is false for NaN and the infinities too.
func isWhole(v float64) bool {
	return !math.IsInf(v, 0) && v == math.Trunc(v)
}

func canonicalName(name string) string {
	for _, n := range ParamNames {
		if strings.EqualFold(n, name) {
			return n
		}
	}
	return name
}
