package destar

import(
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/destar/pkg/efits/efitstest"
	"github.com/abworrall/destar/pkg/emath"
	"github.com/abworrall/destar/pkg/estars"
)

// starField is a 60x40 background of 100 with +/-1 of noise, and one
// star of amplitude 500 at (30,20).
func starField() emath.FloatGrid {
	g := emath.NewFloatGrid(60, 40)
	r := rand.New(rand.NewSource(1))
	sigma := 3.0 * 0.42466
	for y:=0; y<g.Dy(); y++ {
		for x:=0; x<g.Dx(); x++ {
			d2 := float64((x-30)*(x-30) + (y-20)*(y-20))
			g.Set(x, y, 100 + 2*r.Float64()-1 + 500*math.Exp(-d2/(2*sigma*sigma)))
		}
	}
	return g
}

func newLoadedSession(t *testing.T, g emath.FloatGrid) *Session {
	s, err := NewSession(NewConfig())
	require.NoError(t, err)
	require.NoError(t, s.LoadGrid(g, "test"))
	return s
}

func TestUnloadedSession(t *testing.T) {
	s, err := NewSession(NewConfig())
	require.NoError(t, err)

	assert.False(t, s.Loaded())
	assert.Nil(t, s.Snapshot())
	assert.Equal(t, uint64(0), s.Generation())
	assert.Equal(t, DefaultParameters(), s.Params())

	assert.ErrorIs(t, s.Regenerate(), ErrNotLoaded)
	assert.ErrorIs(t, s.SetFWHM(4), ErrNotLoaded)
	assert.ErrorIs(t, s.SetParameters(DefaultParameters()), ErrNotLoaded)

	_, err = s.Final()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.Stars()
	assert.ErrorIs(t, err, ErrNotLoaded)

	s.Reset() // no-op
	assert.False(t, s.Loaded())
	assert.Equal(t, uint64(0), s.Generation())
}

func TestLoadGridRejectsEmptyGrid(t *testing.T) {
	s, err := NewSession(NewConfig())
	require.NoError(t, err)

	err = s.LoadGrid(emath.FloatGrid{}, "empty")
	var ise *InvalidSourceError
	require.True(t, errors.As(err, &ise))
	assert.False(t, s.Loaded())
}

func TestSessionFindsAndRemovesStar(t *testing.T) {
	g := starField()
	s := newLoadedSession(t, g)

	assert.True(t, s.Loaded())
	assert.Equal(t, uint64(1), s.Generation())
	assert.Equal(t, DefaultParameters(), s.Params())

	stars, err := s.Stars()
	require.NoError(t, err)
	found := false
	for _, st := range stars {
		if math.Hypot(st.X-30, st.Y-20) < 0.5 {
			found = true
		}
	}
	assert.True(t, found, "%v", stars)

	ds := s.Snapshot()
	require.NotNil(t, ds)
	assert.InDelta(t, 100.0, ds.Stats.Median, 1.0)
	assert.Greater(t, ds.Stats.Std, 0.0)

	orig, err := s.Original()
	require.NoError(t, err)
	assert.True(t, orig.Equal(g))

	mask, err := s.SoftMask()
	require.NoError(t, err)
	final, err := s.Final()
	require.NoError(t, err)

	assert.Greater(t, mask.Get(30, 20), 0.5)
	assert.Equal(t, 0.0, mask.Get(0, 0))
	for _, v := range mask.Values() {
		require.True(t, v >= 0 && v <= 1, "mask value %v", v)
	}

	assert.Less(t, final.Get(30, 20), 0.5*g.Get(30, 20))
	assert.Equal(t, g.Get(0, 0), final.Get(0, 0))
}

func TestDerivedReturnsCopies(t *testing.T) {
	s := newLoadedSession(t, starField())

	final, err := s.Final()
	require.NoError(t, err)
	final.Set(0, 0, -1)

	again, err := s.Final()
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, again.Get(0, 0))

	_, err = s.Derived(Kind("nope"))
	assert.Error(t, err)
}

func TestFlatRasterHasNoStars(t *testing.T) {
	g := emath.NewFloatGrid(50, 50)
	for i := range g.Values() {
		g.Values()[i] = 100
	}
	s := newLoadedSession(t, g)

	stars, err := s.Stars()
	require.NoError(t, err)
	assert.Empty(t, stars)

	mask, _ := s.SoftMask()
	for _, v := range mask.Values() {
		require.Equal(t, 0.0, v)
	}
	final, _ := s.Final()
	assert.True(t, final.Equal(g))
}

func TestSetFWHMRepairsAndRegeneratesOnce(t *testing.T) {
	s := newLoadedSession(t, starField())
	gen := s.Generation()

	require.NoError(t, s.SetFWHM(10))
	assert.Equal(t, gen+1, s.Generation())
	assert.Equal(t, 10.0, s.FWHM())
	assert.Equal(t, 15, s.Radius())
	assert.Equal(t, 31, s.FilterSize())
	assert.Equal(t, s.Params(), s.Snapshot().Params)
}

func TestRejectedSetterChangesNothing(t *testing.T) {
	s := newLoadedSession(t, starField())
	before := s.Snapshot()

	tests := []struct {
		name string
		set  func() error
	}{
		{"clip", func() error { return s.SetClipSigma(1.0) }},
		{"threshold", func() error { return s.SetThreshold(2) }},
		{"blur", func() error { return s.SetBlurSigma(3.5) }},
		{"radius", func() error { return s.SetRadius(7) }},
		{"radius fraction", func() error { return s.SetParameter(ParamRadius, 4.5) }},
		{"filter even", func() error { return s.SetFilterSize(10) }},
		{"filter small", func() error { return s.SetFilterSize(7) }},
		{"unknown", func() error { return s.SetParameter("gain", 2) }},
	}
	for _, tt := range tests {
		err := tt.set()
		assert.True(t, IsValidationError(err), "%s: %v", tt.name, err)
		assert.Same(t, before, s.Snapshot(), tt.name)
	}
	assert.Equal(t, DefaultParameters(), s.Params())
}

func TestTypedSetters(t *testing.T) {
	s := newLoadedSession(t, starField())

	require.NoError(t, s.SetClipSigma(4))
	require.NoError(t, s.SetThreshold(8))
	require.NoError(t, s.SetBlurSigma(0))
	require.NoError(t, s.SetRadius(6))
	require.NoError(t, s.SetFilterSize(15))

	assert.Equal(t, ParameterSet{4, 3, 8, 6, 0, 15}, s.Params())
	assert.Equal(t, 4.0, s.ClipSigma())
	assert.Equal(t, 8.0, s.Threshold())
	assert.Equal(t, 0.0, s.BlurSigma())
	assert.Equal(t, uint64(6), s.Generation())

	// With no blur the mask stays binary
	mask, _ := s.SoftMask()
	for _, v := range mask.Values() {
		require.True(t, v == 0 || v == 1, "mask value %v", v)
	}

	s.Reset()
	assert.Equal(t, DefaultParameters(), s.Params())
	assert.Equal(t, uint64(7), s.Generation())
}

func TestFilterSizeLargerThanRaster(t *testing.T) {
	s := newLoadedSession(t, starField())
	require.NoError(t, s.SetFilterSize(100001))
	assert.Equal(t, 100001, s.FilterSize())

	bg, err := s.Background()
	require.NoError(t, err)
	assert.Equal(t, 60, bg.Dx())
	assert.Equal(t, 40, bg.Dy())
}

func TestSetParametersValidates(t *testing.T) {
	s := newLoadedSession(t, starField())
	before := s.Snapshot()

	bad := DefaultParameters()
	bad.FilterSize = 7
	assert.True(t, IsValidationError(s.SetParameters(bad)))
	assert.Same(t, before, s.Snapshot())

	good := ParameterSet{3.5, 4, 6, 7, 1, 17}
	require.NoError(t, s.SetParameters(good))
	assert.Equal(t, good, s.Params())
	assert.Equal(t, before.Generation+1, s.Generation())
}

func TestRegenerateIsIdempotent(t *testing.T) {
	s := newLoadedSession(t, starField())
	first := s.Snapshot()

	require.NoError(t, s.Regenerate())
	second := s.Snapshot()

	assert.NotSame(t, first, second)
	assert.Equal(t, first.Generation+1, second.Generation)
	assert.Equal(t, first.Stars, second.Stars)
	assert.True(t, first.SoftMask.Equal(second.SoftMask))
	assert.True(t, first.Background.Equal(second.Background))
	assert.True(t, first.Final.Equal(second.Final))
}

func TestCollaboratorShapeMismatchPanics(t *testing.T) {
	s := newLoadedSession(t, starField())
	before := s.Snapshot()

	s.BackgroundFn = func(g emath.FloatGrid, size int) emath.FloatGrid { return emath.NewFloatGrid(1, 1) }
	assert.Panics(t, func() { s.SetThreshold(6) })

	assert.Same(t, before, s.Snapshot())
	assert.Equal(t, DefaultParameters(), s.Params())

	// The lock was released, and the session still works
	s.BackgroundFn = func(g emath.FloatGrid, size int) emath.FloatGrid { return g.MedianFilter(size) }
	assert.NoError(t, s.SetThreshold(6))
}

func TestInjectedDetector(t *testing.T) {
	s, err := NewSession(NewConfig())
	require.NoError(t, err)
	s.DetectFn = func(g emath.FloatGrid, fwhm, threshold float64) []estars.Star {
		return []estars.Star{{X: 0, Y: 0}}
	}
	s.BlurFn = func(g emath.FloatGrid, sigma float64) emath.FloatGrid { return g.Copy() }

	g := emath.NewFloatGrid(10, 10)
	require.NoError(t, s.LoadGrid(g, "zeros"))

	mask, _ := s.SoftMask()
	assert.Equal(t, 1.0, mask.Get(4, 0))
	assert.Equal(t, 1.0, mask.Get(0, 4))
	assert.Equal(t, 0.0, mask.Get(3, 3))
	assert.Equal(t, 0.0, mask.Get(5, 0))
}

func TestLoadFromFITS(t *testing.T) {
	dir := t.TempDir()
	g := starField()
	fn := filepath.Join(dir, "field.fits")
	require.NoError(t, efitstest.WriteFile(fn, []int{g.Dx(), g.Dy()}, g.Values()))

	s, err := NewSession(NewConfig())
	require.NoError(t, err)
	require.NoError(t, s.Load(fn))
	assert.Equal(t, fn, s.Source())

	orig, _ := s.Original()
	assert.True(t, orig.Equal(g))

	// A later load resets the parameters
	require.NoError(t, s.SetFWHM(6))
	require.NoError(t, s.Load(fn))
	assert.Equal(t, DefaultParameters(), s.Params())
}

func TestFailedLoadKeepsState(t *testing.T) {
	dir := t.TempDir()
	s := newLoadedSession(t, starField())
	require.NoError(t, s.SetFWHM(4))
	before := s.Snapshot()

	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

	for _, fn := range []string{filepath.Join(dir, "missing.fits"), bad, dir} {
		err := s.Load(fn)
		var ise *InvalidSourceError
		require.True(t, errors.As(err, &ise), "%s: %v", fn, err)
		assert.Equal(t, fn, ise.Path)
		assert.Same(t, before, s.Snapshot())
		assert.Equal(t, "test", s.Source())
	}
}

func TestUnload(t *testing.T) {
	s := newLoadedSession(t, starField())
	require.NoError(t, s.SetFWHM(4))

	s.Unload()
	assert.False(t, s.Loaded())
	assert.Equal(t, DefaultParameters(), s.Params())
	assert.ErrorIs(t, s.Regenerate(), ErrNotLoaded)
	assert.Contains(t, s.String(), "unloaded")
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind("Final")
	require.NoError(t, err)
	assert.Equal(t, KindFinal, got)

	_, err = ParseKind("mask")
	assert.Error(t, err)
}
