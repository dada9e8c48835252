package destar

import(
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/abworrall/destar/pkg/efits"
	"github.com/abworrall/destar/pkg/emath"
	"github.com/abworrall/destar/pkg/estars"
)

// Kind names one member of the derived image set.
type Kind string

const(
	KindOriginal   Kind = "original"
	KindSoftMask   Kind = "softmask"
	KindBackground Kind = "background"
	KindFinal      Kind = "final"
)

var(
	Kinds = []Kind{KindOriginal, KindSoftMask, KindBackground, KindFinal}
)

func (k Kind)Valid() bool {
	for _, kk := range Kinds {
		if k == kk {
			return true
		}
	}
	return false
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	if !k.Valid() {
		return k, fmt.Errorf("no image kind named '%s', wanted one of %v", s, Kinds)
	}
	return k, nil
}

// The collaborators a regeneration calls out to. They must be pure, and
// return grids the same shape as their input.
type StatsFunc      func(g emath.FloatGrid, clipSigma float64) emath.ClippedStats
type DetectFunc     func(g emath.FloatGrid, fwhm, threshold float64) []estars.Star
type BlurFunc       func(g emath.FloatGrid, sigma float64) emath.FloatGrid
type BackgroundFunc func(g emath.FloatGrid, size int) emath.FloatGrid

func DefaultStats(g emath.FloatGrid, clipSigma float64) emath.ClippedStats {
	return emath.SigmaClippedStats(g, clipSigma, emath.DefaultClipIters)
}

func DefaultBlur(g emath.FloatGrid, sigma float64) emath.FloatGrid {
	return g.GaussianBlur(sigma)
}

// A DerivedSet is everything one regeneration produced. Once a session
// has published it, nothing modifies it; a later regeneration builds a
// whole new one.
type DerivedSet struct {
	Generation  uint64
	Params      ParameterSet
	Stats       emath.ClippedStats
	Stars       []estars.Star

	Original    emath.FloatGrid
	SoftMask    emath.FloatGrid
	Background  emath.FloatGrid
	Final       emath.FloatGrid
}

func (ds *DerivedSet)grid(k Kind) (emath.FloatGrid, error) {
	switch k {
	case KindOriginal:   return ds.Original, nil
	case KindSoftMask:   return ds.SoftMask, nil
	case KindBackground: return ds.Background, nil
	case KindFinal:      return ds.Final, nil
	}
	return emath.FloatGrid{}, fmt.Errorf("no image kind named '%s', wanted one of %v", k, Kinds)
}

func (ds *DerivedSet)String() string {
	return fmt.Sprintf("derived#%d %s, %s, %d stars", ds.Generation, ds.Params, ds.Stats, len(ds.Stars))
}

// A Session owns one source raster, the current parameters, and the
// images derived from them. It is either unloaded (no raster, no images)
// or loaded (raster present, images consistent with the parameters).
//
// Mutations are serialized, and each runs at most one regeneration.
// Readers get the most recently published DerivedSet and never block on
// a regeneration in progress.
type Session struct {
	ID            string
	Config        Config

	StatsFn       StatsFunc
	DetectFn      DetectFunc
	BlurFn        BlurFunc
	BackgroundFn  BackgroundFunc

	mu            sync.Mutex
	source        string
	raster       *emath.FloatGrid
	params        ParameterSet
	generation    uint64

	derived       atomic.Pointer[DerivedSet]
}

func NewSession(cfg Config) (*Session, error) {
	detect, err := cfg.GetDetector()
	if err != nil {
		return nil, err
	}
	background, err := cfg.GetBackground()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:           uuid.New().String(),
		Config:       cfg,
		StatsFn:      DefaultStats,
		DetectFn:     detect,
		BlurFn:       DefaultBlur,
		BackgroundFn: background,
		params:       DefaultParameters(),
	}, nil
}

func (s *Session)String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raster == nil {
		return fmt.Sprintf("Session %s [unloaded]", s.ID)
	}
	return fmt.Sprintf("Session %s [%s %dx%d, %s]", s.ID, s.source, s.raster.Dx(), s.raster.Dy(), s.params)
}

func (s *Session)logger() *log.Entry {
	return log.WithFields(log.Fields{"session": s.ID})
}

// Load reads a FITS file and makes it the session's raster, with the
// parameters reset to their defaults. If anything goes wrong the session
// is left exactly as it was.
func (s *Session)Load(filename string) error {
	r, err := efits.Load(filename)
	if err != nil {
		return &InvalidSourceError{Path: filename, Err: err}
	}
	s.logger().Infof("Loaded %s", r)
	return s.LoadGrid(r.FloatGrid, filename)
}

// LoadGrid is Load, for a raster that is already in memory. The session
// takes ownership of g; the caller must not modify it afterwards.
func (s *Session)LoadGrid(g emath.FloatGrid, name string) error {
	if g.Dx() == 0 || g.Dy() == 0 {
		return &InvalidSourceError{Path: name, Err: efits.ErrNoImage}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ps := DefaultParameters()
	ds := s.derive(g, ps)

	s.source = name
	s.raster = &g
	s.params = ps
	s.publish(ds)
	return nil
}

// Unload discards the raster and everything derived from it.
func (s *Session)Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source = ""
	s.raster = nil
	s.params = DefaultParameters()
	s.derived.Store(nil)
	s.logger().Debugf("Unloaded")
}

// Reset restores the default parameters and regenerates. It does nothing
// if no raster is loaded.
func (s *Session)Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raster == nil {
		return
	}
	s.params = DefaultParameters()
	s.publish(s.derive(*s.raster, s.params))
}

func (s *Session)Loaded() bool { return s.derived.Load() != nil }

func (s *Session)Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Regenerate rebuilds the derived image set from the current raster and
// parameters.
func (s *Session)Regenerate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raster == nil {
		return ErrNotLoaded
	}
	s.publish(s.derive(*s.raster, s.params))
	return nil
}

// Generation counts the regenerations published since the session was created.
func (s *Session)Generation() uint64 {
	if ds := s.derived.Load(); ds != nil {
		return ds.Generation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// derive runs the four stages. It only reads from the session, so a
// panic in a collaborator leaves the published set alone.
func (s *Session)derive(raster emath.FloatGrid, ps ParameterSet) *DerivedSet {
	start := time.Now()
	w, h := raster.Dx(), raster.Dy()

	// 1. Background level and noise
	stats := s.StatsFn(raster, ps.ClipSigma)

	// 2. Find stars on the background subtracted image, and mask them
	sub := raster.Copy()
	vals := sub.Values()
	for i := range vals {
		vals[i] -= stats.Median
	}
	stars := s.DetectFn(sub, ps.FWHM, ps.Threshold*stats.Std)
	mask := BuildStarMask(w, h, stars, ps.Radius)
	soft := SoftenMask(mask, ps.BlurSigma, s.BlurFn)
	mustMatch("soft mask", raster, soft)

	// 3. Starless estimate of the background
	background := s.BackgroundFn(raster, ps.FilterSize)
	mustMatch("background estimate", raster, background)

	// 4. Put the background back where the stars were
	final := Composite(soft, background, raster)

	s.logger().WithFields(log.Fields{
		"stars":   len(stars),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debugf("Derived %s, %s", ps, stats)

	return &DerivedSet{
		Params:     ps,
		Stats:      stats,
		Stars:      stars,
		Original:   raster,
		SoftMask:   soft,
		Background: background,
		Final:      final,
	}
}

// publish must be called with s.mu held.
func (s *Session)publish(ds *DerivedSet) {
	s.generation++
	ds.Generation = s.generation
	s.derived.Store(ds)
	s.logger().WithFields(log.Fields{"gen": ds.Generation, "stars": len(ds.Stars)}).Infof("Regenerated")
}

func mustMatch(what string, want, got emath.FloatGrid) {
	if !want.SameShape(got) {
		panic(fmt.Sprintf("%s is %dx%d, raster is %dx%d", what, got.Dx(), got.Dy(), want.Dx(), want.Dy()))
	}
}

// Snapshot returns the current derived image set, or nil if nothing is
// loaded. The set is shared; treat it as read only.
func (s *Session)Snapshot() *DerivedSet { return s.derived.Load() }

// Derived returns a copy of one of the derived images.
func (s *Session)Derived(k Kind) (emath.FloatGrid, error) {
	ds := s.Snapshot()
	if ds == nil {
		return emath.FloatGrid{}, ErrNotLoaded
	}
	g, err := ds.grid(k)
	if err != nil {
		return g, err
	}
	return g.Copy(), nil
}

func (s *Session)Original() (emath.FloatGrid, error)   { return s.Derived(KindOriginal) }
func (s *Session)SoftMask() (emath.FloatGrid, error)   { return s.Derived(KindSoftMask) }
func (s *Session)Background() (emath.FloatGrid, error) { return s.Derived(KindBackground) }
func (s *Session)Final() (emath.FloatGrid, error)      { return s.Derived(KindFinal) }

func (s *Session)Stars() ([]estars.Star, error) {
	ds := s.Snapshot()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	return append([]estars.Star(nil), ds.Stars...), nil
}
