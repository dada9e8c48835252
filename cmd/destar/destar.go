package main

import(
	"flag"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/abworrall/destar/pkg/destar"
	"github.com/abworrall/destar/pkg/emath"
	"github.com/abworrall/destar/pkg/estars"
)

var(
	fVerbosity int
	fConfigFilename string
	fOutputDir string

	fClipSigma float64
	fFWHM float64
	fThreshold float64
	fRadius int
	fBlurSigma float64
	fFilterSize int

	fStarsFilename string
	fDumpDir string
	fPreviewSize int
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fConfigFilename, "config", "", "yaml config file (see pkg/destar/config.go)")
	flag.StringVar(&fOutputDir, "o", ".", "directory to write the output images into")

	// Zero means 'leave it to the config file, or the default'
	flag.Float64Var(&fClipSigma, "clipsigma", 0, "sigma clipping factor for the background stats [2,5]")
	flag.Float64Var(&fFWHM, "fwhm", 0, "approx star FWHM, in pixels [1.5,10]")
	flag.Float64Var(&fThreshold, "threshold", 0, "detection threshold, in sigmas above background [3,10]")
	flag.IntVar(&fRadius, "radius", 0, "radius of each star in the mask; must be in [1.5*fwhm, 2*fwhm]")
	flag.Float64Var(&fBlurSigma, "blursigma", -1, "softening of the mask edges [0,3]")
	flag.IntVar(&fFilterSize, "filtersize", 0, "median filter window; odd, and at least 2*radius+1")

	flag.StringVar(&fStarsFilename, "stars", "", "if set, write a PNG with the detected stars ringed")
	flag.StringVar(&fDumpDir, "dump", "", "if set, write titled debug images of each stage into this dir")
	flag.IntVar(&fPreviewSize, "preview", 0, "if set, also write a preview of the final image this many pixels across")
	flag.Parse()
}

func setLogLevel(v int) {
	switch {
	case v >= 2: log.SetLevel(log.TraceLevel)
	case v == 1: log.SetLevel(log.DebugLevel)
	default:     log.SetLevel(log.InfoLevel)
	}
}

// overrideParams applies the command line args to the config's params,
// in dependency order, repairing as it goes.
func overrideParams(ps destar.ParameterSet) (destar.ParameterSet, error) {
	overrides := []struct {
		name string
		v    float64
		set  bool
	}{
		{destar.ParamClipSigma, fClipSigma, fClipSigma != 0},
		{destar.ParamFWHM, fFWHM, fFWHM != 0},
		{destar.ParamThreshold, fThreshold, fThreshold != 0},
		{destar.ParamRadius, float64(fRadius), fRadius != 0},
		{destar.ParamBlurSigma, fBlurSigma, fBlurSigma >= 0},
		{destar.ParamFilterSize, float64(fFilterSize), fFilterSize != 0},
	}

	for _, o := range overrides {
		if !o.set {
			continue
		}
		next, repaired, err := ps.With(o.name, o.v)
		if err != nil {
			return ps, err
		}
		if len(repaired) > 0 {
			log.Warnf("-%s=%v: also changed %v", o.name, o.v, repaired)
		}
		ps = next
	}
	return ps, nil
}

func main() {
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] image.fits\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := destar.NewConfig()
	if fConfigFilename != "" {
		var err error
		if cfg, err = destar.LoadConfig(fConfigFilename); err != nil {
			log.Fatal(err)
		}
	}
	if fVerbosity > cfg.Verbosity {
		cfg.Verbosity = fVerbosity
	}
	setLogLevel(cfg.Verbosity)

	ps, err := overrideParams(cfg.Params)
	if err != nil {
		log.Fatalf("bad args: %v", err)
	}
	cfg.Params = ps

	if cfg.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	s, err := destar.NewSession(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := s.Load(flag.Arg(0)); err != nil {
		log.Fatal(err)
	}
	if ps != destar.DefaultParameters() {
		if err := s.SetParameters(ps); err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("%s", s.Snapshot())

	if err := os.MkdirAll(fOutputDir, 0755); err != nil {
		log.Fatal(err)
	}
	written, err := s.ExportAll(fOutputDir)
	if err != nil {
		log.Fatal(err)
	}
	for _, fn := range written {
		log.Printf("wrote %s", fn)
	}

	if cfg.Verbosity > 0 {
		for _, k := range destar.Kinds {
			gray, _ := s.Display(k)
			log.Debugf("%-10s %s", k, emath.LevelSummary(gray))
		}
	}

	if fStarsFilename != "" {
		writeStars(s, cfg, fStarsFilename)
	}
	if fDumpDir != "" {
		dumpStages(s, fDumpDir)
	}
	if fPreviewSize > 0 {
		img, err := s.Preview(destar.KindFinal, fPreviewSize)
		if err != nil {
			log.Fatal(err)
		}
		fn := filepath.Join(fOutputDir, "preview.png")
		if err := destar.WritePNG(img, fn); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", fn)
	}
}

func writeStars(s *destar.Session, cfg destar.Config, filename string) {
	ds := s.Snapshot()
	gray, _ := s.Display(destar.KindOriginal)

	f := estars.NewFinder(ds.Params.FWHM, 0)
	f.SharpLo, f.SharpHi = cfg.SharpLo, cfg.SharpHi
	if err := f.DrawOverlay(gray, ds.Stars, float64(ds.Params.Radius), filename); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s (%d stars)", filename, len(ds.Stars))
}

func dumpStages(s *destar.Session, dir string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal(err)
	}
	ds := s.Snapshot()
	for _, k := range destar.Kinds {
		g, _ := s.Derived(k)
		title := fmt.Sprintf("%s (gen %d) %s", k, ds.Generation, ds.Params)
		fn := filepath.Join(dir, fmt.Sprintf("dump-%s.png", k))
		if err := g.ToImg(title, fn); err != nil {
			log.Fatal(err)
		}
		log.Debugf("dumped %s", fn)
	}
}
