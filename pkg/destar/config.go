package destar

import(
	"fmt"
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/destar/pkg/emath"
	"github.com/abworrall/destar/pkg/estars"
)

/* Example config file ...

verbosity: 1
params:
  clipsigma: 3.0
  fwhm: 4.0
  threshold: 6.0
  radius: 7
  blursigma: 1.5
  filtersize: 15
detector: daofind
sharplo: 0.2
sharphi: 1.0
background: median
outputnames:
  final: m42-final.png

*/

type Config struct {
	Verbosity      int

	Params         ParameterSet

	Detector       string   // Which star finder to use
	SharpLo        float64  // Detector rejects candidates sharper/softer than this
	SharpHi        float64
	RoundLo        float64  // Detector rejects candidates more elongated than this
	RoundHi        float64

	Background     string   // How to estimate the star free background

	OutputNames    map[Kind]string // Filenames used by ExportAll, by kind
}

func NewConfig() Config {
	f := estars.NewFinder(0, 0)
	return Config{
		Params:      DefaultParameters(),
		Detector:    "daofind",
		SharpLo:     f.SharpLo,
		SharpHi:     f.SharpHi,
		RoundLo:     f.RoundLo,
		RoundHi:     f.RoundHi,
		Background:  "median",
		OutputNames: DefaultOutputNames(),
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	// Only the params the file leaves out follow the fwhm; the ones it
	// sets must be valid as written.
	explicit := struct {
		Params map[string]interface{}
	}{}
	if err := yaml.Unmarshal(b, &explicit); err != nil {
		return c, err
	}
	keep := []string{}
	for k := range explicit.Params {
		keep = append(keep, canonicalName(k))
	}
	if repaired := c.Params.repair(keep...); len(repaired) > 0 {
		log.Debugf("config: %v follow fwhm, now %s", repaired, c.Params)
	}

	return c, c.Finalize()
}

func LoadConfig(filename string) (Config, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %v", filename, err)
	}

	c, err := newConfigFromYaml(contents)
	if err != nil {
		return c, fmt.Errorf("config parse %s: %w", filename, err)
	}
	return c, nil
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// Finalize does sanity checks, and fills in any output names the config
// file left out. Params are validated, never repaired.
func (c *Config)Finalize() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if _, err := c.GetDetector(); err != nil {
		return err
	}
	if _, err := c.GetBackground(); err != nil {
		return err
	}

	names := DefaultOutputNames()
	for k, v := range c.OutputNames {
		if !k.Valid() {
			return fmt.Errorf("no image kind named '%s', wanted one of %v", k, Kinds)
		}
		if !HasExportExtension(v) {
			return &UnsupportedFormatError{Path: v}
		}
		names[k] = v
	}
	c.OutputNames = names

	return nil
}

func (c Config)GetDetector() (DetectFunc, error) {
	switch c.Detector {
	case "daofind", "":
		sharpLo, sharpHi, roundLo, roundHi := c.SharpLo, c.SharpHi, c.RoundLo, c.RoundHi
		return func(g emath.FloatGrid, fwhm, threshold float64) []estars.Star {
			f := estars.NewFinder(fwhm, threshold)
			f.SharpLo, f.SharpHi, f.RoundLo, f.RoundHi = sharpLo, sharpHi, roundLo, roundHi
			return f.Find(g)
		}, nil
	default:
		return nil, fmt.Errorf("no Detector strategy named '%s'", c.Detector)
	}
}

func (c Config)GetBackground() (BackgroundFunc, error) {
	switch c.Background {
	case "median", "":
		return func(g emath.FloatGrid, size int) emath.FloatGrid { return g.MedianFilter(size) }, nil
	default:
		return nil, fmt.Errorf("no Background strategy named '%s'", c.Background)
	}
}
