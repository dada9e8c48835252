package destar

import(
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by queries, exports and setters made before a
// raster has been loaded.
var ErrNotLoaded = errors.New("no raster loaded")

// InvalidSourceError means the source file was missing, had the wrong
// extension, or held no usable grid. The session is left as it was.
type InvalidSourceError struct {
	Path string
	Err  error
}

func (e *InvalidSourceError)Error() string { return fmt.Sprintf("invalid source %q: %v", e.Path, e.Err) }
func (e *InvalidSourceError)Unwrap() error { return e.Err }

// ValidationError is a rejected parameter update. Nothing was changed.
type ValidationError struct {
	Param   string
	Value   float64
	Reason  string
}

func (e *ValidationError)Error() string {
	return fmt.Sprintf("%s=%v rejected: %s", e.Param, e.Value, e.Reason)
}

// UnsupportedFormatError is an export to anything other than a PNG.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError)Error() string {
	return fmt.Sprintf("cannot export %q: output must be a %s file", e.Path, ExportExtension)
}
