package destar

import(
	"errors"
)

// Params returns the parameters the current images were built with, or
// the defaults when nothing is loaded.
func (s *Session)Params() ParameterSet {
	if ds := s.Snapshot(); ds != nil {
		return ds.Params
	}
	return DefaultParameters()
}

func (s *Session)ClipSigma() float64 { return s.Params().ClipSigma }
func (s *Session)FWHM() float64      { return s.Params().FWHM }
func (s *Session)Threshold() float64 { return s.Params().Threshold }
func (s *Session)Radius() int        { return s.Params().Radius }
func (s *Session)BlurSigma() float64 { return s.Params().BlurSigma }
func (s *Session)FilterSize() int    { return s.Params().FilterSize }

func (s *Session)SetClipSigma(v float64) error { return s.SetParameter(ParamClipSigma, v) }
func (s *Session)SetFWHM(v float64) error      { return s.SetParameter(ParamFWHM, v) }
func (s *Session)SetThreshold(v float64) error { return s.SetParameter(ParamThreshold, v) }
func (s *Session)SetRadius(v int) error        { return s.SetParameter(ParamRadius, float64(v)) }
func (s *Session)SetBlurSigma(v float64) error { return s.SetParameter(ParamBlurSigma, v) }
func (s *Session)SetFilterSize(v int) error    { return s.SetParameter(ParamFilterSize, float64(v)) }

// SetParameter changes one parameter. Dependent parameters are repaired
// first, then the images are regenerated once. A value outside its
// domain returns a *ValidationError and changes nothing.
func (s *Session)SetParameter(name string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raster == nil {
		return ErrNotLoaded
	}

	next, repaired, err := s.params.With(name, v)
	if err != nil {
		s.logger().Debugf("SetParameter: %v", err)
		return err
	}
	if len(repaired) > 0 {
		s.logger().Debugf("SetParameter %s=%v: repaired %v, now %s", name, v, repaired, next)
	}

	s.publish(s.derive(*s.raster, next))
	s.params = next
	return nil
}

// SetParameters replaces the whole parameter set, for callers (config
// files, a coalescing worker) that have several changes at once. The set
// must already be valid; nothing is repaired.
func (s *Session)SetParameters(ps ParameterSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raster == nil {
		return ErrNotLoaded
	}
	if err := ps.Validate(); err != nil {
		return err
	}

	s.publish(s.derive(*s.raster, ps))
	s.params = ps
	return nil
}

// IsValidationError tells the UI layer whether an error was just a
// rejected value, as opposed to something it should report loudly.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
