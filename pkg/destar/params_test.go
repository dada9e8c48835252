package destar

import(
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParameters(t *testing.T) {
	ps := DefaultParameters()
	assert.Equal(t, ParameterSet{3.0, 3.0, 5.0, 4, 2.0, 9}, ps)
	require.NoError(t, ps.Validate())
}

func TestParameterSetWith(t *testing.T) {
	tests := []struct {
		name      string
		param     string
		v         float64
		want      ParameterSet
		repaired  []string
	}{
		{"clip", ParamClipSigma, 4.0, ParameterSet{4, 3, 5, 4, 2, 9}, []string{}},
		{"threshold", ParamThreshold, 10, ParameterSet{3, 3, 10, 4, 2, 9}, []string{}},
		{"blur zero", ParamBlurSigma, 0, ParameterSet{3, 3, 5, 4, 0, 9}, []string{}},
		{"radius drags filter", ParamRadius, 6, ParameterSet{3, 3, 5, 6, 2, 13}, []string{ParamFilterSize}},
		{"bigger filter", ParamFilterSize, 21, ParameterSet{3, 3, 5, 4, 2, 21}, []string{}},
		{"fwhm up", ParamFWHM, 10, ParameterSet{3, 10, 5, 15, 2, 31}, []string{ParamRadius, ParamFilterSize}},
		{"fwhm down", ParamFWHM, 2, ParameterSet{3, 2, 5, 4, 2, 9}, []string{}},
		{"fwhm fractional", ParamFWHM, 4.5, ParameterSet{3, 4.5, 5, 6, 2, 13}, []string{ParamRadius, ParamFilterSize}},
		{"case insensitive", "FWHM", 3.5, ParameterSet{3, 3.5, 5, 5, 2, 11}, []string{ParamRadius, ParamFilterSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, repaired, err := DefaultParameters().With(tt.param, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.repaired, repaired)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestParameterSetWithShrinkingFWHMPullsRadiusDown(t *testing.T) {
	ps, _, err := DefaultParameters().With(ParamFWHM, 10)
	require.NoError(t, err)
	require.Equal(t, 15, ps.Radius)

	ps, repaired, err := ps.With(ParamFWHM, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, ps.Radius)   // nearest bound of [7, 10]
	assert.Equal(t, 31, ps.FilterSize) // still big enough
	assert.Equal(t, []string{ParamRadius}, repaired)
}

func TestParameterSetWithRejects(t *testing.T) {
	tests := []struct {
		name  string
		param string
		v     float64
	}{
		{"clip low", ParamClipSigma, 1.0},
		{"clip high", ParamClipSigma, 5.5},
		{"fwhm low", ParamFWHM, 1.0},
		{"threshold high", ParamThreshold, 11},
		{"blur negative", ParamBlurSigma, -0.1},
		{"radius fractional", ParamRadius, 4.5},
		{"radius high", ParamRadius, 7},
		{"radius low", ParamRadius, 3},
		{"filter even", ParamFilterSize, 10},
		{"filter small", ParamFilterSize, 7},
		{"filter fractional", ParamFilterSize, 9.5},
		{"unknown", "gain", 1},
		{"filter +inf", ParamFilterSize, math.Inf(1)},
		{"filter -inf", ParamFilterSize, math.Inf(-1)},
		{"filter huge", ParamFilterSize, 1e300},
		{"filter past int32", ParamFilterSize, float64(math.MaxInt32) + 2},
		{"radius +inf", ParamRadius, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := DefaultParameters()
			got, repaired, err := before.With(tt.param, tt.v)
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "%T", err)
			assert.Equal(t, tt.v, ve.Value)
			assert.Equal(t, before, got)
			assert.Nil(t, repaired)
		})
	}
}

func TestParameterSetValidate(t *testing.T) {
	ps := DefaultParameters()
	ps.Radius = 9
	assert.Error(t, ps.Validate())

	ps = DefaultParameters()
	ps.FilterSize = 8
	assert.Error(t, ps.Validate())

	ps = DefaultParameters()
	ps.ClipSigma = 0
	assert.True(t, IsValidationError(ps.Validate()))
}

func TestParameterSetGet(t *testing.T) {
	ps := DefaultParameters()
	for _, name := range ParamNames {
		_, err := ps.Get(name)
		assert.NoError(t, err, name)
	}
	v, err := ps.Get("filtersize")
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	_, err = ps.Get("nope")
	assert.Error(t, err)
}

func TestParameterSetWithRejectsNaN(t *testing.T) {
	for _, name := range ParamNames {
		_, _, err := DefaultParameters().With(name, math.NaN())
		assert.True(t, IsValidationError(err), name)
	}
}

func TestParameterSetWithLargeOddFilter(t *testing.T) {
	ps, _, err := DefaultParameters().With(ParamFilterSize, 100001)
	require.NoError(t, err)
	assert.Equal(t, 100001, ps.FilterSize)
}
