package periodogram

import (
	"errors"

	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
)

var ErrEmptyGrid = errors.New("periodogram: frequency grid is empty")

const DefaultOversample = 10

// Grid is the frequency sampling for periodograms of a light curve.
// Resolution is the Rayleigh resolution 1/span; Nyquist approximates the
// Nyquist frequency of unevenly sampled data from the median cadence.
// Frequencies run from 0 to Nyquist in steps of Resolution/Oversample.
type Grid struct {
	Freqs      []float64 `json:"freqs"`
	Resolution float64   `json:"resolution"`
	Nyquist    float64   `json:"nyquist"`
	Oversample int       `json:"oversample"`
}

// NewGrid builds the frequency grid for a light curve.
func NewGrid(lc *lightcurve.LightCurve, oversample int) *Grid {
	if oversample < 1 {
		oversample = DefaultOversample
	}

	res := 1 / lc.Span()
	nyq := 1 / (2 * lc.MedianCadence())
	step := res / float64(oversample)

	n := int(nyq/step) + 1
	freqs := make([]float64, 0, n+1)
	for f := 0.0; f <= nyq+step/2; f += step {
		freqs = append(freqs, f)
	}

	return &Grid{
		Freqs:      freqs,
		Resolution: res,
		Nyquist:    nyq,
		Oversample: oversample,
	}
}

// Step returns the grid spacing.
func (g *Grid) Step() float64 {
	return g.Resolution / float64(g.Oversample)
}
