package periodogram

import (
	"math"

	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
)

// AmplitudeSpectrum computes the amplitude periodogram of a light curve on
// the given frequencies using a generalized (floating-mean) Lomb-Scargle
// fit. For each frequency the flux is modeled as
//
//	y(t) = c + a*cos(2*pi*f*t) + b*sin(2*pi*f*t)
//
// and the reported value is the best-fit sinusoid amplitude hypot(a, b).
// Amplitudes are in the same relative units as the flux.
func AmplitudeSpectrum(lc *lightcurve.LightCurve, freqs []float64) []float64 {
	amps := make([]float64, len(freqs))
	n := float64(lc.Len())

	// Mean removal keeps f=0 and near-zero frequencies well conditioned.
	mean := lc.Mean()
	y := make([]float64, lc.Len())
	for i, v := range lc.Flux {
		y[i] = v - mean
	}

	for k, f := range freqs {
		if f <= 0 {
			amps[k] = 0
			continue
		}

		omega := 2 * math.Pi * f

		var c, s, cc, ss, cs, yc, ys float64
		for i, t := range lc.Time {
			sin, cos := math.Sincos(omega * t)
			c += cos
			s += sin
			cc += cos * cos
			ss += sin * sin
			cs += cos * sin
			yc += y[i] * cos
			ys += y[i] * sin
		}
		c /= n
		s /= n
		cc = cc/n - c*c
		ss = ss/n - s*s
		cs = cs/n - c*s
		// y has zero mean, so no cross terms for the data sums.
		yc /= n
		ys /= n

		det := cc*ss - cs*cs
		if math.Abs(det) < 1e-300 {
			amps[k] = 0
			continue
		}

		a := (yc*ss - ys*cs) / det
		b := (ys*cc - yc*cs) / det
		amps[k] = math.Hypot(a, b)
	}

	return amps
}

// SpectralWindow computes the spectral window function of a sampling
// pattern: the amplitude response of the time sampling to a constant unit
// signal. It equals 1 at zero frequency and its structure away from zero
// describes aliasing introduced by gaps.
func SpectralWindow(times []float64, freqs []float64) []float64 {
	out := make([]float64, len(freqs))
	n := float64(len(times))
	if n == 0 {
		return out
	}

	for k, f := range freqs {
		omega := 2 * math.Pi * f
		var c, s float64
		for _, t := range times {
			sin, cos := math.Sincos(omega * t)
			c += cos
			s += sin
		}
		out[k] = math.Hypot(c, s) / n
	}
	return out
}

// InterpAmplitude linearly interpolates the spectrum at frequency f.
// Frequencies outside the grid clamp to the nearest endpoint.
func InterpAmplitude(freqs, amps []float64, f float64) float64 {
	if len(freqs) == 0 {
		return 0
	}
	if f <= freqs[0] {
		return amps[0]
	}
	last := len(freqs) - 1
	if f >= freqs[last] {
		return amps[last]
	}

	// Binary search for the bracketing pair.
	lo, hi := 0, last
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if freqs[mid] <= f {
			lo = mid
		} else {
			hi = mid
		}
	}
	span := freqs[hi] - freqs[lo]
	if span == 0 {
		return amps[lo]
	}
	w := (f - freqs[lo]) / span
	return amps[lo]*(1-w) + amps[hi]*w
}
