package periodogram

import "math"

// Peak is a selected point of a spectrum.
type Peak struct {
	Freq float64 `json:"freq"`
	Amp  float64 `json:"amp"`
}

// SubNyquist reflects a frequency into the principal range [0, nyquist].
// Signals above the Nyquist frequency alias onto this fold.
func SubNyquist(freq, nyquist float64) float64 {
	if nyquist <= 0 {
		return freq
	}
	f := math.Mod(math.Abs(freq), 2*nyquist)
	if f > nyquist {
		f = 2*nyquist - f
	}
	return f
}

// MaxPeak returns the highest sample of the spectrum, skipping NaNs.
func MaxPeak(freqs, amps []float64) Peak {
	best := Peak{Freq: math.NaN(), Amp: math.Inf(-1)}
	for i, a := range amps {
		if math.IsNaN(a) {
			continue
		}
		if a > best.Amp {
			best = Peak{Freq: freqs[i], Amp: a}
		}
	}
	if math.IsInf(best.Amp, -1) {
		return Peak{}
	}
	return best
}

// SnapToPeak returns the highest sample within tol of f. When no sample
// falls inside the tolerance the nearest grid sample is returned. The
// frequency grid must be ascending.
func SnapToPeak(freqs, amps []float64, f, tol float64) Peak {
	if len(freqs) == 0 {
		return Peak{}
	}

	best := Peak{Freq: math.NaN(), Amp: math.Inf(-1)}
	nearest := 0
	nearestDist := math.Inf(1)
	for i := range freqs {
		d := math.Abs(freqs[i] - f)
		if d < nearestDist {
			nearestDist = d
			nearest = i
		}
		if d <= tol && !math.IsNaN(amps[i]) && amps[i] > best.Amp {
			best = Peak{Freq: freqs[i], Amp: amps[i]}
		}
	}
	if math.IsInf(best.Amp, -1) {
		return Peak{Freq: freqs[nearest], Amp: amps[nearest]}
	}
	return best
}

// SnapTolerance is the click tolerance used when staging a peak: the larger
// of the grid resolution and 1% of the inspected frequency range.
func SnapTolerance(resolution, rangeWidth float64) float64 {
	return math.Max(resolution, 0.01*rangeWidth)
}
