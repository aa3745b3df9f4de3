package periodogram

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
)

var ErrTooShort = errors.New("periodogram: at least two samples required for an FFT spectrum")

// FFTAmplitudeSpectrum computes a one-sided amplitude spectrum of an evenly
// sampled series with step dt (days). A Hann window is applied and the
// result is corrected for its coherent gain, so a pure sinusoid away from
// the spectrum edges reports its amplitude. Returns parallel frequency and
// amplitude slices covering 0..Nyquist.
//
// The Lomb-Scargle path handles the observed (unevenly sampled) series;
// this path serves the evenly resampled model series.
func FFTAmplitudeSpectrum(flux []float64, dt float64) ([]float64, []float64, error) {
	n := len(flux)
	if n < 2 {
		return nil, nil, ErrTooShort
	}
	if dt <= 0 {
		return nil, nil, fmt.Errorf("periodogram: invalid sample step %g", dt)
	}

	var mean float64
	for _, v := range flux {
		mean += v
	}
	mean /= float64(n)

	win := hann(n)
	buf := make([]float64, n)
	for i, v := range flux {
		buf[i] = v - mean
	}
	vecmath.MulBlockInPlace(buf, win)

	var coherentGain float64
	for _, w := range win {
		coherentGain += w
	}
	coherentGain /= float64(n)

	fftSize := nextPowerOf2(n)
	in := make([]complex128, fftSize)
	for i, v := range buf {
		in[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, nil, fmt.Errorf("periodogram: fft plan: %w", err)
	}
	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return nil, nil, fmt.Errorf("periodogram: fft: %w", err)
	}

	bins := fftSize/2 + 1
	freqs := make([]float64, bins)
	amps := make([]float64, bins)
	scale := 2 / (float64(n) * coherentGain)
	for k := 0; k < bins; k++ {
		freqs[k] = float64(k) / (float64(fftSize) * dt)
		amps[k] = scale * math.Hypot(real(out[k]), imag(out[k]))
	}
	// DC and Nyquist bins are not doubled.
	amps[0] /= 2
	if fftSize%2 == 0 {
		amps[bins-1] /= 2
	}

	return freqs, amps, nil
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
