package periodogram

import (
	"math"
	"testing"

	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineCurve(t *testing.T, n int, dt, freq, amp, phase float64) *lightcurve.LightCurve {
	t.Helper()
	times := make([]float64, n)
	flux := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * dt
		flux[i] = amp * math.Sin(2*math.Pi*(freq*times[i]+phase))
	}
	lc, err := lightcurve.New(times, flux, nil)
	require.NoError(t, err)
	return lc
}

func TestNewGrid(t *testing.T) {
	lc := sineCurve(t, 1000, 0.01, 1, 1, 0)
	g := NewGrid(lc, 10)

	span := 999 * 0.01
	assert.InDelta(t, 1/span, g.Resolution, 1e-12)
	assert.InDelta(t, 50.0, g.Nyquist, 1e-9)
	assert.InDelta(t, 0.0, g.Freqs[0], 1e-12)
	assert.InDelta(t, g.Step(), g.Freqs[1]-g.Freqs[0], 1e-12)

	last := g.Freqs[len(g.Freqs)-1]
	assert.LessOrEqual(t, last, g.Nyquist+g.Step())
	assert.Greater(t, last, g.Nyquist-g.Step())
}

func TestAmplitudeSpectrum_RecoversSinusoid(t *testing.T) {
	const (
		freq = 3.7
		amp  = 0.012
	)
	lc := sineCurve(t, 2000, 0.007, freq, amp, 0.3)
	g := NewGrid(lc, 10)

	amps := AmplitudeSpectrum(lc, g.Freqs)
	peak := MaxPeak(g.Freqs, amps)

	assert.InDelta(t, freq, peak.Freq, g.Step()*1.5)
	assert.InDelta(t, amp, peak.Amp, amp*0.02)
}

func TestAmplitudeSpectrum_UnevenSampling(t *testing.T) {
	// Remove a chunk of samples; the peak must survive the gap.
	const (
		freq = 2.25
		amp  = 0.005
	)
	var times, flux []float64
	for i := 0; i < 3000; i++ {
		tt := float64(i) * 0.005
		if tt > 4 && tt < 7 {
			continue
		}
		times = append(times, tt)
		flux = append(flux, amp*math.Sin(2*math.Pi*freq*tt))
	}
	lc, err := lightcurve.New(times, flux, nil)
	require.NoError(t, err)

	g := NewGrid(lc, 10)
	amps := AmplitudeSpectrum(lc, g.Freqs)
	peak := MaxPeak(g.Freqs, amps)

	assert.InDelta(t, freq, peak.Freq, g.Step()*1.5)
	assert.InDelta(t, amp, peak.Amp, amp*0.05)
}

func TestAmplitudeSpectrum_ConstantSeries(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4}
	flux := []float64{5, 5, 5, 5, 5}
	lc, err := lightcurve.New(times, flux, nil)
	require.NoError(t, err)

	amps := AmplitudeSpectrum(lc, []float64{0, 0.1, 0.2})
	for _, a := range amps {
		assert.InDelta(t, 0, a, 1e-9)
	}
}

func TestSpectralWindow(t *testing.T) {
	lc := sineCurve(t, 500, 0.02, 1, 1, 0)
	freqs := []float64{0, 0.5, 1, 5}
	w := SpectralWindow(lc.Time, freqs)

	assert.InDelta(t, 1.0, w[0], 1e-12, "window is 1 at zero frequency")
	for _, v := range w[1:] {
		assert.Less(t, v, 1.0)
		assert.GreaterOrEqual(t, v, 0.0)
	}

	assert.Len(t, SpectralWindow(nil, freqs), len(freqs))
}

func TestFFTAmplitudeSpectrum(t *testing.T) {
	const (
		freq = 4.0
		amp  = 0.02
		dt   = 1.0 / 64
		n    = 1024
	)
	flux := make([]float64, n)
	for i := range flux {
		flux[i] = 1 + amp*math.Sin(2*math.Pi*freq*float64(i)*dt)
	}

	freqs, amps, err := FFTAmplitudeSpectrum(flux, dt)
	require.NoError(t, err)
	require.Equal(t, len(freqs), len(amps))

	peak := MaxPeak(freqs, amps)
	assert.InDelta(t, freq, peak.Freq, freqs[1]-freqs[0]+1e-12)
	assert.InDelta(t, amp, peak.Amp, amp*0.05)

	t.Run("too short", func(t *testing.T) {
		_, _, err := FFTAmplitudeSpectrum([]float64{1}, dt)
		assert.ErrorIs(t, err, ErrTooShort)
	})

	t.Run("invalid step", func(t *testing.T) {
		_, _, err := FFTAmplitudeSpectrum(flux, 0)
		assert.Error(t, err)
	})
}

func TestSubNyquist(t *testing.T) {
	cases := []struct {
		freq, nyq, want float64
	}{
		{3, 10, 3},
		{10, 10, 10},
		{13, 10, 7},
		{20, 10, 0},
		{23, 10, 3},
		{43, 10, 3},
		{-3, 10, 3},
		{5, 0, 5}, // degenerate nyquist passes through
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, SubNyquist(tc.freq, tc.nyq), 1e-12,
			"subnyquist(%g, %g)", tc.freq, tc.nyq)
	}
}

func TestSnapToPeak(t *testing.T) {
	freqs := []float64{0, 1, 2, 3, 4, 5}
	amps := []float64{0, 1, 5, 2, math.NaN(), 3}

	t.Run("snaps to highest within tolerance", func(t *testing.T) {
		p := SnapToPeak(freqs, amps, 2.8, 1.0)
		assert.Equal(t, 2.0, p.Freq)
		assert.Equal(t, 5.0, p.Amp)
	})

	t.Run("ignores NaN", func(t *testing.T) {
		p := SnapToPeak(freqs, amps, 4.2, 0.5)
		assert.Equal(t, 4.0, p.Freq) // nearest fallback, NaN not selectable
	})

	t.Run("nearest outside tolerance", func(t *testing.T) {
		p := SnapToPeak(freqs, amps, 5.4, 0.1)
		assert.Equal(t, 5.0, p.Freq)
		assert.Equal(t, 3.0, p.Amp)
	})

	t.Run("empty grid", func(t *testing.T) {
		assert.Equal(t, Peak{}, SnapToPeak(nil, nil, 1, 1))
	})
}

func TestSnapTolerance(t *testing.T) {
	assert.Equal(t, 0.5, SnapTolerance(0.5, 10))
	assert.Equal(t, 1.0, SnapTolerance(0.5, 100))
}

func TestInterpAmplitude(t *testing.T) {
	freqs := []float64{0, 1, 2}
	amps := []float64{0, 10, 20}

	assert.InDelta(t, 5.0, InterpAmplitude(freqs, amps, 0.5), 1e-12)
	assert.InDelta(t, 0.0, InterpAmplitude(freqs, amps, -1), 1e-12)
	assert.InDelta(t, 20.0, InterpAmplitude(freqs, amps, 3), 1e-12)
	assert.Equal(t, 0.0, InterpAmplitude(nil, nil, 1))
}
