package lightcurve

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrTooFewSamples     = errors.New("lightcurve: at least two samples required")
	ErrLengthMismatch    = errors.New("lightcurve: time, flux and flux_err lengths must match")
	ErrNonIncreasingTime = errors.New("lightcurve: time values must be strictly increasing")
	ErrInvalidFrequency  = errors.New("lightcurve: fold frequency must be positive")
)

// LightCurve is a set of brightness samples for a single target.
// Time is in days, Flux is relative brightness. FluxErr is optional
// (nil when the source provides no uncertainties).
type LightCurve struct {
	Time    []float64 `json:"time"`
	Flux    []float64 `json:"flux"`
	FluxErr []float64 `json:"flux_err,omitempty"`
}

// New builds a LightCurve from parallel slices. Samples with NaN or Inf
// flux are dropped. Time must be strictly increasing after the drop.
func New(t, flux, fluxErr []float64) (*LightCurve, error) {
	if len(t) != len(flux) {
		return nil, ErrLengthMismatch
	}
	if fluxErr != nil && len(fluxErr) != len(flux) {
		return nil, ErrLengthMismatch
	}

	lc := &LightCurve{
		Time: make([]float64, 0, len(t)),
		Flux: make([]float64, 0, len(flux)),
	}
	if fluxErr != nil {
		lc.FluxErr = make([]float64, 0, len(fluxErr))
	}

	for i := range flux {
		if math.IsNaN(flux[i]) || math.IsInf(flux[i], 0) {
			continue
		}
		lc.Time = append(lc.Time, t[i])
		lc.Flux = append(lc.Flux, flux[i])
		if fluxErr != nil {
			lc.FluxErr = append(lc.FluxErr, fluxErr[i])
		}
	}

	if len(lc.Time) < 2 {
		return nil, ErrTooFewSamples
	}
	for i := 1; i < len(lc.Time); i++ {
		if lc.Time[i] <= lc.Time[i-1] {
			return nil, ErrNonIncreasingTime
		}
	}

	return lc, nil
}

// Len returns the number of samples.
func (lc *LightCurve) Len() int { return len(lc.Time) }

// Span returns the total baseline in days.
func (lc *LightCurve) Span() float64 {
	return lc.Time[len(lc.Time)-1] - lc.Time[0]
}

// Mean returns the mean flux.
func (lc *LightCurve) Mean() float64 {
	var sum float64
	for _, v := range lc.Flux {
		sum += v
	}
	return sum / float64(len(lc.Flux))
}

// Median returns the median flux.
func (lc *LightCurve) Median() float64 {
	return median(lc.Flux)
}

// MedianCadence returns the median time step between consecutive samples.
// The Nyquist frequency of unevenly sampled data is approximated from it.
func (lc *LightCurve) MedianCadence() float64 {
	diffs := make([]float64, len(lc.Time)-1)
	for i := 1; i < len(lc.Time); i++ {
		diffs[i-1] = lc.Time[i] - lc.Time[i-1]
	}
	return median(diffs)
}

// MidTime returns the mean of the time values. Phases are referenced to it
// so that fitted phases stay well behaved.
func (lc *LightCurve) MidTime() float64 {
	var sum float64
	for _, t := range lc.Time {
		sum += t
	}
	return sum / float64(len(lc.Time))
}

// Normalize returns a copy scaled to relative variation: flux divided by
// its median, with the mean removed. Flux errors are scaled by the same
// factor.
func (lc *LightCurve) Normalize() *LightCurve {
	med := lc.Median()
	if med == 0 {
		med = 1
	}

	out := lc.clone()
	for i := range out.Flux {
		out.Flux[i] = lc.Flux[i] / med
	}
	mean := out.Mean()
	for i := range out.Flux {
		out.Flux[i] -= mean
	}
	if out.FluxErr != nil {
		for i := range out.FluxErr {
			out.FluxErr[i] = math.Abs(out.FluxErr[i] / med)
		}
	}
	return out
}

// MeanSubtracted returns a copy with the mean flux removed.
func (lc *LightCurve) MeanSubtracted() *LightCurve {
	mean := lc.Mean()
	out := lc.clone()
	for i := range out.Flux {
		out.Flux[i] -= mean
	}
	return out
}

// Flatten removes slow instrumental trends by subtracting a running median
// computed over a time window of the given width in days. The global mean
// is preserved.
func (lc *LightCurve) Flatten(windowDays float64) *LightCurve {
	if windowDays <= 0 || lc.Len() < 3 {
		return lc.clone()
	}

	mean := lc.Mean()
	trend := runningMedian(lc.Time, lc.Flux, windowDays)

	out := lc.clone()
	for i := range out.Flux {
		out.Flux[i] = lc.Flux[i] - trend[i] + mean
	}
	return out
}

// ClipOutliers iteratively removes samples more than sigma standard
// deviations from the median flux. It stops once a pass removes nothing,
// and never clips below two samples.
func (lc *LightCurve) ClipOutliers(sigma float64) *LightCurve {
	if sigma <= 0 {
		return lc.clone()
	}

	out := lc.clone()
	for {
		med := median(out.Flux)
		sd := stddev(out.Flux)
		if sd == 0 {
			return out
		}

		keep := make([]bool, len(out.Flux))
		kept := 0
		for i, v := range out.Flux {
			if math.Abs(v-med) <= sigma*sd {
				keep[i] = true
				kept++
			}
		}
		if kept == len(out.Flux) || kept < 2 {
			return out
		}
		out = out.filter(keep)
	}
}

// Fold phases the light curve on the given frequency (cycles per day).
// The returned Time holds phases in [0,1), ordered by phase.
func (lc *LightCurve) Fold(freq float64) (*LightCurve, error) {
	if freq <= 0 {
		return nil, ErrInvalidFrequency
	}

	type sample struct {
		phase, flux, fluxErr float64
	}
	samples := make([]sample, lc.Len())
	for i := range lc.Time {
		p := math.Mod(lc.Time[i]*freq, 1)
		if p < 0 {
			p += 1
		}
		s := sample{phase: p, flux: lc.Flux[i]}
		if lc.FluxErr != nil {
			s.fluxErr = lc.FluxErr[i]
		}
		samples[i] = s
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].phase < samples[j].phase })

	out := &LightCurve{
		Time: make([]float64, len(samples)),
		Flux: make([]float64, len(samples)),
	}
	if lc.FluxErr != nil {
		out.FluxErr = make([]float64, len(samples))
	}
	for i, s := range samples {
		out.Time[i] = s.phase
		out.Flux[i] = s.flux
		if out.FluxErr != nil {
			out.FluxErr[i] = s.fluxErr
		}
	}
	return out, nil
}

// Resampled returns an evenly spaced time base covering the observed span
// with step dt. Used for displaying the model through gaps in the data.
func (lc *LightCurve) Resampled(dt float64) []float64 {
	if dt <= 0 {
		dt = lc.MedianCadence()
	}
	start := lc.Time[0]
	end := lc.Time[len(lc.Time)-1]
	n := int(math.Floor((end-start)/dt)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*dt
	}
	return out
}

func (lc *LightCurve) clone() *LightCurve {
	out := &LightCurve{
		Time: append([]float64(nil), lc.Time...),
		Flux: append([]float64(nil), lc.Flux...),
	}
	if lc.FluxErr != nil {
		out.FluxErr = append([]float64(nil), lc.FluxErr...)
	}
	return out
}

func (lc *LightCurve) filter(keep []bool) *LightCurve {
	out := &LightCurve{}
	if lc.FluxErr != nil {
		out.FluxErr = make([]float64, 0, len(keep))
	}
	for i, k := range keep {
		if !k {
			continue
		}
		out.Time = append(out.Time, lc.Time[i])
		out.Flux = append(out.Flux, lc.Flux[i])
		if lc.FluxErr != nil {
			out.FluxErr = append(out.FluxErr, lc.FluxErr[i])
		}
	}
	return out
}

// runningMedian computes, for every sample, the median flux of all samples
// within windowDays/2 in time. A two-pointer sweep keeps the window.
func runningMedian(t, flux []float64, windowDays float64) []float64 {
	half := windowDays / 2
	out := make([]float64, len(t))
	lo, hi := 0, 0
	for i := range t {
		for lo < len(t) && t[lo] < t[i]-half {
			lo++
		}
		if hi < lo {
			hi = lo
		}
		for hi < len(t) && t[hi] <= t[i]+half {
			hi++
		}
		out[i] = median(flux[lo:hi])
	}
	return out
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

func stddev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))

	var ss float64
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(v)-1))
}
