package service

import (
	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
	"github.com/asterolab/lightcurve-backend/internal/signalfit"
)

// TimeSeriesView is the time-series tab payload: observed flux, residuals,
// or the evenly resampled model, optionally folded on a frequency.
type TimeSeriesView struct {
	Kind     string    `json:"kind"`
	FoldedOn *float64  `json:"folded_on,omitempty"`
	Time     []float64 `json:"time"` // phases in [0,1) when folded
	Flux     []float64 `json:"flux"`
	Unit     string    `json:"unit"`
}

// PeriodogramView is the periodogram tab payload for one spectrum kind.
type PeriodogramView struct {
	Kind string    `json:"kind"`
	Unit string    `json:"unit"`
	Freq []float64 `json:"freq"`
	Amp  []float64 `json:"amp"`
}

// PeakView is a staged periodogram marker.
type PeakView struct {
	Freq    float64 `json:"freq"`
	Amp     float64 `json:"amp"`
	Unit    string  `json:"unit"`
	Snapped bool    `json:"snapped"`
}

// SignalView is one row of the signals table, amplitudes in the session's
// display unit.
type SignalView struct {
	Label    string  `json:"label"`
	Freq     float64 `json:"freq"`
	FreqErr  float64 `json:"freq_err"`
	FixFreq  bool    `json:"fix_freq"`
	Amp      float64 `json:"amp"`
	AmpErr   float64 `json:"amp_err"`
	FixAmp   bool    `json:"fix_amp"`
	Phase    float64 `json:"phase"`
	PhaseErr float64 `json:"phase_err"`
	FixPhase bool    `json:"fix_phase"`
	Include  bool    `json:"include"`
	Combo    bool    `json:"combo"`
}

// FitResultView summarizes a completed fit refinement.
type FitResultView struct {
	Signals     []SignalView `json:"signals"`
	ResidualStd float64      `json:"residual_std"`
	Unit        string       `json:"unit"`
}

// SummaryView bundles the session, its signals table and the log tail.
type SummaryView struct {
	Session *domain.Session   `json:"session"`
	Signals []SignalView      `json:"signals"`
	Log     []domain.LogEntry `json:"log"`
}

func signalView(sig *signalfit.Signal, scale float64) SignalView {
	return SignalView{
		Label:    sig.Label,
		Freq:     sig.Freq,
		FreqErr:  sig.FreqErr,
		FixFreq:  sig.FixFreq,
		Amp:      sig.Amp * scale,
		AmpErr:   sig.AmpErr * scale,
		FixAmp:   sig.FixAmp,
		Phase:    sig.Phase,
		PhaseErr: sig.PhaseErr,
		FixPhase: sig.FixPhase,
		Include:  sig.Include,
		Combo:    sig.Combo,
	}
}

func signalViews(sol *signalfit.Solution, scale float64) []SignalView {
	views := make([]SignalView, 0, len(sol.Signals))
	for i := range sol.Signals {
		views = append(views, signalView(&sol.Signals[i], scale))
	}
	return views
}
