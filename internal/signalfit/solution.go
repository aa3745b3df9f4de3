package signalfit

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrSignalNotFound = errors.New("signalfit: signal not found")
	ErrDuplicateLabel = errors.New("signalfit: signal label already in use")
	ErrNothingToFit   = errors.New("signalfit: no signals included in the fit")
)

// Signal is one row of the frequency solution. Freq is in cycles per day,
// Amp in relative flux units, Phase in cycles [0,1). The Fix flags hold a
// parameter constant during fitting; Include selects the row for the model.
// Combo marks rows whose frequency is an arithmetic combination of other
// rows (the label is the expression itself, e.g. "f0+2*f1").
type Signal struct {
	Label    string  `json:"label"`
	Freq     float64 `json:"freq"`
	FixFreq  bool    `json:"fix_freq"`
	FreqErr  float64 `json:"freq_err"`
	Amp      float64 `json:"amp"`
	FixAmp   bool    `json:"fix_amp"`
	AmpErr   float64 `json:"amp_err"`
	Phase    float64 `json:"phase"`
	FixPhase bool    `json:"fix_phase"`
	PhaseErr float64 `json:"phase_err"`
	Include  bool    `json:"include"`
	Combo    bool    `json:"combo"`
}

// Solution is the ordered signal table of an analysis session.
type Solution struct {
	Signals []Signal `json:"signals"`
}

// NextLabel returns the first unused independent signal label (f0, f1, ...).
func (s *Solution) NextLabel() string {
	for n := 0; ; n++ {
		label := fmt.Sprintf("f%d", n)
		if _, ok := s.Get(label); !ok {
			return label
		}
	}
}

// Get returns the signal with the given label.
func (s *Solution) Get(label string) (*Signal, bool) {
	for i := range s.Signals {
		if s.Signals[i].Label == label {
			return &s.Signals[i], true
		}
	}
	return nil, false
}

// Add appends an independent signal. An empty label is assigned the next
// free one. Default phase is 0.5 and default amplitude 1, matching how a
// freshly staged signal enters the table before fitting.
func (s *Solution) Add(label string, freq, amp, phase float64) (*Signal, error) {
	if label == "" {
		label = s.NextLabel()
	}
	if _, ok := s.Get(label); ok {
		return nil, ErrDuplicateLabel
	}
	if amp == 0 {
		amp = 1
	}
	if math.IsNaN(phase) {
		phase = 0.5
	}

	s.Signals = append(s.Signals, Signal{
		Label:   label,
		Freq:    freq,
		Amp:     amp,
		Phase:   phase,
		Include: true,
	})
	return &s.Signals[len(s.Signals)-1], nil
}

// AddCombination appends a signal whose frequency is defined by an
// arithmetic expression over existing labels. The expression doubles as
// the row label.
func (s *Solution) AddCombination(expr string, amp, phase float64) (*Signal, error) {
	freq, err := EvalCombo(expr, s.lookup)
	if err != nil {
		return nil, err
	}
	if _, ok := s.Get(expr); ok {
		return nil, ErrDuplicateLabel
	}
	if amp == 0 {
		amp = 1
	}
	if math.IsNaN(phase) {
		phase = 0.5
	}

	s.Signals = append(s.Signals, Signal{
		Label:   expr,
		Freq:    freq,
		Amp:     amp,
		Phase:   phase,
		Include: true,
		Combo:   true,
	})
	return &s.Signals[len(s.Signals)-1], nil
}

// Delete removes the signals with the given labels. Combination rows that
// reference a deleted label are removed as well, since their frequency
// can no longer be evaluated.
func (s *Solution) Delete(labels ...string) error {
	drop := make(map[string]bool, len(labels))
	for _, l := range labels {
		if _, ok := s.Get(l); !ok {
			return fmt.Errorf("%w: %s", ErrSignalNotFound, l)
		}
		drop[l] = true
	}

	for _, sig := range s.Signals {
		if !sig.Combo {
			continue
		}
		for _, dep := range ComboTerms(sig.Label) {
			if drop[dep] {
				drop[sig.Label] = true
				break
			}
		}
	}

	kept := s.Signals[:0]
	for _, sig := range s.Signals {
		if !drop[sig.Label] {
			kept = append(kept, sig)
		}
	}
	s.Signals = kept
	return nil
}

// Included returns the rows selected for the model fit.
func (s *Solution) Included() []*Signal {
	var out []*Signal
	for i := range s.Signals {
		if s.Signals[i].Include {
			out = append(out, &s.Signals[i])
		}
	}
	return out
}

// RefreshCombos re-evaluates the frequency of every combination row from
// the current independent frequencies.
func (s *Solution) RefreshCombos() {
	for i := range s.Signals {
		if !s.Signals[i].Combo {
			continue
		}
		if f, err := EvalCombo(s.Signals[i].Label, s.lookup); err == nil {
			s.Signals[i].Freq = f
		}
	}
}

func (s *Solution) lookup(label string) (float64, bool) {
	sig, ok := s.Get(label)
	if !ok {
		return 0, false
	}
	return sig.Freq, true
}

// Evaluate computes the model flux mean + sum of sinusoids at the given
// times for all included signals.
func (s *Solution) Evaluate(times []float64, mean float64) []float64 {
	out := make([]float64, len(times))
	for i := range out {
		out[i] = mean
	}
	for _, sig := range s.Included() {
		for i, t := range times {
			out[i] += sig.Amp * math.Sin(2*math.Pi*(sig.Freq*t+sig.Phase))
		}
	}
	return out
}

// Residuals returns flux minus the evaluated model.
func (s *Solution) Residuals(times, flux []float64, mean float64) []float64 {
	model := s.Evaluate(times, mean)
	out := make([]float64, len(flux))
	for i := range flux {
		out[i] = flux[i] - model[i]
	}
	return out
}
