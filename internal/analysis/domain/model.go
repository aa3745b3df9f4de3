package domain

import (
	"time"

	"github.com/asterolab/lightcurve-backend/internal/signalfit"
)

// Session represents one frequency-analysis session over a light curve
type Session struct {
	SessionID      string               `json:"session_id"`
	UserID         string               `json:"user_id"`
	Target         string               `json:"target"`
	Mission        string               `json:"mission"`
	Sector         int                  `json:"sector"`
	Status         string               `json:"status"` // pending, ready, failed
	AmpUnit        string               `json:"amp_unit"`
	Oversample     int                  `json:"oversample_factor"`
	TimeShift      float64              `json:"time_shift"` // phase reference, -mean(time)
	FluxMean       float64              `json:"flux_mean"`
	FreqResolution float64              `json:"freq_resolution"`
	Nyquist        float64              `json:"nyquist"`
	SampleCount    int                  `json:"sample_count"`
	Solution       *signalfit.Solution  `json:"solution,omitempty"`
	StagedFreq     *float64             `json:"staged_freq,omitempty"` // marker parked on the periodogram
	StagedAmp      *float64             `json:"staged_amp,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	FailureReason  string               `json:"failure_reason,omitempty"`
}

// Session status constants
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// Amplitude unit constants; scale factors applied when rendering views.
const (
	UnitRelative = "relative"
	UnitPercent  = "percent"
	UnitPPT      = "ppt"
	UnitPPM      = "ppm"
)

var ampScales = map[string]float64{
	UnitRelative: 1,
	UnitPercent:  1e2,
	UnitPPT:      1e3,
	UnitPPM:      1e6,
}

// AmpScale returns the multiplier that converts relative amplitudes into
// the given display unit.
func AmpScale(unit string) (float64, error) {
	s, ok := ampScales[unit]
	if !ok {
		return 0, ErrInvalidAmpUnit
	}
	return s, nil
}

// Sample is one light-curve data point belonging to a session.
type Sample struct {
	ID        int64    `json:"id,omitempty"`
	SessionID string   `json:"session_id"`
	Time      float64  `json:"time"`
	Flux      float64  `json:"flux"`
	FluxErr   *float64 `json:"flux_err,omitempty"`
}

// LogEntry is one line of a session's action log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // info, warning, error
	Message   string    `json:"message"`
}

// CreateSessionRequest represents data needed to open a new session.
// Either Target+Mission+Sector (archive download) or inline samples.
type CreateSessionRequest struct {
	UserID     string
	Target     string
	Mission    string
	Sector     int
	AmpUnit    string
	Oversample int
	Time       []float64
	Flux       []float64
	FluxErr    []float64
}

// AddSignalRequest represents data for adding a signal or a combination.
type AddSignalRequest struct {
	Freq  *float64 // nil picks the staged marker frequency
	Amp   *float64 // nil defaults to the periodogram amplitude at Freq
	Combo string   // combination expression, e.g. "f0+2*f1"
}

// UpdateSignalRequest represents per-signal edits from the signals view.
type UpdateSignalRequest struct {
	Freq     *float64
	Amp      *float64
	Phase    *float64
	FixFreq  *bool
	FixAmp   *bool
	FixPhase *bool
	Include  *bool
}
