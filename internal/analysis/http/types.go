package http

import (
	"github.com/asterolab/lightcurve-backend/internal/analysis/service"
)

// Handler handles HTTP requests for analysis sessions
type Handler struct {
	svc *service.AnalysisService
}

// New creates a new Handler
func New(svc *service.AnalysisService) *Handler {
	return &Handler{svc: svc}
}

type createSessionRequest struct {
	Target     string    `json:"target"`
	Mission    string    `json:"mission"`
	Sector     int       `json:"sector"`
	AmpUnit    string    `json:"amp_unit,omitempty"`
	Oversample int       `json:"oversample_factor,omitempty"`
	Time       []float64 `json:"time,omitempty"`
	Flux       []float64 `json:"flux,omitempty"`
	FluxErr    []float64 `json:"flux_err,omitempty"`
}

type addSignalRequest struct {
	Freq  *float64 `json:"freq,omitempty"`
	Amp   *float64 `json:"amp,omitempty"`
	Combo string   `json:"combo,omitempty"`
}

type updateSignalRequest struct {
	Freq     *float64 `json:"freq,omitempty"`
	Amp      *float64 `json:"amp,omitempty"`
	Phase    *float64 `json:"phase,omitempty"`
	FixFreq  *bool    `json:"fix_freq,omitempty"`
	FixAmp   *bool    `json:"fix_amp,omitempty"`
	FixPhase *bool    `json:"fix_phase,omitempty"`
	Include  *bool    `json:"include,omitempty"`
}
