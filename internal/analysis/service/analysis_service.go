package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/asterolab/lightcurve-backend/config"
	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
	"github.com/asterolab/lightcurve-backend/internal/analysis/repository"
	"github.com/asterolab/lightcurve-backend/internal/archive"
	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
	"github.com/asterolab/lightcurve-backend/internal/periodogram"
	"github.com/asterolab/lightcurve-backend/internal/signalfit"
)

// View kinds accepted by the time-series and periodogram endpoints.
const (
	KindOriginal  = "original"
	KindResiduals = "residuals"
	KindModel     = "model"
	KindWindow    = "window"
)

// AnalysisService handles business logic for analysis sessions
type AnalysisService struct {
	sessions   *repository.SessionRepository
	samples    *repository.SamplesRepository
	logs       *repository.LogRepository
	archiveSvc *archive.Service
	cfg        *config.Config
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(
	sessions *repository.SessionRepository,
	samples *repository.SamplesRepository,
	logs *repository.LogRepository,
	archiveSvc *archive.Service,
	cfg *config.Config,
) *AnalysisService {
	return &AnalysisService{
		sessions:   sessions,
		samples:    samples,
		logs:       logs,
		archiveSvc: archiveSvc,
		cfg:        cfg,
	}
}

// CreateSession opens a new analysis session: obtain the light curve
// (archive download or inline samples), preprocess it, persist the samples
// and derive the frequency grid.
func (s *AnalysisService) CreateSession(ctx context.Context, req *domain.CreateSessionRequest) (*domain.Session, error) {
	logger := NewLogger(ctx)

	ampUnit := req.AmpUnit
	if ampUnit == "" {
		ampUnit = s.cfg.Analysis.AmpUnit
	}
	if _, err := domain.AmpScale(ampUnit); err != nil {
		return nil, err
	}
	oversample := req.Oversample
	if oversample <= 0 {
		oversample = s.cfg.Analysis.OversampleFactor
	}

	session := &domain.Session{
		UserID:     req.UserID,
		Target:     req.Target,
		Mission:    req.Mission,
		Sector:     req.Sector,
		Status:     domain.StatusPending,
		AmpUnit:    ampUnit,
		Oversample: oversample,
		Solution:   &signalfit.Solution{},
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	lc, err := s.obtainLightCurve(ctx, req)
	if err != nil {
		session.Status = domain.StatusFailed
		session.FailureReason = err.Error()
		if uerr := s.sessions.Update(session); uerr != nil {
			logger.LogError("create_session", uerr)
		}
		s.appendLog(session.SessionID, "error", fmt.Sprintf("light curve unavailable: %v", err))
		return session, err
	}

	grid := periodogram.NewGrid(lc, oversample)

	if err := s.samples.InsertBatch(ctx, sessionSamples(session.SessionID, lc)); err != nil {
		return nil, err
	}

	session.Status = domain.StatusReady
	session.TimeShift = -lc.MidTime()
	session.FluxMean = lc.Mean()
	session.FreqResolution = grid.Resolution
	session.Nyquist = grid.Nyquist
	session.SampleCount = lc.Len()
	now := time.Now()
	session.CompletedAt = &now

	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}

	s.appendLog(session.SessionID, "info", fmt.Sprintf(
		"session created: target=%s mission=%s sector=%d samples=%d fres=%.6g nyquist=%.6g",
		session.Target, session.Mission, session.Sector,
		session.SampleCount, session.FreqResolution, session.Nyquist))
	logger.LogInfof("create_session", "session_id=%s samples=%d", session.SessionID, session.SampleCount)

	return session, nil
}

// GetSession retrieves a session by its ID
func (s *AnalysisService) GetSession(sessionID string) (*domain.Session, error) {
	return s.sessions.GetBySessionID(sessionID)
}

// ListSessionsByUser retrieves all session IDs for a user
func (s *AnalysisService) ListSessionsByUser(userID string) ([]string, error) {
	return s.sessions.ListByUserID(userID)
}

// DeleteSession removes a session along with its samples and log
func (s *AnalysisService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	if err := s.samples.DeleteBySessionID(ctx, sessionID); err != nil {
		return err
	}
	return s.logs.Delete(sessionID)
}

// Timeseries renders the time-series view: observed flux, residuals after
// the current solution, or the model on an even time base. A positive
// foldOn folds the series on that frequency.
func (s *AnalysisService) Timeseries(ctx context.Context, sessionID, kind string, foldOn *float64) (*TimeSeriesView, error) {
	session, lc, err := s.readySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	scale, _ := domain.AmpScale(session.AmpUnit)

	var times, flux []float64
	switch kind {
	case KindOriginal, "":
		kind = KindOriginal
		times, flux = lc.Time, lc.Flux
	case KindResiduals:
		times = lc.Time
		flux = session.Solution.Residuals(lc.Time, lc.Flux, session.FluxMean)
	case KindModel:
		times = lc.Resampled(0)
		flux = session.Solution.Evaluate(times, session.FluxMean)
	default:
		return nil, domain.ErrInvalidKind
	}

	view := &TimeSeriesView{Kind: kind, Unit: session.AmpUnit}
	if foldOn != nil {
		series, err := lightcurve.New(times, flux, nil)
		if err != nil {
			return nil, err
		}
		folded, err := series.Fold(*foldOn)
		if err != nil {
			return nil, err
		}
		view.FoldedOn = foldOn
		view.Time = folded.Time
		view.Flux = scaled(folded.Flux, scale)
		return view, nil
	}

	view.Time = times
	view.Flux = scaled(flux, scale)
	return view, nil
}

// Periodogram renders one of the four spectra over the session's grid.
// Amplitudes are in the session's display unit; the spectral window is
// dimensionless and returned as-is.
func (s *AnalysisService) Periodogram(ctx context.Context, sessionID, kind string) (*PeriodogramView, error) {
	session, lc, err := s.readySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	grid := periodogram.NewGrid(lc, session.Oversample)

	view := &PeriodogramView{Kind: kind, Freq: grid.Freqs, Unit: session.AmpUnit}
	scale, _ := domain.AmpScale(session.AmpUnit)

	switch kind {
	case KindOriginal, "":
		view.Kind = KindOriginal
		view.Amp = scaled(periodogram.AmplitudeSpectrum(lc, grid.Freqs), scale)
	case KindModel:
		model := session.Solution.Evaluate(lc.Time, session.FluxMean)
		mlc, err := lightcurve.New(lc.Time, model, nil)
		if err != nil {
			return nil, err
		}
		view.Amp = scaled(periodogram.AmplitudeSpectrum(mlc, grid.Freqs), scale)
	case KindResiduals:
		view.Amp = scaled(s.residualSpectrum(session, lc, grid.Freqs), scale)
	case KindWindow:
		view.Unit = ""
		view.Amp = periodogram.SpectralWindow(lc.Time, grid.Freqs)
	default:
		return nil, domain.ErrInvalidKind
	}
	return view, nil
}

// StagePeak parks the periodogram marker: snap to the strongest nearby
// peak of the residual spectrum, or read the interpolated amplitude at
// the exact frequency. The staged values seed the next added signal.
func (s *AnalysisService) StagePeak(ctx context.Context, sessionID string, freq float64, snap bool) (*PeakView, error) {
	session, lc, err := s.readySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	grid := periodogram.NewGrid(lc, session.Oversample)
	amps := s.residualSpectrum(session, lc, grid.Freqs)

	var peak periodogram.Peak
	if snap {
		tol := periodogram.SnapTolerance(grid.Resolution, grid.Freqs[len(grid.Freqs)-1]-grid.Freqs[0])
		peak = periodogram.SnapToPeak(grid.Freqs, amps, freq, tol)
	} else {
		peak = periodogram.Peak{Freq: freq, Amp: periodogram.InterpAmplitude(grid.Freqs, amps, freq)}
	}

	session.StagedFreq = &peak.Freq
	session.StagedAmp = &peak.Amp
	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}

	scale, _ := domain.AmpScale(session.AmpUnit)
	return &PeakView{Freq: peak.Freq, Amp: peak.Amp * scale, Unit: session.AmpUnit, Snapped: snap}, nil
}

// AddSignal adds an independent signal or a combination row to the table.
// Frequencies above the Nyquist are folded back into [0, nyquist]; a
// missing amplitude defaults to the residual periodogram at that frequency.
func (s *AnalysisService) AddSignal(ctx context.Context, sessionID string, req *domain.AddSignalRequest) (*SignalView, error) {
	session, lc, err := s.readySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	scale, _ := domain.AmpScale(session.AmpUnit)

	var sig *signalfit.Signal
	if req.Combo != "" {
		sig, err = session.Solution.AddCombination(req.Combo, 0, math.NaN())
		if err != nil {
			return nil, err
		}
	} else {
		freq := 0.0
		switch {
		case req.Freq != nil:
			freq = *req.Freq
		case session.StagedFreq != nil:
			freq = *session.StagedFreq
		default:
			return nil, domain.ErrNoFrequency
		}
		freq = periodogram.SubNyquist(freq, session.Nyquist)

		sig, err = session.Solution.Add("", freq, 0, math.NaN())
		if err != nil {
			return nil, err
		}
	}

	if req.Amp != nil {
		sig.Amp = *req.Amp / scale
	} else {
		grid := periodogram.NewGrid(lc, session.Oversample)
		amps := s.residualSpectrum(session, lc, grid.Freqs)
		guess := periodogram.InterpAmplitude(grid.Freqs, amps,
			periodogram.SubNyquist(sig.Freq, session.Nyquist))
		if guess > 0 {
			sig.Amp = guess
		}
	}

	// The marker is consumed by the add
	session.StagedFreq = nil
	session.StagedAmp = nil
	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}

	s.appendLog(sessionID, "info", fmt.Sprintf("signal %s added: freq=%.6g amp=%.6g",
		sig.Label, sig.Freq, sig.Amp))

	view := signalView(sig, scale)
	return &view, nil
}

// UpdateSignal applies per-row edits from the signals view.
func (s *AnalysisService) UpdateSignal(ctx context.Context, sessionID, label string, req *domain.UpdateSignalRequest) (*SignalView, error) {
	session, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	sig, ok := session.Solution.Get(label)
	if !ok {
		return nil, signalfit.ErrSignalNotFound
	}
	scale, _ := domain.AmpScale(session.AmpUnit)

	if req.Freq != nil && !sig.Combo {
		sig.Freq = *req.Freq
		sig.FreqErr = 0
	}
	if req.Amp != nil {
		sig.Amp = *req.Amp / scale
		sig.AmpErr = 0
	}
	if req.Phase != nil {
		sig.Phase = *req.Phase
		sig.PhaseErr = 0
	}
	if req.FixFreq != nil {
		sig.FixFreq = *req.FixFreq
	}
	if req.FixAmp != nil {
		sig.FixAmp = *req.FixAmp
	}
	if req.FixPhase != nil {
		sig.FixPhase = *req.FixPhase
	}
	if req.Include != nil {
		sig.Include = *req.Include
	}
	session.Solution.RefreshCombos()

	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}
	s.appendLog(sessionID, "info", fmt.Sprintf("signal %s updated: freq=%.6g amp=%.6g include=%t",
		sig.Label, sig.Freq, sig.Amp, sig.Include))

	view := signalView(sig, scale)
	return &view, nil
}

// DeleteSignal removes a signal; combinations referencing it go with it.
func (s *AnalysisService) DeleteSignal(ctx context.Context, sessionID, label string) error {
	session, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		return err
	}
	if err := session.Solution.Delete(label); err != nil {
		return err
	}
	if err := s.sessions.Update(session); err != nil {
		return err
	}
	s.appendLog(sessionID, "info", fmt.Sprintf("signal %s deleted", label))
	return nil
}

// ListSignals returns the signals table in the session's display unit.
func (s *AnalysisService) ListSignals(ctx context.Context, sessionID string) ([]SignalView, error) {
	session, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	scale, _ := domain.AmpScale(session.AmpUnit)
	return signalViews(session.Solution, scale), nil
}

// RefineFit runs the two-stage least-squares refinement of the current
// solution against the stored samples.
func (s *AnalysisService) RefineFit(ctx context.Context, sessionID string) (*FitResultView, error) {
	logger := NewLogger(ctx)

	session, lc, err := s.readySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := signalfit.Fit(lc.Time, lc.Flux, session.Solution); err != nil {
		s.appendLog(sessionID, "error", fmt.Sprintf("fit failed: %v", err))
		logger.LogError("refine_fit", err)
		return nil, err
	}

	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}

	resid := session.Solution.Residuals(lc.Time, lc.Flux, session.FluxMean)
	residStd := stddev(resid)
	scale, _ := domain.AmpScale(session.AmpUnit)

	s.appendLog(sessionID, "info", fmt.Sprintf("fit refined: signals=%d residual_std=%.6g",
		len(session.Solution.Included()), residStd))
	logger.LogInfof("refine_fit", "session_id=%s signals=%d", sessionID, len(session.Solution.Signals))

	return &FitResultView{
		Signals:     signalViews(session.Solution, scale),
		ResidualStd: residStd * scale,
		Unit:        session.AmpUnit,
	}, nil
}

// Log returns the session's action log, oldest first.
func (s *AnalysisService) Log(sessionID string, limit int) ([]domain.LogEntry, error) {
	if _, err := s.sessions.GetBySessionID(sessionID); err != nil {
		return nil, err
	}
	return s.logs.List(sessionID, limit)
}

// Summary bundles the session, the signals table and the log tail.
func (s *AnalysisService) Summary(ctx context.Context, sessionID string) (*SummaryView, error) {
	session, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	scale, _ := domain.AmpScale(session.AmpUnit)

	entries, err := s.logs.List(sessionID, 20)
	if err != nil {
		return nil, err
	}

	return &SummaryView{
		Session: session,
		Signals: signalViews(session.Solution, scale),
		Log:     entries,
	}, nil
}

// obtainLightCurve prefers inline samples, then the archive download.
// Both paths run the same preprocessing pipeline.
func (s *AnalysisService) obtainLightCurve(ctx context.Context, req *domain.CreateSessionRequest) (*lightcurve.LightCurve, error) {
	if len(req.Time) > 0 {
		lc, err := lightcurve.New(req.Time, req.Flux, req.FluxErr)
		if err != nil {
			return nil, err
		}
		lc = lc.Normalize()
		if s.cfg.Analysis.FlattenWindowDays > 0 {
			lc = lc.Flatten(s.cfg.Analysis.FlattenWindowDays)
		}
		if s.cfg.Analysis.ClipSigma > 0 {
			lc = lc.ClipOutliers(s.cfg.Analysis.ClipSigma)
		}
		return lc, nil
	}
	return s.archiveSvc.GetLightCurve(ctx, req.Target, req.Mission, req.Sector)
}

// readySession loads a session and its samples, rejecting sessions that
// never reached ready.
func (s *AnalysisService) readySession(ctx context.Context, sessionID string) (*domain.Session, *lightcurve.LightCurve, error) {
	session, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != domain.StatusReady {
		return nil, nil, domain.ErrSessionNotReady
	}
	if session.Solution == nil {
		session.Solution = &signalfit.Solution{}
	}

	samples, err := s.samples.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if len(samples) == 0 {
		return nil, nil, domain.ErrNoSamples
	}

	times := make([]float64, len(samples))
	flux := make([]float64, len(samples))
	var errs []float64
	hasErrs := true
	for _, sm := range samples {
		if sm.FluxErr == nil {
			hasErrs = false
			break
		}
	}
	if hasErrs {
		errs = make([]float64, len(samples))
	}
	for i, sm := range samples {
		times[i] = sm.Time
		flux[i] = sm.Flux
		if hasErrs {
			errs[i] = *sm.FluxErr
		}
	}

	lc, err := lightcurve.New(times, flux, errs)
	if err != nil {
		return nil, nil, err
	}
	return session, lc, nil
}

func (s *AnalysisService) residualSpectrum(session *domain.Session, lc *lightcurve.LightCurve, freqs []float64) []float64 {
	if len(session.Solution.Included()) == 0 {
		return periodogram.AmplitudeSpectrum(lc, freqs)
	}
	resid := session.Solution.Residuals(lc.Time, lc.Flux, session.FluxMean)
	rlc, err := lightcurve.New(lc.Time, resid, nil)
	if err != nil {
		return periodogram.AmplitudeSpectrum(lc, freqs)
	}
	return periodogram.AmplitudeSpectrum(rlc, freqs)
}

func (s *AnalysisService) appendLog(sessionID, level, message string) {
	if err := s.logs.Append(sessionID, domain.LogEntry{Level: level, Message: message}); err != nil {
		log.Printf("[warn] failed to append session log: %v", err)
	}
}

func sessionSamples(sessionID string, lc *lightcurve.LightCurve) []domain.Sample {
	samples := make([]domain.Sample, lc.Len())
	for i := range samples {
		samples[i] = domain.Sample{
			SessionID: sessionID,
			Time:      lc.Time[i],
			Flux:      lc.Flux[i],
		}
		if lc.FluxErr != nil {
			e := lc.FluxErr[i]
			samples[i].FluxErr = &e
		}
	}
	return samples
}

func scaled(values []float64, scale float64) []float64 {
	if scale == 1 {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * scale
	}
	return out
}

func stddev(v []float64) float64 {
	if len(v) == 0 {
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
	return math.Sqrt(ss / float64(len(v)))
}
