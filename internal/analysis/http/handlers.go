package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
	"github.com/asterolab/lightcurve-backend/internal/archive"
	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
	"github.com/asterolab/lightcurve-backend/internal/signalfit"
)

// CreateSession opens a new analysis session
func (h *Handler) CreateSession(c *gin.Context) {
	userID := c.GetHeader("X-User-Id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var body createSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Target == "" && len(body.Time) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target or inline samples required"})
		return
	}

	req := &domain.CreateSessionRequest{
		UserID:     userID,
		Target:     body.Target,
		Mission:    body.Mission,
		Sector:     body.Sector,
		AmpUnit:    body.AmpUnit,
		Oversample: body.Oversample,
		Time:       body.Time,
		Flux:       body.Flux,
		FluxErr:    body.FluxErr,
	}

	session, err := h.svc.CreateSession(c.Request.Context(), req)
	if err != nil {
		// A failed download still leaves a failed session behind, so
		// return it alongside the error status when we have one.
		status, msg := errStatus(err)
		if session != nil {
			c.JSON(status, gin.H{"error": msg, "session": session})
			return
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GetSession retrieves an analysis session by ID
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.svc.GetSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// ListSessions lists the current user's session IDs
func (h *Handler) ListSessions(c *gin.Context) {
	userID := c.GetHeader("X-User-Id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	sessionIDs, err := h.svc.ListSessionsByUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessionIDs})
}

// DeleteSession deletes a session with its samples and log
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.svc.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted successfully"})
}

// GetTimeseries renders the time-series view
func (h *Handler) GetTimeseries(c *gin.Context) {
	var foldOn *float64
	if raw := c.Query("fold_on"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fold_on"})
			return
		}
		foldOn = &f
	}

	view, err := h.svc.Timeseries(c.Request.Context(), c.Param("id"), c.Query("kind"), foldOn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetPeriodogram renders one of the periodogram spectra
func (h *Handler) GetPeriodogram(c *gin.Context) {
	view, err := h.svc.Periodogram(c.Request.Context(), c.Param("id"), c.Query("kind"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StagePeak parks the periodogram marker at (or near) a frequency
func (h *Handler) StagePeak(c *gin.Context) {
	freq, err := strconv.ParseFloat(c.Query("freq"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "freq query parameter is required"})
		return
	}
	snap := true
	if raw := c.Query("snap"); raw != "" {
		snap, err = strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snap"})
			return
		}
	}

	peak, err := h.svc.StagePeak(c.Request.Context(), c.Param("id"), freq, snap)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, peak)
}

// AddSignal adds a signal or a combination to the signals table
func (h *Handler) AddSignal(c *gin.Context) {
	var body addSignalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req := &domain.AddSignalRequest{Freq: body.Freq, Amp: body.Amp, Combo: body.Combo}
	sig, err := h.svc.AddSignal(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"signal": sig})
}

// UpdateSignal applies row edits from the signals view
func (h *Handler) UpdateSignal(c *gin.Context) {
	var body updateSignalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req := &domain.UpdateSignalRequest{
		Freq:     body.Freq,
		Amp:      body.Amp,
		Phase:    body.Phase,
		FixFreq:  body.FixFreq,
		FixAmp:   body.FixAmp,
		FixPhase: body.FixPhase,
		Include:  body.Include,
	}

	sig, err := h.svc.UpdateSignal(c.Request.Context(), c.Param("id"), c.Param("label"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": sig})
}

// DeleteSignal removes a signal row
func (h *Handler) DeleteSignal(c *gin.Context) {
	if err := h.svc.DeleteSignal(c.Request.Context(), c.Param("id"), c.Param("label")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signal deleted successfully"})
}

// ListSignals returns the signals table
func (h *Handler) ListSignals(c *gin.Context) {
	signals, err := h.svc.ListSignals(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

// RefineFit runs the least-squares refinement
func (h *Handler) RefineFit(c *gin.Context) {
	result, err := h.svc.RefineFit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetLog returns the session action log
func (h *Handler) GetLog(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.svc.Log(c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": entries})
}

// GetSummary returns the combined session/signals/log payload
func (h *Handler) GetSummary(c *gin.Context) {
	view, err := h.svc.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func respondError(c *gin.Context, err error) {
	status, msg := errStatus(err)
	c.JSON(status, gin.H{"error": msg})
}

// errStatus maps service errors to HTTP statuses
func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, signalfit.ErrSignalNotFound),
		errors.Is(err, archive.ErrTargetNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, archive.ErrArchiveUnavailable):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, domain.ErrSessionNotReady):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidAmpUnit),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrNoFrequency),
		errors.Is(err, signalfit.ErrDuplicateLabel),
		errors.Is(err, signalfit.ErrBadCombo),
		errors.Is(err, signalfit.ErrNothingToFit),
		errors.Is(err, lightcurve.ErrInvalidFrequency),
		errors.Is(err, lightcurve.ErrTooFewSamples),
		errors.Is(err, lightcurve.ErrLengthMismatch),
		errors.Is(err, lightcurve.ErrNonIncreasingTime):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
