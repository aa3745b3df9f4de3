package unit

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterolab/lightcurve-backend/config"
	analysishttp "github.com/asterolab/lightcurve-backend/internal/analysis/http"
	"github.com/asterolab/lightcurve-backend/internal/analysis/repository"
	"github.com/asterolab/lightcurve-backend/internal/analysis/service"
	"github.com/asterolab/lightcurve-backend/internal/archive"
	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
)

type handlerFixture struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	db     *sql.DB
}

func setupAnalysisHandler(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	_, client := setupRedis(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Analysis.OversampleFactor = 10
	cfg.Analysis.AmpUnit = "ppt"

	archiveSvc := archive.NewService(archive.NewClient("http://127.0.0.1:1", "", 1, 1), client, cfg)
	svc := service.NewAnalysisService(
		repository.NewSessionRepository(client),
		repository.NewSamplesRepository(db),
		repository.NewLogRepository(client),
		archiveSvc,
		cfg,
	)

	router := gin.New()
	analysishttp.New(svc).Register(router.Group("/api/v1"))

	return &handlerFixture{router: router, mock: mock, db: db}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

// syntheticSeries is a sinusoid riding on a unit continuum, the shape the
// preprocessing expects from raw photometry.
func syntheticSeries() ([]float64, []float64) {
	n := 60
	times := make([]float64, n)
	flux := make([]float64, n)
	for i := range times {
		x := float64(i) * 0.02
		times[i] = x
		flux[i] = 1.0 + 0.01*math.Sin(2*math.Pi*(3.0*x+0.3))
	}
	return times, flux
}

// processedSeries mirrors what the service persists for inline samples
// when flattening and clipping are disabled.
func processedSeries(t *testing.T) *lightcurve.LightCurve {
	t.Helper()
	times, flux := syntheticSeries()
	lc, err := lightcurve.New(times, flux, nil)
	require.NoError(t, err)
	return lc.Normalize()
}

func (f *handlerFixture) expectInsert(n int) {
	f.mock.ExpectBegin()
	prep := f.mock.ExpectPrepare(`INSERT INTO lightcurve_samples`)
	for i := 0; i < n; i++ {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	f.mock.ExpectCommit()
}

func (f *handlerFixture) expectSamplesQuery(t *testing.T, sessionID string) {
	lc := processedSeries(t)
	rows := sqlmock.NewRows([]string{"id", "session_id", "time", "flux", "flux_err"})
	for i := range lc.Time {
		rows.AddRow(int64(i+1), sessionID, lc.Time[i], lc.Flux[i], nil)
	}
	f.mock.ExpectQuery(`SELECT id, session_id, time, flux, flux_err`).
		WithArgs(sessionID).
		WillReturnRows(rows)
}

func TestAnalysisHandler_CreateValidation(t *testing.T) {
	f := setupAnalysisHandler(t)

	t.Run("rejects missing user header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("{}"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects body without target or samples", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects bad amplitude unit", func(t *testing.T) {
		times, flux := syntheticSeries()
		rr := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
			"time": times, "flux": flux, "amp_unit": "furlongs",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAnalysisHandler_SessionFlow(t *testing.T) {
	f := setupAnalysisHandler(t)

	times, flux := syntheticSeries()

	// create with inline samples
	f.expectInsert(len(times))
	rr := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"time": times, "flux": flux,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Session struct {
			SessionID   string  `json:"session_id"`
			Status      string  `json:"status"`
			AmpUnit     string  `json:"amp_unit"`
			Nyquist     float64 `json:"nyquist"`
			SampleCount int     `json:"sample_count"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	sid := created.Session.SessionID
	require.NotEmpty(t, sid)
	assert.Equal(t, "ready", created.Session.Status)
	assert.Equal(t, "ppt", created.Session.AmpUnit)
	assert.Equal(t, len(times), created.Session.SampleCount)
	assert.InDelta(t, 25.0, created.Session.Nyquist, 0.1)

	// session appears in the user's list
	rr = f.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), sid)

	// original periodogram peaks near the planted frequency, in ppt
	f.expectSamplesQuery(t, sid)
	rr = f.do(t, http.MethodGet, "/api/v1/sessions/"+sid+"/periodogram?kind=original", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var pg struct {
		Kind string    `json:"kind"`
		Unit string    `json:"unit"`
		Freq []float64 `json:"freq"`
		Amp  []float64 `json:"amp"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pg))
	assert.Equal(t, "original", pg.Kind)
	assert.Equal(t, "ppt", pg.Unit)

	best := 0
	for i, a := range pg.Amp {
		if a > pg.Amp[best] {
			best = i
		}
	}
	assert.InDelta(t, 3.0, pg.Freq[best], 0.15)
	assert.InDelta(t, 10.0, pg.Amp[best], 1.0)

	// snap the marker near the peak
	f.expectSamplesQuery(t, sid)
	rr = f.do(t, http.MethodGet, "/api/v1/sessions/"+sid+"/periodogram/peak?freq=2.8&snap=true", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var peak struct {
		Freq float64 `json:"freq"`
		Amp  float64 `json:"amp"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &peak))
	assert.InDelta(t, 3.0, peak.Freq, 0.15)

	// add the signal from the staged marker
	f.expectSamplesQuery(t, sid)
	rr = f.do(t, http.MethodPost, "/api/v1/sessions/"+sid+"/signals", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var added struct {
		Signal struct {
			Label string  `json:"label"`
			Freq  float64 `json:"freq"`
		} `json:"signal"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))
	assert.Equal(t, "f0", added.Signal.Label)

	// refine the fit
	f.expectSamplesQuery(t, sid)
	rr = f.do(t, http.MethodPost, "/api/v1/sessions/"+sid+"/fit", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var fit struct {
		Signals []struct {
			Freq  float64 `json:"freq"`
			Amp   float64 `json:"amp"`
			Phase float64 `json:"phase"`
		} `json:"signals"`
		Unit string `json:"unit"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fit))
	require.Len(t, fit.Signals, 1)
	assert.InDelta(t, 3.0, fit.Signals[0].Freq, 1e-3)
	assert.InDelta(t, 10.0, fit.Signals[0].Amp, 0.3)
	assert.GreaterOrEqual(t, fit.Signals[0].Phase, 0.0)
	assert.Less(t, fit.Signals[0].Phase, 1.0)

	// residual time series folds on the fitted frequency
	f.expectSamplesQuery(t, sid)
	rr = f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/sessions/%s/timeseries?kind=residuals&fold_on=%g", sid, fit.Signals[0].Freq), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var ts struct {
		Kind string    `json:"kind"`
		Time []float64 `json:"time"`
		Flux []float64 `json:"flux"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ts))
	assert.Equal(t, "residuals", ts.Kind)
	require.NotEmpty(t, ts.Time)
	assert.Less(t, ts.Time[len(ts.Time)-1], 1.0)

	// the log recorded the mutations
	rr = f.do(t, http.MethodGet, "/api/v1/sessions/"+sid+"/log", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "session created")
	assert.Contains(t, rr.Body.String(), "signal f0 added")
	assert.Contains(t, rr.Body.String(), "fit refined")

	// summary bundles session, signals and log
	rr = f.do(t, http.MethodGet, "/api/v1/sessions/"+sid+"/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "\"signals\"")
	assert.Contains(t, rr.Body.String(), "\"session\"")

	// delete the signal and the session
	rr = f.do(t, http.MethodDelete, "/api/v1/sessions/"+sid+"/signals/f0", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	f.mock.ExpectExec(`DELETE FROM lightcurve_samples`).
		WithArgs(sid).
		WillReturnResult(sqlmock.NewResult(0, int64(len(times))))
	rr = f.do(t, http.MethodDelete, "/api/v1/sessions/"+sid, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/sessions/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAnalysisHandler_NotFoundAndBadRequests(t *testing.T) {
	f := setupAnalysisHandler(t)

	rr := f.do(t, http.MethodGet, "/api/v1/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/sessions/unknown/periodogram", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/sessions/unknown/fit", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/sessions/unknown/periodogram/peak", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code) // freq missing
}
