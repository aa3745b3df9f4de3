package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
)

func syntheticCurve(t *testing.T) *lightcurve.LightCurve {
	t.Helper()
	rng := rand.New(rand.NewSource(42))

	n := 1000
	times := make([]float64, n)
	flux := make([]float64, n)
	for i := range times {
		x := float64(i) * 0.02
		times[i] = x
		flux[i] = 0.010*math.Sin(2*math.Pi*(3.1*x+0.2)) +
			0.006*math.Sin(2*math.Pi*(7.7*x+0.8)) +
			0.002*rng.NormFloat64()
	}

	lc, err := lightcurve.New(times, flux, nil)
	require.NoError(t, err)
	return lc
}

func TestPrewhiten_ExtractsPlantedFrequencies(t *testing.T) {
	lc := syntheticCurve(t)

	result, err := prewhiten(lc, 10)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(result.Signals), 2)
	assert.LessOrEqual(t, len(result.Signals), 6)

	// Strongest first: 10 ppt at 3.1, then 6 ppt at 7.7
	assert.InDelta(t, 3.1, result.Signals[0].Freq, 1e-3)
	assert.InDelta(t, 0.010, result.Signals[0].Amp, 5e-4)
	assert.InDelta(t, 7.7, result.Signals[1].Freq, 1e-3)
	assert.InDelta(t, 0.006, result.Signals[1].Amp, 5e-4)

	// Residual scatter should approach the injected noise level
	assert.InDelta(t, 0.002, result.ResidualStd, 1e-3)
}

func TestPrewhiten_QuietSeriesAddsNothing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 400
	times := make([]float64, n)
	flux := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * 0.02
		flux[i] = 0.002 * rng.NormFloat64()
	}
	lc, err := lightcurve.New(times, flux, nil)
	require.NoError(t, err)

	result, err := prewhiten(lc, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Signals), 2)
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curve.csv")

	content := "time,flux,flux_err\n"
	for i := 0; i < 10; i++ {
		content += fmt.Sprintf("%g,%g,%g\n", float64(i)*0.1, 1.0+float64(i)*0.01, 0.001)
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lc, err := loadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 10, lc.Len())
	assert.NotNil(t, lc.FluxErr)
	assert.InDelta(t, 0.9, lc.Time[9], 1e-12)
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := loadCSV("/nonexistent/curve.csv")
	assert.Error(t, err)
}
