package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
	"github.com/asterolab/lightcurve-backend/internal/periodogram"
	"github.com/asterolab/lightcurve-backend/internal/signalfit"
)

const (
	flattenWindowDays = 2.0
	clipSigma         = 5.0
	snrCut            = 4.0 // stop when the peak drops below 4x the noise
	maxSignals        = 50
)

type analyzeResult struct {
	Samples     int                `json:"samples"`
	Resolution  float64            `json:"freq_resolution"`
	Nyquist     float64            `json:"nyquist"`
	Signals     []signalfit.Signal `json:"signals"`
	ResidualStd float64            `json:"residual_std"`
}

// RunAnalyze loads a time,flux[,flux_err] CSV and prewhitens it: repeatedly
// pick the strongest periodogram peak, fit, and subtract, until the next
// peak is no longer significant. The solution is printed as JSON.
func RunAnalyze(args []string) {
	if len(args) < 1 {
		log.Fatal("usage: worker analyze <csvPath> [oversample]")
	}
	oversample := periodogram.DefaultOversample
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			log.Fatalf("invalid oversample: %s", args[1])
		}
		oversample = n
	}

	lc, err := loadCSV(args[0])
	if err != nil {
		log.Fatalf("failed to load %s: %v", args[0], err)
	}
	lc = lc.Normalize().Flatten(flattenWindowDays).ClipOutliers(clipSigma)

	result, err := prewhiten(lc, oversample)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}
}

func prewhiten(lc *lightcurve.LightCurve, oversample int) (*analyzeResult, error) {
	grid := periodogram.NewGrid(lc, oversample)
	mean := lc.Mean()
	sol := &signalfit.Solution{}

	resid := append([]float64(nil), lc.Flux...)
	for i := 0; i < maxSignals; i++ {
		rlc, err := lightcurve.New(lc.Time, resid, nil)
		if err != nil {
			return nil, err
		}
		amps := periodogram.AmplitudeSpectrum(rlc, grid.Freqs)

		peak := periodogram.MaxPeak(grid.Freqs, amps)
		if peak.Amp < snrCut*noiseLevel(amps) || peak.Freq <= 0 {
			break
		}

		if _, err := sol.Add("", peak.Freq, peak.Amp, math.NaN()); err != nil {
			return nil, err
		}
		if err := signalfit.Fit(lc.Time, lc.Flux, sol); err != nil {
			return nil, fmt.Errorf("fit with %d signals: %w", len(sol.Signals), err)
		}
		resid = sol.Residuals(lc.Time, lc.Flux, mean)
	}

	return &analyzeResult{
		Samples:     lc.Len(),
		Resolution:  grid.Resolution,
		Nyquist:     grid.Nyquist,
		Signals:     sol.Signals,
		ResidualStd: stddev(resid),
	}, nil
}

// noiseLevel estimates the noise floor as the mean of the amplitude
// spectrum, the usual reference for the significance cut.
func noiseLevel(amps []float64) float64 {
	if len(amps) == 0 {
		return 0
	}
	var sum float64
	n := 0
	for _, a := range amps {
		if !math.IsNaN(a) {
			sum += a
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func loadCSV(path string) (*lightcurve.LightCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var times, flux, fluxErr []float64
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		t, err1 := strconv.ParseFloat(rec[0], 64)
		v, err2 := strconv.ParseFloat(rec[1], 64)
		if err1 != nil || err2 != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("bad row %d", i+1)
		}
		times = append(times, t)
		flux = append(flux, v)
		if len(rec) >= 3 {
			if e, err := strconv.ParseFloat(rec[2], 64); err == nil {
				fluxErr = append(fluxErr, e)
			}
		}
	}
	if len(fluxErr) != len(flux) {
		fluxErr = nil
	}
	return lightcurve.New(times, flux, fluxErr)
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
