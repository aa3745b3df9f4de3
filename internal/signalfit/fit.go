package signalfit

import (
	"errors"
	"fmt"
	"math"
)

var ErrSingularFit = errors.New("signalfit: normal equations are singular")

const (
	maxIterations = 200
	lambdaInit    = 1e-3
	lambdaMax     = 1e12
)

type paramKind int

const (
	paramFreq paramKind = iota
	paramAmp
	paramPhase
)

type paramRef struct {
	sig  *Signal
	kind paramKind
}

// Fit refines the included signals of a solution against a light curve by
// nonlinear least squares on a sum-of-sines model. The fit runs in two
// stages: first with every frequency held fixed, then with frequencies
// free unless pinned by their FixFreq flag. Combination rows keep their
// frequency tied to the expression over the independent frequencies.
//
// After the fit, negative amplitudes are rectified (amplitude negated,
// phase shifted by half a cycle), phases are referenced to t=0 and wrapped
// into [0,1), and parameter uncertainties are filled from the scaled
// covariance of the final stage.
func Fit(times, flux []float64, sol *Solution) error {
	included := sol.Included()
	if len(included) == 0 {
		return ErrNothingToFit
	}
	if len(times) != len(flux) {
		return fmt.Errorf("signalfit: time and flux lengths differ")
	}

	// Shift times to their midpoint so phases stay well conditioned, and
	// remove the mean flux; the model carries no constant term.
	var tshift, mean float64
	for i := range times {
		tshift += times[i]
		mean += flux[i]
	}
	tshift = -tshift / float64(len(times))
	mean /= float64(len(flux))

	x := make([]float64, len(times))
	y := make([]float64, len(flux))
	for i := range times {
		x[i] = times[i] + tshift
		y[i] = flux[i] - mean
	}

	prob := &fitProblem{x: x, y: y, sol: sol}
	for _, sig := range included {
		if sig.Combo {
			prob.combos = append(prob.combos, sig)
		} else {
			prob.indep = append(prob.indep, sig)
		}
	}

	// Stage 1: frequencies fixed.
	if err := prob.run(false); err != nil {
		return err
	}
	// Stage 2: frequencies free unless pinned.
	if err := prob.run(true); err != nil {
		return err
	}

	prob.propagateComboErrors()

	for _, sig := range included {
		if sig.Amp < 0 {
			sig.Amp = -sig.Amp
			sig.Phase -= 0.5
		}
		sig.Phase = wrapPhase(sig.Phase + sig.Freq*tshift)
	}
	sol.RefreshCombos()
	return nil
}

type fitProblem struct {
	x, y   []float64
	sol    *Solution
	indep  []*Signal
	combos []*Signal
	params []paramRef
}

func (p *fitProblem) run(varyFreq bool) error {
	p.params = p.params[:0]
	for _, sig := range p.indep {
		if varyFreq && !sig.FixFreq {
			p.params = append(p.params, paramRef{sig, paramFreq})
		}
		if !sig.FixAmp {
			p.params = append(p.params, paramRef{sig, paramAmp})
		}
		if !sig.FixPhase {
			p.params = append(p.params, paramRef{sig, paramPhase})
		}
	}
	for _, sig := range p.combos {
		if !sig.FixAmp {
			p.params = append(p.params, paramRef{sig, paramAmp})
		}
		if !sig.FixPhase {
			p.params = append(p.params, paramRef{sig, paramPhase})
		}
	}
	if len(p.params) == 0 {
		return nil
	}

	v := p.pack()
	sse := p.sumSquares(v)
	lambda := lambdaInit

	for iter := 0; iter < maxIterations; iter++ {
		jac := p.jacobian(v)
		r := p.residuals(v)

		m := len(p.params)
		hess := make([][]float64, m)
		grad := make([]float64, m)
		for a := 0; a < m; a++ {
			hess[a] = make([]float64, m)
			for b := 0; b <= a; b++ {
				var sum float64
				for i := range r {
					sum += jac[i][a] * jac[i][b]
				}
				hess[a][b] = sum
				hess[b][a] = sum
			}
			for i := range r {
				grad[a] += jac[i][a] * r[i]
			}
		}

		improved := false
		for lambda <= lambdaMax {
			damped := make([][]float64, m)
			for a := range hess {
				damped[a] = append([]float64(nil), hess[a]...)
				damped[a][a] += lambda * hess[a][a]
				if damped[a][a] == 0 {
					damped[a][a] = lambda * 1e-12
				}
			}
			delta, err := solveLinear(damped, grad)
			if err != nil {
				lambda *= 10
				continue
			}

			trial := make([]float64, m)
			for a := range trial {
				trial[a] = v[a] + delta[a]
			}
			trialSSE := p.sumSquares(trial)
			if trialSSE < sse {
				improved = true
				relChange := (sse - trialSSE) / (sse + 1e-300)
				v = trial
				sse = trialSSE
				lambda = math.Max(lambda/10, 1e-12)
				if relChange < 1e-12 {
					iter = maxIterations // converged
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			break
		}
	}

	p.unpack(v)
	return p.fillUncertainties(v, sse)
}

func (p *fitProblem) pack() []float64 {
	v := make([]float64, len(p.params))
	for i, pr := range p.params {
		switch pr.kind {
		case paramFreq:
			v[i] = pr.sig.Freq
		case paramAmp:
			v[i] = pr.sig.Amp
		case paramPhase:
			v[i] = pr.sig.Phase
		}
	}
	return v
}

func (p *fitProblem) unpack(v []float64) {
	for i, pr := range p.params {
		switch pr.kind {
		case paramFreq:
			pr.sig.Freq = v[i]
		case paramAmp:
			pr.sig.Amp = v[i]
		case paramPhase:
			pr.sig.Phase = v[i]
		}
	}
	p.sol.RefreshCombos()
}

// model evaluates the sum-of-sines at every sample for the current
// parameter vector. Combination frequencies follow the independent ones.
func (p *fitProblem) model(v []float64) []float64 {
	p.unpack(v)
	out := make([]float64, len(p.x))
	for _, sig := range append(append([]*Signal(nil), p.indep...), p.combos...) {
		for i, xi := range p.x {
			out[i] += sig.Amp * math.Sin(2*math.Pi*(sig.Freq*xi+sig.Phase))
		}
	}
	return out
}

func (p *fitProblem) residuals(v []float64) []float64 {
	m := p.model(v)
	r := make([]float64, len(p.y))
	for i := range p.y {
		r[i] = p.y[i] - m[i]
	}
	return r
}

func (p *fitProblem) sumSquares(v []float64) float64 {
	var sse float64
	for _, ri := range p.residuals(v) {
		sse += ri * ri
	}
	return sse
}

// jacobian computes d(model)/d(param) analytically. A frequency column of
// an independent signal also collects chain-rule terms from combination
// rows tied to it.
func (p *fitProblem) jacobian(v []float64) [][]float64 {
	p.unpack(v)
	n := len(p.x)
	m := len(p.params)
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, m)
	}

	for col, pr := range p.params {
		sig := pr.sig
		switch pr.kind {
		case paramAmp:
			for i, xi := range p.x {
				jac[i][col] = math.Sin(2 * math.Pi * (sig.Freq*xi + sig.Phase))
			}
		case paramPhase:
			for i, xi := range p.x {
				jac[i][col] = 2 * math.Pi * sig.Amp * math.Cos(2*math.Pi*(sig.Freq*xi+sig.Phase))
			}
		case paramFreq:
			for i, xi := range p.x {
				jac[i][col] = 2 * math.Pi * sig.Amp * xi * math.Cos(2*math.Pi*(sig.Freq*xi+sig.Phase))
			}
			for _, combo := range p.combos {
				dgdf := p.comboDerivative(combo, sig)
				if dgdf == 0 {
					continue
				}
				for i, xi := range p.x {
					jac[i][col] += dgdf * 2 * math.Pi * combo.Amp * xi *
						math.Cos(2*math.Pi*(combo.Freq*xi+combo.Phase))
				}
			}
		}
	}
	return jac
}

// comboDerivative numerically differentiates a combination frequency with
// respect to one independent frequency.
func (p *fitProblem) comboDerivative(combo, indep *Signal) float64 {
	h := 1e-8 * math.Max(1, math.Abs(indep.Freq))
	orig := indep.Freq

	indep.Freq = orig + h
	hi, errHi := EvalCombo(combo.Label, p.sol.lookup)
	indep.Freq = orig - h
	lo, errLo := EvalCombo(combo.Label, p.sol.lookup)
	indep.Freq = orig

	if errHi != nil || errLo != nil {
		return 0
	}
	return (hi - lo) / (2 * h)
}

func (p *fitProblem) fillUncertainties(v []float64, sse float64) error {
	n := len(p.x)
	m := len(p.params)
	if m == 0 || n <= m {
		return nil
	}

	jac := p.jacobian(v)
	hess := make([][]float64, m)
	for a := 0; a < m; a++ {
		hess[a] = make([]float64, m)
		for b := 0; b < m; b++ {
			var sum float64
			for i := 0; i < n; i++ {
				sum += jac[i][a] * jac[i][b]
			}
			hess[a][b] = sum
		}
	}

	cov, err := invert(hess)
	if err != nil {
		return fmt.Errorf("%w: cannot estimate uncertainties", ErrSingularFit)
	}

	variance := sse / float64(n-m)
	for i, pr := range p.params {
		stderr := math.Sqrt(math.Abs(variance * cov[i][i]))
		switch pr.kind {
		case paramFreq:
			pr.sig.FreqErr = stderr
		case paramAmp:
			pr.sig.AmpErr = stderr
		case paramPhase:
			pr.sig.PhaseErr = stderr
		}
	}
	return nil
}

// propagateComboErrors fills the frequency uncertainty of combination rows
// from the independent frequency errors, summed in quadrature.
func (p *fitProblem) propagateComboErrors() {
	for _, combo := range p.combos {
		var sum float64
		for _, indep := range p.indep {
			d := p.comboDerivative(combo, indep)
			sum += d * d * indep.FreqErr * indep.FreqErr
		}
		combo.FreqErr = math.Sqrt(sum)
	}
}

func wrapPhase(phase float64) float64 {
	phase = math.Mod(phase, 1)
	if phase < 0 {
		phase += 1
	}
	return phase
}

// solveLinear solves A x = b by Gaussian elimination with partial
// pivoting. A and b are clobbered by the caller's copies.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(append([]float64(nil), a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-300 {
			return nil, ErrSingularFit
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < n; row++ {
			f := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := m[row][n]
		for k := row + 1; k < n; k++ {
			sum -= m[row][k] * x[k]
		}
		x[row] = sum / m[row][row]
	}
	return x, nil
}

// invert computes the inverse of a symmetric positive matrix by
// Gauss-Jordan elimination with partial pivoting.
func invert(a [][]float64) ([][]float64, error) {
	n := len(a)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], a[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-300 {
			return nil, ErrSingularFit
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		f := aug[col][col]
		for k := 0; k < 2*n; k++ {
			aug[col][k] /= f
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			f := aug[row][col]
			for k := 0; k < 2*n; k++ {
				aug[row][k] -= f * aug[col][k]
			}
		}
	}

	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = aug[i][n:]
	}
	return inv, nil
}
