// Package model exposes the calibrated PETCO2 curve as a forward model for
// fitting cerebrovascular reactivity to a BOLD time series.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

// Parameter describes one inferred model parameter with a normal prior and
// the initial posterior used to start inference.
type Parameter struct {
	Name     string
	Mean     float64
	PriorVar float64
	PostMean float64
	PostVar  float64
}

// Options selects the optional parameters.
type Options struct {
	InferSig0  bool // Fit the signal offset; otherwise it is fixed at 1
	InferDelay bool // Fit a per-node shift of the CO2 curve in volumes
}

// CvrModel evaluates sig0 * (1 + cvr * co2(t - delay) / 100).
type CvrModel struct {
	cal   *petco2.Calibration
	nTpts int
	opts  Options
}

// New wraps a calibration for a series of nTpts volumes.
func New(cal *petco2.Calibration, nTpts int, opts Options) (*CvrModel, error) {
	if cal == nil || cal.Curve == nil || cal.Curve.Len() == 0 {
		return nil, fmt.Errorf("%w: model needs a non-empty calibrated curve", petco2.ErrInputShape)
	}
	if nTpts < 1 {
		return nil, fmt.Errorf("%w: number of timepoints must be >= 1, got %d", petco2.ErrRange, nTpts)
	}
	return &CvrModel{cal: cal, nTpts: nTpts, opts: opts}, nil
}

// Params lists the model parameters in the order Evaluate expects them.
func (m *CvrModel) Params() []Parameter {
	params := []Parameter{
		{Name: "cvr", Mean: 1, PriorVar: 2000, PostMean: 1, PostVar: 10},
	}
	if m.opts.InferSig0 {
		params = append(params, Parameter{Name: "sig0", Mean: 1, PriorVar: 1e9, PostMean: 1, PostVar: 10})
	}
	if m.opts.InferDelay {
		params = append(params, Parameter{Name: "delay", Mean: 0, PriorVar: 100, PostMean: 0, PostVar: 10})
	}
	return params
}

// Tpts returns the volume indices 0 ... n-1.
func (m *CvrModel) Tpts() []float64 {
	t := make([]float64, m.nTpts)
	for i := range t {
		t[i] = float64(i)
	}
	return t
}

// Calibration returns the wrapped calibration.
func (m *CvrModel) Calibration() *petco2.Calibration { return m.cal }

// Evaluate computes the model signal. params holds one nodes x samples
// matrix per entry of Params, tpts is nodes x time or a single shared row.
// The result has one samples x time matrix per node.
func (m *CvrModel) Evaluate(params []*mat.Dense, tpts *mat.Dense) ([]*mat.Dense, error) {
	want := len(m.Params())
	if len(params) != want {
		return nil, fmt.Errorf("%w: expected %d parameter arrays, got %d", petco2.ErrInputShape, want, len(params))
	}
	if tpts == nil {
		return nil, fmt.Errorf("%w: timepoints are nil", petco2.ErrInputShape)
	}

	cvr := params[0]
	nodes, samples := cvr.Dims()
	next := 1
	var sig0, delay *mat.Dense
	if m.opts.InferSig0 {
		sig0 = params[next]
		next++
	}
	if m.opts.InferDelay {
		delay = params[next]
	}
	for i, p := range params {
		if r, c := p.Dims(); r != nodes || c != samples {
			return nil, fmt.Errorf("%w: parameter %d is %dx%d, want %dx%d",
				petco2.ErrInputShape, i, r, c, nodes, samples)
		}
	}
	if r, _ := tpts.Dims(); r != 1 && r != nodes {
		return nil, fmt.Errorf("%w: timepoints have %d node rows, want 1 or %d",
			petco2.ErrInputShape, r, nodes)
	}

	co2 := m.cal.Curve.Sample(petco2.EvaluationRequest{Timepoints: tpts, Delay: delay})
	_, nt := tpts.Dims()

	out := make([]*mat.Dense, nodes)
	for w := 0; w < nodes; w++ {
		src := co2[min(w, len(co2)-1)]
		srcRows, _ := src.Dims()
		res := mat.NewDense(samples, nt, nil)
		for s := 0; s < samples; s++ {
			c := cvr.At(w, s)
			offset := 1.0
			if sig0 != nil {
				offset = sig0.At(w, s)
			}
			row := src.RawRowView(min(s, srcRows-1))
			for j, v := range row {
				res.Set(s, j, offset*(1+c*v/100))
			}
		}
		out[w] = res
	}
	return out, nil
}

func (m *CvrModel) String() string {
	return fmt.Sprintf("CVR-PETCO2 model: %d volumes, sig0=%t delay=%t",
		m.cal.Curve.Len(), m.opts.InferSig0, m.opts.InferDelay)
}
