package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

// delayGrid adapts a delays x volumes matrix to plotter.GridXYZ.
type delayGrid struct {
	z      *mat.Dense
	delays []float64
}

func (g delayGrid) Dims() (c, r int) {
	r, c = g.z.Dims()
	return c, r
}

func (g delayGrid) Z(c, r int) float64 { return g.z.At(r, c) }
func (g delayGrid) X(c int) float64    { return float64(c) }
func (g delayGrid) Y(r int) float64    { return g.delays[r] }

// DelaySweep samples the curve at every volume for steps delays evenly spaced
// from 0 to maxDelay volumes. The result is steps x volumes.
func DelaySweep(curve *petco2.CalibratedCurve, maxDelay float64, steps int) (*mat.Dense, []float64, error) {
	if curve == nil || curve.Len() == 0 {
		return nil, nil, fmt.Errorf("no calibrated curve to sweep")
	}
	if steps < 2 || !(maxDelay > 0) {
		return nil, nil, fmt.Errorf("delay sweep needs at least 2 steps and a positive maximum, got %d steps up to %v", steps, maxDelay)
	}

	delays := make([]float64, steps)
	floats.Span(delays, 0, maxDelay)

	n := curve.Len()
	tpts := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		tpts.Set(0, i, float64(i))
	}
	out := curve.Sample(petco2.EvaluationRequest{
		Timepoints: tpts,
		Delay:      mat.NewDense(1, steps, delays),
	})
	return out[0], delays, nil
}

// CreateDelayHeatmap renders the CO2 regressor shifted by a sweep of delays.
func CreateDelayHeatmap(curve *petco2.CalibratedCurve, maxDelay float64, steps int) ([]byte, error) {
	z, delays, err := DelaySweep(curve, maxDelay, steps)
	if err != nil {
		return nil, err
	}
	grid := delayGrid{z: z, delays: delays}
	zmin, zmax := floats.Min(z.RawMatrix().Data), floats.Max(z.RawMatrix().Data)
	if zmin == zmax {
		zmax = zmin + 1
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(zmin)
	cmap.SetMax(zmax)

	hm := plotter.NewHeatMap(grid, cmap.Palette(255))
	hm.Min = zmin
	hm.Max = zmax
	hm.NaN = color.Gray{Y: 200}

	_, cols := z.Dims()
	p := plot.New()
	p.Title.Text = "Delay-shifted CO2 Regressor (mmHg)"
	p.X.Label.Text = "Volume"
	p.Y.Label.Text = "Delay (volumes)"
	p.X.Min = -0.5
	p.X.Max = float64(cols) - 0.5
	p.Y.Min = delays[0] - (delays[1]-delays[0])/2
	p.Y.Max = delays[len(delays)-1] + (delays[1]-delays[0])/2
	p.Add(hm)

	thumbs := plotter.PaletteThumbnailers(hm.Palette)
	hi := len(thumbs) - 1
	p.Legend.Add(fmt.Sprintf("%.1f", zmax), thumbs[hi])
	p.Legend.Add(fmt.Sprintf("%.1f", zmin), thumbs[0])
	p.Legend.Top = true

	return renderPNG(p, vg.Points(1000), vg.Points(500))
}
