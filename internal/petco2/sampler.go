package petco2

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sample evaluates the curve for every (node, sample, time) triple in req and
// returns one samples x time matrix per node.
//
// Each node row of req.Timepoints is combined with every delay in the same
// node row of req.Delay, so the gather index differs per node and sample.
// Single-row Timepoints or Delay matrices are broadcast over nodes. Without a
// delay each node gets a single sample row holding the nearest-past volume.
// Out-of-range times saturate at the first or last volume.
//
// Sample panics with mat.ErrShape when the node dimensions cannot be
// broadcast together, and on an empty curve.
func (c *CalibratedCurve) Sample(req EvaluationRequest) []*mat.Dense {
	tNodes, nt := req.Timepoints.Dims()
	nodes, samples := tNodes, 1
	var dNodes int
	if req.Delay != nil {
		dNodes, samples = req.Delay.Dims()
		nodes = broadcastNodes(tNodes, dNodes)
	}

	out := make([]*mat.Dense, nodes)
	for w := 0; w < nodes; w++ {
		tw := min(w, tNodes-1)
		res := mat.NewDense(samples, nt, nil)
		for s := 0; s < samples; s++ {
			for j := 0; j < nt; j++ {
				t := req.Timepoints.At(tw, j)
				if req.Delay == nil {
					res.Set(s, j, c.Lookup(t))
					continue
				}
				res.Set(s, j, c.SampleAt(t, req.Delay.At(min(w, dNodes-1), s)))
			}
		}
		out[w] = res
	}
	return out
}

// SampleAt linearly interpolates the curve at t-delay. The base index is
// clamped to the curve first and the fractional part to [0, 1] second, so
// the last volume is held flat beyond the end and the first before the start.
func (c *CalibratedCurve) SampleAt(t, delay float64) float64 {
	td := t - delay
	if math.IsNaN(td) {
		return math.NaN()
	}
	base := clamp(math.Floor(td), 0, float64(len(c.co2)-1))
	frac := clamp(td-base, 0, 1)
	i := int(base)
	return c.co2[i] + frac*c.diff[i]
}

// Lookup returns the volume at the integer part of t with no interpolation,
// saturating outside the curve.
func (c *CalibratedCurve) Lookup(t float64) float64 {
	if math.IsNaN(t) {
		return math.NaN()
	}
	return c.co2[int(clamp(math.Trunc(t), 0, float64(len(c.co2)-1)))]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func broadcastNodes(a, b int) int {
	switch {
	case a == b:
		return a
	case a == 1:
		return b
	case b == 1:
		return a
	}
	panic(mat.ErrShape)
}
