package petco2_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

func testCurve() *petco2.CalibratedCurve {
	return petco2.NewCalibratedCurve([]float64{10, 12, 15, 11})
}

func TestSample_ZeroDelayReproducesCurve(t *testing.T) {
	c := testCurve()
	req := petco2.EvaluationRequest{
		Timepoints: mat.NewDense(1, 4, []float64{0, 1, 2, 3}),
		Delay:      mat.NewDense(1, 1, []float64{0}),
	}

	out := c.Sample(req)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{10, 12, 15, 11}, out[0].RawRowView(0))
}

func TestSample_NoDelayLookup(t *testing.T) {
	c := testCurve()
	req := petco2.EvaluationRequest{
		Timepoints: mat.NewDense(2, 3, []float64{
			0, 1.9, 3,
			2, 2.5, 1e12,
		}),
	}

	out := c.Sample(req)
	require.Len(t, out, 2)
	for _, m := range out {
		r, cols := m.Dims()
		assert.Equal(t, 1, r)
		assert.Equal(t, 3, cols)
	}
	assert.Equal(t, []float64{10, 12, 11}, out[0].RawRowView(0))
	assert.Equal(t, []float64{15, 15, 11}, out[1].RawRowView(0))
}

func TestSampleAt_Interpolates(t *testing.T) {
	c := testCurve()

	assert.InDelta(t, 11.0, c.SampleAt(1, 0.5), 1e-12)
	assert.InDelta(t, 13.5, c.SampleAt(2.5, 1), 1e-12)
	assert.InDelta(t, 14.0, c.SampleAt(2.25, 0), 1e-12)
}

func TestSampleAt_Saturates(t *testing.T) {
	c := testCurve()

	for _, tp := range []float64{3, 3.5, 4, 100, 1e9, math.Inf(1)} {
		assert.Equal(t, 11.0, c.SampleAt(tp, 0), "t=%v", tp)
	}
	for _, d := range []float64{1, 5, 1e6, math.Inf(1)} {
		assert.Equal(t, 10.0, c.SampleAt(0, d), "delay=%v", d)
	}
	assert.Equal(t, 11.0, c.SampleAt(0, -50))
	assert.True(t, math.IsNaN(c.SampleAt(math.NaN(), 0)))
}

func TestSample_PerNodeAndSampleDelay(t *testing.T) {
	c := testCurve()
	req := petco2.EvaluationRequest{
		Timepoints: mat.NewDense(1, 4, []float64{0, 1, 2, 3}),
		Delay: mat.NewDense(2, 3, []float64{
			0, 1, 0.5,
			-1, 2, 10,
		}),
	}

	out := c.Sample(req)
	require.Len(t, out, 2)

	r, cols := out[0].Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, cols)

	assert.Equal(t, []float64{10, 12, 15, 11}, out[0].RawRowView(0))
	assert.Equal(t, []float64{10, 10, 12, 15}, out[0].RawRowView(1))
	assert.InDeltaSlice(t, []float64{10, 11, 13.5, 13}, out[0].RawRowView(2), 1e-12)

	assert.Equal(t, []float64{12, 15, 11, 11}, out[1].RawRowView(0))
	assert.Equal(t, []float64{10, 10, 10, 12}, out[1].RawRowView(1))
	assert.Equal(t, []float64{10, 10, 10, 10}, out[1].RawRowView(2))
}

func TestSample_BroadcastDelayOverNodes(t *testing.T) {
	c := testCurve()
	req := petco2.EvaluationRequest{
		Timepoints: mat.NewDense(3, 2, []float64{
			0, 1,
			1, 2,
			2, 3,
		}),
		Delay: mat.NewDense(1, 1, []float64{1}),
	}

	out := c.Sample(req)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{10, 10}, out[0].RawRowView(0))
	assert.Equal(t, []float64{10, 12}, out[1].RawRowView(0))
	assert.Equal(t, []float64{12, 15}, out[2].RawRowView(0))
}

func TestSample_ShapeMismatchPanics(t *testing.T) {
	c := testCurve()
	req := petco2.EvaluationRequest{
		Timepoints: mat.NewDense(2, 2, nil),
		Delay:      mat.NewDense(3, 1, nil),
	}
	assert.PanicsWithValue(t, mat.ErrShape, func() { c.Sample(req) })
}

func TestSample_ConcurrentCallsAgree(t *testing.T) {
	c := testCurve()
	req := petco2.EvaluationRequest{
		Timepoints: mat.NewDense(1, 5, []float64{0, 0.5, 1.5, 2.5, 7}),
		Delay:      mat.NewDense(4, 2, []float64{0, 0.25, 0.5, 0.75, 1, 1.25, -0.5, 3}),
	}
	want := c.Sample(req)

	var wg sync.WaitGroup
	results := make([][]*mat.Dense, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Sample(req)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.Len(t, got, len(want))
		for w := range want {
			assert.True(t, mat.Equal(want[w], got[w]))
		}
	}
}

func TestCalibratedCurve_Accessors(t *testing.T) {
	src := []float64{1, 4, 2}
	c := petco2.NewCalibratedCurve(src)
	src[0] = 99

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 1.0, c.At(0))
	assert.Equal(t, []float64{3, -2, 0}, c.Diff())
	assert.Equal(t, 0.0, c.DiffAt(2))

	co2 := c.CO2()
	co2[1] = -1
	assert.Equal(t, 4.0, c.At(1))
}
