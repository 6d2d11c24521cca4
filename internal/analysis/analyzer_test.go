package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

func blockCalibration(on, off float64) *petco2.Calibration {
	// 10 baseline volumes, then ON/OFF blocks of 5 volumes, TR 1s
	co2 := make([]float64, 0, 30)
	for i := 0; i < 10; i++ {
		co2 = append(co2, 40)
	}
	for cycle := 0; cycle < 2; cycle++ {
		for i := 0; i < 5; i++ {
			co2 = append(co2, on)
		}
		for i := 0; i < 5; i++ {
			co2 = append(co2, off)
		}
	}
	return &petco2.Calibration{
		Curve:  petco2.NewCalibratedCurve(co2),
		Levels: petco2.ReferenceLevels{Normocap: 40, Hypercap: on},
		Params: petco2.ProtocolParams{Baseline: 10, BlockOn: 5, BlockOff: 5, SampleRate: 100},
		Diagnostics: petco2.Diagnostics{
			RecoveredTR:   1,
			TriggerTimes:  []float64{0, 1, 2, 3, 4},
			PeakFrequency: 0.25,
			PeakPositions: []int{100, 500, 900, 1300},
		},
	}
}

func TestProtocolBlocks(t *testing.T) {
	p := petco2.ProtocolParams{Baseline: 60, BlockOn: 120, BlockOff: 120}
	blocks := protocolBlocks(p, 2, 230)

	require.Len(t, blocks, 5)
	assert.Equal(t, "Baseline", blocks[0].Name)
	assert.Equal(t, 0, blocks[0].StartVol)
	assert.Equal(t, 30, blocks[0].EndVol)
	assert.Equal(t, "ON 1", blocks[1].Name)
	assert.Equal(t, 90, blocks[1].EndVol)
	assert.Equal(t, KindOff, blocks[2].Kind)
	assert.Equal(t, "ON 2", blocks[3].Name)
	assert.Equal(t, 210, blocks[4].StartVol)
	assert.Equal(t, 230, blocks[4].EndVol) // partial OFF 2
}

func TestProtocolBlocks_MechanicalDelay(t *testing.T) {
	p := petco2.ProtocolParams{Baseline: 60, BlockOn: 120, BlockOff: 120, MechanicalDelay: 15}
	blocks := protocolBlocks(p, 2, 230)

	require.Len(t, blocks, 5)
	assert.Equal(t, 0, blocks[0].StartVol)
	assert.Equal(t, 45, blocks[0].EndVol)
	assert.Equal(t, 45, blocks[1].StartVol)
	assert.Equal(t, 105, blocks[1].EndVol)
	assert.Equal(t, "OFF 2", blocks[4].Name)
	assert.Equal(t, 225, blocks[4].StartVol)
	assert.Equal(t, 230, blocks[4].EndVol)
}

func TestAnalyzeCalibration_Blocks(t *testing.T) {
	res, err := AnalyzeCalibration(blockCalibration(48, 41), 5)
	require.NoError(t, err)

	require.Len(t, res.Blocks, 5)
	on1 := res.Blocks[1]
	assert.Equal(t, "ON 1", on1.Name)
	assert.Equal(t, 5, on1.NumVolumes)
	assert.InDelta(t, 48, on1.Mean, 1e-12)
	assert.InDelta(t, 0, on1.StdDev, 1e-12)
	assert.InDelta(t, 8, on1.Response, 1e-12)
	assert.False(t, on1.IsWeak)
	assert.Empty(t, res.AnalysisErrors)

	assert.InDelta(t, 15, res.BreathsPerMin, 1e-12)
	assert.InDelta(t, 4, res.BreathInterval, 1e-12)
	assert.InDelta(t, 0, res.BreathIntervalSD, 1e-12)
	assert.InDelta(t, 0, res.TriggerJitter, 1e-12)
}

func TestAnalyzeCalibration_WeakResponse(t *testing.T) {
	res, err := AnalyzeCalibration(blockCalibration(42, 40), 5)
	require.NoError(t, err)

	weak := 0
	for _, b := range res.Blocks {
		if b.IsWeak {
			weak++
			assert.Equal(t, KindOn, b.Kind)
		}
	}
	assert.Equal(t, 2, weak)
	assert.Len(t, res.AnalysisErrors, 2)
}

func TestAnalyzeCalibration_RankedByStdDev(t *testing.T) {
	cal := blockCalibration(48, 41)
	co2 := cal.Curve.CO2()
	co2[25] = 50 // spike in OFF 2
	cal.Curve = petco2.NewCalibratedCurve(co2)

	res, err := AnalyzeCalibration(cal, 5)
	require.NoError(t, err)
	require.NotEmpty(t, res.RankedByStdDev)
	assert.Equal(t, "OFF 2", res.RankedByStdDev[0].Name)
	assert.Greater(t, res.RankedByStdDev[0].Value, 0.0)
}

func TestAnalyzeCalibration_Empty(t *testing.T) {
	_, err := AnalyzeCalibration(nil, 5)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	mean, std, rng := describe(nil)
	assert.True(t, math.IsNaN(mean))
	assert.True(t, math.IsNaN(std))
	assert.True(t, math.IsNaN(rng))

	mean, std, rng = describe([]float64{3})
	assert.Equal(t, []float64{3, 0, 0}, []float64{mean, std, rng})

	mean, std, rng = describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, mean, 1e-12)
	assert.InDelta(t, 2, std, 1e-12)
	assert.InDelta(t, 7, rng, 1e-12)
}
