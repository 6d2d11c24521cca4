package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

// protocolBlocks lays the baseline followed by alternating ON and OFF blocks
// over n volumes. The baseline is extended by the mechanical delay so the
// blocks line up with the windows used for the reference levels. Boundaries
// are truncated to whole volumes and the last block may be partial.
func protocolBlocks(p petco2.ProtocolParams, tr float64, n int) []BlockStats {
	var blocks []BlockStats
	add := func(name, kind string, start, end int) int {
		end = min(end, n)
		if start < end {
			blocks = append(blocks, BlockStats{Name: name, Kind: kind, StartVol: start, EndVol: end})
		}
		return end
	}

	pos := add("Baseline", KindBaseline, 0, int(p.Baseline/tr+p.MechanicalDelay))
	onVols := max(int(p.BlockOn/tr), 1)
	offVols := max(int(p.BlockOff/tr), 1)
	for cycle := 1; pos < n; cycle++ {
		pos = add(fmt.Sprintf("ON %d", cycle), KindOn, pos, pos+onVols)
		pos = add(fmt.Sprintf("OFF %d", cycle), KindOff, pos, pos+offVols)
	}
	return blocks
}

func describe(data []float64) (mean, std, rng float64) {
	switch len(data) {
	case 0:
		return math.NaN(), math.NaN(), math.NaN()
	case 1:
		return data[0], 0, 0
	}
	mean, std = stat.PopMeanStdDev(data, nil)
	return mean, std, floats.Max(data) - floats.Min(data)
}

// intervalStats returns the mean and population std of the spacing of
// increasing values.
func intervalStats(values []float64) (float64, float64) {
	if len(values) < 2 {
		return math.NaN(), math.NaN()
	}
	d := make([]float64, len(values)-1)
	for i := range d {
		d[i] = values[i+1] - values[i]
	}
	mean, std, _ := describe(d)
	return mean, std
}

// AnalyzeCalibration summarises a calibration per protocol block and checks
// the recording for weak stimulus response and irregular timing.
// minResponse is the smallest acceptable ON-block rise above normocapnia in mmHg.
func AnalyzeCalibration(cal *petco2.Calibration, minResponse float64) (*AnalysisResults, error) {
	if cal == nil || cal.Curve == nil || cal.Curve.Len() == 0 {
		return nil, fmt.Errorf("calibration is nil or empty, cannot analyze")
	}

	results := NewAnalysisResults()
	co2 := cal.Curve.CO2()
	diag := cal.Diagnostics

	for _, b := range protocolBlocks(cal.Params, diag.RecoveredTR, len(co2)) {
		b.NumVolumes = b.EndVol - b.StartVol
		b.Mean, b.StdDev, b.Range = describe(co2[b.StartVol:b.EndVol])
		b.Response = b.Mean - cal.Levels.Normocap
		if b.Kind == KindOn && b.Response < minResponse {
			b.IsWeak = true
			results.AnalysisErrors = append(results.AnalysisErrors, fmt.Sprintf("Warning: %s rises %.2f mmHg above normocapnia, below the %.2f mmHg minimum.", b.Name, b.Response, minResponse))
		}
		results.Blocks = append(results.Blocks, b)
		results.RankedByStdDev = append(results.RankedByStdDev, RankedBlockInfo{Name: b.Name, Value: b.StdDev})
	}

	sort.SliceStable(results.RankedByStdDev, func(i, j int) bool {
		return results.RankedByStdDev[i].Value > results.RankedByStdDev[j].Value
	})

	_, results.TriggerJitter = intervalStats(diag.TriggerTimes)

	results.BreathsPerMin = 60 * diag.PeakFrequency
	peakTimes := make([]float64, len(diag.PeakPositions))
	for i, pos := range diag.PeakPositions {
		peakTimes[i] = float64(pos) / cal.Params.SampleRate
	}
	results.BreathInterval, results.BreathIntervalSD = intervalStats(peakTimes)

	if cal.Levels.Delta() <= 0 {
		results.AnalysisErrors = append(results.AnalysisErrors, fmt.Sprintf("Warning: hypercapnia %.2f mmHg is not above normocapnia %.2f mmHg.", cal.Levels.Hypercap, cal.Levels.Normocap))
	}
	if diag.RecoveredTR > 0 && results.TriggerJitter > 0.1*diag.RecoveredTR {
		results.AnalysisErrors = append(results.AnalysisErrors, fmt.Sprintf("Warning: trigger interval jitter %.3fs exceeds 10%% of TR.", results.TriggerJitter))
	}

	return results, nil
}
