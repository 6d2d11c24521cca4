package petco2

import (
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// trDriftWarning is the relative TR mismatch above which a warning is logged.
const trDriftWarning = 0.05

// Calibrate reconstructs the end-tidal CO2 envelope of trace, resamples it to
// one value per scan volume and converts it to mmHg.
//
// tr is the nominal repetition time in seconds. When the trigger channel has
// at least four events the TR recovered from the trigger intervals is used
// instead, since the recorder and the scanner run on independent clocks.
func Calibrate(trace *RawTrace, params ProtocolParams, tr float64) (*Calibration, error) {
	if trace == nil {
		return nil, fmt.Errorf("%w: raw trace is nil", ErrInputShape)
	}
	if err := trace.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !(tr > 0) {
		return nil, fmt.Errorf("%w: tr must be > 0, got %v", ErrRange, tr)
	}

	diag := Diagnostics{NominalTR: tr}

	// Step 1: timing from the scanner triggers
	trigTimes, adjacent := triggerTimes(trace, params.TriggerThreshold)
	diag.TriggerTimes = trigTimes
	diag.TriggerCount = len(trigTimes)
	diag.AdjacentTriggers = adjacent
	if adjacent > 0 {
		log.Printf("Warning: %d of %d trigger samples directly follow another sample above threshold %v; "+
			"each sample counts as one trigger, check the pulse width or THRESHOLD_TRIG",
			adjacent, len(trigTimes), params.TriggerThreshold)
	}
	if len(trigTimes) < 2 {
		return nil, fmt.Errorf("%w: insufficient trigger events (%d samples above threshold %v)",
			ErrCalibration, len(trigTimes), params.TriggerThreshold)
	}
	diag.RecoveredTR = recoverTR(trigTimes, tr)
	diag.Volumes = len(trigTimes) - 1
	if drift := math.Abs(diag.RecoveredTR-tr) / tr; drift > trDriftWarning {
		log.Printf("Warning: trigger TR %.4fs differs from nominal TR %.4fs by %.1f%%",
			diag.RecoveredTR, tr, drift*100)
	}

	// Step 2: compensate the gas line transit delay
	start := sort.SearchFloat64s(trace.Time, trigTimes[0]-params.MechanicalDelay)
	diag.TrimStart = trace.Time[start]
	diag.Trimmed = make([]float64, trace.Len()-start)
	copy(diag.Trimmed, trace.PETCO2[start:])

	// Step 3: breathing rate during baseline sets the peak search window
	sp, err := baselineSpectrum(diag.Trimmed, params)
	if err != nil {
		return nil, err
	}
	diag.SpectrumFreq = sp.freq
	diag.SpectrumAmp = sp.amp
	diag.PeakFrequency = sp.peakFreq
	diag.RespPeriod = sp.period

	// Steps 4 and 5: one end-tidal peak per window, linear in between
	diag.WindowSamples = int(math.RoundToEven(float64(diag.RespPeriod+1) * params.SampleRate))
	diag.PeakPositions, diag.PeakValues = windowPeaks(diag.Trimmed, diag.WindowSamples)
	if len(diag.PeakPositions) == 0 {
		return nil, fmt.Errorf("%w: insufficient respiratory windows (%d trimmed samples, window of %d)",
			ErrCalibration, len(diag.Trimmed), diag.WindowSamples)
	}
	diag.Envelope = reconstructEnvelope(len(diag.Trimmed), diag.PeakPositions, diag.PeakValues)

	// Step 6: last envelope sample of every TR-sized block
	diag.BlockSamples = int(math.RoundToEven(diag.RecoveredTR * params.SampleRate))
	if diag.BlockSamples < 1 {
		return nil, fmt.Errorf("%w: TR %.4fs is shorter than one sample at %v Hz",
			ErrCalibration, diag.RecoveredTR, params.SampleRate)
	}
	if need := diag.BlockSamples * diag.Volumes; need > len(diag.Envelope) {
		return nil, fmt.Errorf("%w: recording ends before the last volume (%d samples needed, %d available)",
			ErrCalibration, need, len(diag.Envelope))
	}
	diag.VolumeSamples = make([]float64, diag.Volumes)
	for i := range diag.VolumeSamples {
		diag.VolumeSamples[i] = diag.Envelope[diag.BlockSamples*i+diag.BlockSamples-1]
	}

	// Steps 7 and 8: percent to partial pressure, then first differences
	diag.PressureMmHg = params.AirPressure / MbarPerMmHg
	co2 := make([]float64, diag.Volumes)
	copy(co2, diag.VolumeSamples)
	floats.Scale(diag.PressureMmHg/100, co2)
	curve := NewCalibratedCurve(co2)

	// Step 9
	levels, err := referenceLevels(co2, params, diag.RecoveredTR)
	if err != nil {
		return nil, err
	}

	return &Calibration{
		Curve:       curve,
		Levels:      levels,
		Params:      params,
		Diagnostics: diag,
	}, nil
}

// triggerTimes returns the time of every sample whose trigger level exceeds
// threshold, and how many of those samples directly follow another one.
func triggerTimes(trace *RawTrace, threshold float64) ([]float64, int) {
	var times []float64
	adjacent := 0
	prev := false
	for i, v := range trace.Trigger {
		above := v > threshold
		if above {
			times = append(times, trace.Time[i])
			if prev {
				adjacent++
			}
		}
		prev = above
	}
	return times, adjacent
}

// recoverTR averages the intervals between interior triggers. The first and
// last triggers are dropped; with fewer than four triggers nominal is returned.
func recoverTR(trigTimes []float64, nominal float64) float64 {
	n := len(trigTimes)
	if n < 4 {
		return nominal
	}
	intervals := make([]float64, 0, n-3)
	for i := 2; i < n-1; i++ {
		intervals = append(intervals, trigTimes[i]-trigTimes[i-1])
	}
	return stat.Mean(intervals, nil)
}

// referenceLevels averages the baseline block for normocapnia and the second
// half of both ON blocks for hypercapnia. Block boundaries are in volumes and
// windows are clipped to the curve.
func referenceLevels(co2 []float64, p ProtocolParams, tr float64) (ReferenceLevels, error) {
	baselineVols := p.Baseline / tr
	onVols := p.BlockOn / tr
	offVols := p.BlockOff / tr
	offset := baselineVols + p.MechanicalDelay

	normo := clippedWindow(co2, 0, int(offset))
	if len(normo) == 0 {
		return ReferenceLevels{}, fmt.Errorf("%w: empty normocapnia window", ErrCalibration)
	}

	s1 := int(offset + onVols/2)
	s2 := int(offset + onVols)
	s3 := int(offset + onVols + offVols + onVols/2)
	s4 := int(offset + onVols + offVols + onVols)

	var hyper []float64
	hyper = append(hyper, clippedWindow(co2, s1-1, s2)...)
	hyper = append(hyper, clippedWindow(co2, s3-1, s4)...)
	if len(hyper) == 0 {
		return ReferenceLevels{}, fmt.Errorf("%w: empty hypercapnia window (curve has %d volumes, first ON block ends at %d)",
			ErrCalibration, len(co2), s2)
	}

	return ReferenceLevels{
		Normocap: stat.Mean(normo, nil),
		Hypercap: stat.Mean(hyper, nil),
	}, nil
}

// clippedWindow returns data[lo:hi] with both bounds clamped into range.
func clippedWindow(data []float64, lo, hi int) []float64 {
	lo = max(lo, 0)
	hi = min(hi, len(data))
	if lo >= hi {
		return nil
	}
	return data[lo:hi]
}
