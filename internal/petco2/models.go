// Package petco2 turns a raw end-tidal CO2 recording into a per-volume CO2
// regressor in mmHg aligned to the scanner volumes, and samples that
// regressor at fractional, delay-shifted volume times.
//
// Calibrate runs once per recording. The resulting CalibratedCurve is
// immutable and safe for concurrent use by any number of samplers.
package petco2

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MbarPerMmHg converts barometric pressure from millibar to mmHg.
const MbarPerMmHg = 1.33322387415

// RawTrace holds the four parallel channels of a physiological recording.
type RawTrace struct {
	Time    []float64 // Seconds, strictly increasing
	PETCO2  []float64 // End-tidal CO2, percent
	PETO2   []float64 // End-tidal O2, percent (carried, not used by the calibrator)
	Trigger []float64 // Scanner trigger channel, volts
}

// Len returns the number of samples in the trace.
func (rt *RawTrace) Len() int {
	return len(rt.Time)
}

// Validate checks that all channels are non-empty, of equal length, and that
// time is strictly increasing.
func (rt *RawTrace) Validate() error {
	n := len(rt.Time)
	if n == 0 {
		return fmt.Errorf("%w: raw trace is empty", ErrInputShape)
	}
	if len(rt.PETCO2) != n || len(rt.PETO2) != n || len(rt.Trigger) != n {
		return fmt.Errorf("%w: channel lengths differ (time=%d petco2=%d peto2=%d trigger=%d)",
			ErrInputShape, n, len(rt.PETCO2), len(rt.PETO2), len(rt.Trigger))
	}
	for i := 1; i < n; i++ {
		if rt.Time[i] <= rt.Time[i-1] {
			return fmt.Errorf("%w: time not strictly increasing at sample %d (%.4f <= %.4f)",
				ErrInputShape, i, rt.Time[i], rt.Time[i-1])
		}
	}
	return nil
}

// ProtocolParams describes the gas-challenge protocol and the recording device.
// It is a value type; Calibrate never modifies it.
type ProtocolParams struct {
	Baseline         float64 // Length of the initial baseline block, s
	BlockOn          float64 // Length of each ON (hypercapnic) block, s
	BlockOff         float64 // Length of each OFF block, s
	SampleRate       float64 // Recorder sampling rate, Hz
	AirPressure      float64 // Barometric pressure, mbar
	TriggerThreshold float64 // Trigger channel level above which a sample is a trigger
	MechanicalDelay  float64 // Gas line transit delay, s
}

// DefaultProtocolParams returns the standard block-design protocol.
func DefaultProtocolParams() ProtocolParams {
	return ProtocolParams{
		Baseline:         60,
		BlockOn:          120,
		BlockOff:         120,
		SampleRate:       100,
		AirPressure:      1020,
		TriggerThreshold: 3,
		MechanicalDelay:  15,
	}
}

// Validate rejects non-positive durations, rates and pressures.
func (p ProtocolParams) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"baseline", p.Baseline},
		{"blocksize_on", p.BlockOn},
		{"blocksize_off", p.BlockOff},
		{"samp_rate", p.SampleRate},
		{"air_pressure", p.AirPressure},
	}
	for _, f := range positive {
		if !(f.value > 0) {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrRange, f.name, f.value)
		}
	}
	if p.MechanicalDelay < 0 {
		return fmt.Errorf("%w: delay must be >= 0, got %v", ErrRange, p.MechanicalDelay)
	}
	return nil
}

// CalibratedCurve is the per-volume CO2 regressor in mmHg together with its
// first differences. The last difference is zero.
type CalibratedCurve struct {
	co2  []float64
	diff []float64
}

// NewCalibratedCurve builds a curve from per-volume mmHg values and derives
// the difference array.
func NewCalibratedCurve(co2 []float64) *CalibratedCurve {
	c := &CalibratedCurve{
		co2:  make([]float64, len(co2)),
		diff: make([]float64, len(co2)),
	}
	copy(c.co2, co2)
	for i := 0; i < len(co2)-1; i++ {
		c.diff[i] = co2[i+1] - co2[i]
	}
	return c
}

// Len returns the number of volumes.
func (c *CalibratedCurve) Len() int { return len(c.co2) }

// At returns the CO2 value of volume i.
func (c *CalibratedCurve) At(i int) float64 { return c.co2[i] }

// DiffAt returns co2[i+1]-co2[i], or 0 for the last volume.
func (c *CalibratedCurve) DiffAt(i int) float64 { return c.diff[i] }

// CO2 returns a copy of the curve values.
func (c *CalibratedCurve) CO2() []float64 {
	out := make([]float64, len(c.co2))
	copy(out, c.co2)
	return out
}

// Diff returns a copy of the difference array.
func (c *CalibratedCurve) Diff() []float64 {
	out := make([]float64, len(c.diff))
	copy(out, c.diff)
	return out
}

// ReferenceLevels are the normocapnic and hypercapnic CO2 levels in mmHg.
type ReferenceLevels struct {
	Normocap float64
	Hypercap float64
}

// Delta returns Hypercap - Normocap.
func (r ReferenceLevels) Delta() float64 {
	return r.Hypercap - r.Normocap
}

// Diagnostics keeps the intermediate products of calibration for reporting.
type Diagnostics struct {
	TriggerCount  int
	TriggerTimes  []float64 // s
	RecoveredTR   float64   // s, from trigger intervals (equals NominalTR when too few triggers)
	NominalTR     float64   // s, as supplied by the caller
	Volumes       int
	TrimStart     float64 // s, first kept sample time
	Trimmed       []float64
	SpectrumFreq  []float64 // Hz
	SpectrumAmp   []float64 // one-sided amplitude
	PeakFrequency float64   // Hz
	RespPeriod    int       // s
	WindowSamples int
	PeakPositions []int
	PeakValues    []float64
	Envelope      []float64
	BlockSamples  int
	PressureMmHg  float64
	VolumeSamples []float64 // envelope value per volume, percent

	// AdjacentTriggers counts trigger samples whose predecessor was also above threshold.
	AdjacentTriggers int
}

// Calibration bundles everything Calibrate produces.
type Calibration struct {
	Curve       *CalibratedCurve
	Levels      ReferenceLevels
	Params      ProtocolParams
	Diagnostics Diagnostics
}

// EvaluationRequest is a batch of timepoints to sample the curve at.
type EvaluationRequest struct {
	Timepoints *mat.Dense // nodes x time, in volumes; one row is shared by every node
	Delay      *mat.Dense // nodes x samples, in volumes; nil disables delay shifting
}
