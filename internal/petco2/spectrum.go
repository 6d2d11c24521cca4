package petco2

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

type spectrum struct {
	freq     []float64 // Hz
	amp      []float64 // one-sided amplitude
	peakFreq float64
	period   int // s
}

// baselineSpectrum computes the amplitude spectrum of the baseline block of
// the trimmed PETCO2 signal and derives the respiratory period from its
// dominant non-DC peak.
func baselineSpectrum(trimmed []float64, p ProtocolParams) (spectrum, error) {
	n := min(int(p.Baseline*p.SampleRate), len(trimmed))
	if n < 2 {
		return spectrum{}, fmt.Errorf("%w: degenerate spectrum (%d baseline samples)", ErrCalibration, n)
	}
	seg := trimmed[:n]
	if floats.Max(seg) == floats.Min(seg) {
		return spectrum{}, fmt.Errorf("%w: degenerate spectrum (no variation in %d baseline samples)", ErrCalibration, n)
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, seg)

	s := spectrum{
		freq: make([]float64, len(coeffs)),
		amp:  make([]float64, len(coeffs)),
	}
	for k, c := range coeffs {
		s.freq[k] = fft.Freq(k) * p.SampleRate
		s.amp[k] = cmplx.Abs(c) / float64(n)
		// Fold negative frequencies; DC and the Nyquist bin of an even length have no mirror.
		if k > 0 && !(n%2 == 0 && k == n/2) {
			s.amp[k] *= 2
		}
	}
	if len(s.amp) < 2 {
		return spectrum{}, fmt.Errorf("%w: degenerate spectrum (no non-zero frequency bin)", ErrCalibration)
	}

	peak := 1 + floats.MaxIdx(s.amp[1:])
	s.peakFreq = s.freq[peak]
	if !(s.peakFreq > 0) {
		return spectrum{}, fmt.Errorf("%w: degenerate spectrum (peak at %v Hz)", ErrCalibration, s.peakFreq)
	}
	s.period = int(math.RoundToEven(1 / s.peakFreq))
	return s, nil
}
