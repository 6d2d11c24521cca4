package petco2

import "errors"

// Failure classes. Every error returned by this package wraps exactly one of
// them; use errors.Is to classify.
var (
	// ErrInputShape reports empty or mismatched raw trace channels.
	ErrInputShape = errors.New("input shape error")
	// ErrCalibration reports a trace that cannot be turned into a regressor.
	ErrCalibration = errors.New("calibration error")
	// ErrRange reports malformed protocol parameters.
	ErrRange = errors.New("range error")
)
