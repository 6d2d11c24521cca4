package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

var curveCSVHeader = []string{"run_id", "volume", "time_s", "co2_mmhg", "diff_mmhg"}

// WriteCurveCSV writes one row per volume: run id, volume index, volume
// start time at the recovered TR, CO2 in mmHg and the difference to the next
// volume.
func WriteCurveCSV(w io.Writer, cal *petco2.Calibration, runID string) error {
	if cal == nil || cal.Curve == nil {
		return fmt.Errorf("no calibrated curve to write")
	}
	tr := cal.Diagnostics.RecoveredTR

	cw := csv.NewWriter(w)
	if err := cw.Write(curveCSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := 0; i < cal.Curve.Len(); i++ {
		row := []string{
			runID,
			strconv.Itoa(i),
			strconv.FormatFloat(float64(i)*tr, 'f', 4, 64),
			strconv.FormatFloat(cal.Curve.At(i), 'f', 6, 64),
			strconv.FormatFloat(cal.Curve.DiffAt(i), 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCurveCSV writes the curve CSV to path.
func SaveCurveCSV(path string, cal *petco2.Calibration, runID string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := WriteCurveCSV(file, cal, runID); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
