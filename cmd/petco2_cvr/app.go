package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/user/petco2_cvr_go/internal/analysis"
	"github.com/user/petco2_cvr_go/internal/config"
	"github.com/user/petco2_cvr_go/internal/model"
	"github.com/user/petco2_cvr_go/internal/parser"
	"github.com/user/petco2_cvr_go/internal/petco2"
	"github.com/user/petco2_cvr_go/internal/report"
)

// delaySweepSteps is the number of rows in the report's delay heatmap.
const delaySweepSteps = 41

// App runs one calibration from a loaded configuration.
type App struct {
	cfg         *config.Config
	minResponse float64
	runID       string
	status      func(string)
}

// RunResult is what a successful run produced.
type RunResult struct {
	RunID       string
	Calibration *petco2.Calibration
	Analysis    *analysis.AnalysisResults
	Model       *model.CvrModel
	Warnings    []string
}

// NewApp creates an App with a fresh run identifier. Status messages go to
// the standard logger.
func NewApp(cfg *config.Config, minResponse float64) *App {
	return &App{
		cfg:         cfg,
		minResponse: minResponse,
		runID:       uuid.NewString(),
		status:      func(msg string) { log.Println(msg) },
	}
}

func (a *App) sendStatus(message string) {
	if a.status != nil {
		a.status(message)
	}
}

// Run loads the physiological data, calibrates it and writes the configured
// outputs. A failed calibration is always returned as an error.
func (a *App) Run() (res *RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PANIC recovered: %v", r)
			a.sendStatus(err.Error())
		}
	}()

	cfg := a.cfg
	a.sendStatus(fmt.Sprintf("Run %s: phys=[%s], TR=%.4fs, PDF=[%s], CSV=[%s]", a.runID, cfg.PhysData, cfg.TR, cfg.PDFPath, cfg.CSVPath))

	a.sendStatus(fmt.Sprintf("Parsing: %s", cfg.PhysData))
	parsed, err := parser.ParsePhysData(cfg.PhysData)
	if err != nil {
		return nil, fmt.Errorf("error parsing physiological data: %w", err)
	}
	a.sendStatus(fmt.Sprintf("Parsed %d samples (%d rows skipped).", parsed.Rows, parsed.Skipped))
	if len(parsed.ParseErrors) > 0 {
		a.sendStatus("Parsing Warnings:")
		for _, e := range parsed.ParseErrors {
			a.sendStatus(fmt.Sprintf("- %s", e))
		}
	}

	a.sendStatus("Calibrating PETCO2 trace...")
	cal, err := petco2.Calibrate(parsed.Trace, cfg.ProtocolParams(), cfg.TR)
	if err != nil {
		return nil, fmt.Errorf("error calibrating: %w", err)
	}
	d := cal.Diagnostics
	a.sendStatus(fmt.Sprintf("Calibration complete. %d volumes at TR %.4fs, respiratory period %ds, %d end-tidal peaks.",
		d.Volumes, d.RecoveredTR, d.RespPeriod, len(d.PeakPositions)))
	a.sendStatus(fmt.Sprintf("Normocapnia %.2f mmHg, hypercapnia %.2f mmHg, stimulus %.2f mmHg.",
		cal.Levels.Normocap, cal.Levels.Hypercap, cal.Levels.Delta()))

	results, err := analysis.AnalyzeCalibration(cal, a.minResponse)
	if err != nil {
		return nil, fmt.Errorf("error analyzing calibration: %w", err)
	}
	if len(results.AnalysisErrors) > 0 {
		a.sendStatus("Analysis Warnings:")
		for _, e := range results.AnalysisErrors {
			a.sendStatus(fmt.Sprintf("- %s", e))
		}
	}

	nTpts := cfg.NTpts
	if nTpts == 0 {
		nTpts = cal.Curve.Len()
	}
	m, err := model.New(cal, nTpts, cfg.ModelOptions())
	if err != nil {
		return nil, fmt.Errorf("error building model: %w", err)
	}
	if err := a.checkModel(m); err != nil {
		return nil, err
	}

	out := &RunResult{
		RunID:       a.runID,
		Calibration: cal,
		Analysis:    results,
		Model:       m,
		Warnings:    parsed.ParseErrors,
	}

	if cfg.CSVPath != "" {
		a.sendStatus(fmt.Sprintf("Writing curve CSV: %s", cfg.CSVPath))
		if err := report.SaveCurveCSV(cfg.CSVPath, cal, a.runID); err != nil {
			return nil, fmt.Errorf("error writing CSV: %w", err)
		}
	}
	if cfg.PDFPath != "" {
		if err := a.writeReport(out, parsed.Source); err != nil {
			return nil, err
		}
	}

	a.sendStatus("Done.")
	return out, nil
}

// checkModel evaluates the forward model once at the prior means.
func (a *App) checkModel(m *model.CvrModel) error {
	params := m.Params()
	values := make([]*mat.Dense, len(params))
	for i, p := range params {
		values[i] = mat.NewDense(1, 1, []float64{p.Mean})
	}
	tpts := m.Tpts()
	signal, err := m.Evaluate(values, mat.NewDense(1, len(tpts), tpts))
	if err != nil {
		return fmt.Errorf("error evaluating model: %w", err)
	}
	row := signal[0].RawRowView(0)
	a.sendStatus(fmt.Sprintf("%s; prior-mean signal %.3f to %.3f.", m, floats.Min(row), floats.Max(row)))
	return nil
}

func (a *App) writeReport(res *RunResult, source string) error {
	cal := res.Calibration

	a.sendStatus("Generating plots...")
	plotImages := make(map[string][]byte)
	plotConfigs := []struct {
		Name   string
		Create func() ([]byte, error)
	}{
		{report.PlotTrace, func() ([]byte, error) { return report.CreateTracePlot(cal) }},
		{report.PlotSpectrum, func() ([]byte, error) { return report.CreateSpectrumPlot(cal) }},
		{report.PlotCurve, func() ([]byte, error) { return report.CreateCurvePlot(cal) }},
		{report.PlotDelayHeatmap, func() ([]byte, error) {
			return report.CreateDelayHeatmap(cal.Curve, a.cfg.MaxDelay, delaySweepSteps)
		}},
	}
	for _, pc := range plotConfigs {
		a.sendStatus(fmt.Sprintf("Plot: %s", pc.Name))
		img, err := pc.Create()
		if err != nil {
			a.sendStatus(fmt.Sprintf("Error generating plot %s: %v", pc.Name, err))
			continue
		}
		plotImages[pc.Name] = img
	}

	a.sendStatus(fmt.Sprintf("Generating PDF: %s...", a.cfg.PDFPath))
	err := report.BuildPDFReport(a.cfg.PDFPath, report.ReportData{
		RunID:       res.RunID,
		Source:      source,
		Created:     time.Now(),
		Calibration: cal,
		Analysis:    res.Analysis,
		ModelParams: res.Model.Params(),
		Warnings:    res.Warnings,
	}, plotImages)
	if err != nil {
		return fmt.Errorf("error generating PDF report: %w", err)
	}
	a.sendStatus(fmt.Sprintf("PDF report successfully generated: %s", a.cfg.PDFPath))
	return nil
}
