package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/user/petco2_cvr_go/internal/petco2"
)

var (
	colorTrace    = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	colorEnvelope = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	colorPeak     = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255}
	colorNormo    = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}
	colorHyper    = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 255}
)

// spectrumMaxHz limits the spectrum plot to the respiratory band.
const spectrumMaxHz = 1.0

func renderPNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	writer, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func horizontalLine(x0, x1, y float64, c color.Color) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y}, {X: x1, Y: y}})
	if err != nil {
		return nil, err
	}
	l.Color = c
	l.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	return l, nil
}

// CreateTracePlot draws the delay-trimmed PETCO2 trace with the detected
// end-tidal peaks and the reconstructed envelope.
func CreateTracePlot(cal *petco2.Calibration) ([]byte, error) {
	if cal == nil || len(cal.Diagnostics.Trimmed) == 0 {
		return nil, fmt.Errorf("no trace to plot")
	}
	d := cal.Diagnostics
	rate := cal.Params.SampleRate

	raw := make(plotter.XYs, len(d.Trimmed))
	env := make(plotter.XYs, len(d.Envelope))
	for i, v := range d.Trimmed {
		raw[i] = plotter.XY{X: float64(i) / rate, Y: v}
	}
	for i, v := range d.Envelope {
		env[i] = plotter.XY{X: float64(i) / rate, Y: v}
	}
	peaks := make(plotter.XYs, len(d.PeakPositions))
	for i, pos := range d.PeakPositions {
		peaks[i] = plotter.XY{X: float64(pos) / rate, Y: d.PeakValues[i]}
	}

	p := plot.New()
	p.Title.Text = "End-tidal CO2 Trace"
	p.X.Label.Text = fmt.Sprintf("Time from %.1fs (s)", d.TrimStart)
	p.Y.Label.Text = "PETCO2 (%)"
	p.Add(plotter.NewGrid())

	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace line: %w", err)
	}
	rawLine.Color = colorTrace
	rawLine.LineStyle.Width = vg.Points(0.5)

	envLine, err := plotter.NewLine(env)
	if err != nil {
		return nil, fmt.Errorf("failed to create envelope line: %w", err)
	}
	envLine.Color = colorEnvelope
	envLine.LineStyle.Width = vg.Points(1.5)

	peakDots, err := plotter.NewScatter(peaks)
	if err != nil {
		return nil, fmt.Errorf("failed to create peak markers: %w", err)
	}
	peakDots.GlyphStyle.Color = colorPeak
	peakDots.GlyphStyle.Shape = draw.CircleGlyph{}
	peakDots.GlyphStyle.Radius = vg.Points(2)

	p.Add(rawLine, envLine, peakDots)
	p.Legend.Add("Raw PETCO2", rawLine)
	p.Legend.Add("Envelope", envLine)
	p.Legend.Add(fmt.Sprintf("End-tidal peaks (%d)", len(peaks)), peakDots)
	p.Legend.Top = true

	return renderPNG(p, vg.Points(800), vg.Points(400))
}

// CreateCurvePlot draws the calibrated per-volume CO2 regressor with the
// normocapnia and hypercapnia reference levels.
func CreateCurvePlot(cal *petco2.Calibration) ([]byte, error) {
	if cal == nil || cal.Curve == nil || cal.Curve.Len() == 0 {
		return nil, fmt.Errorf("no calibrated curve to plot")
	}
	n := cal.Curve.Len()

	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i] = plotter.XY{X: float64(i), Y: cal.Curve.At(i)}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Calibrated CO2 Regressor (%d volumes, TR %.3fs)", n, cal.Diagnostics.RecoveredTR)
	p.X.Label.Text = "Volume"
	p.Y.Label.Text = "CO2 (mmHg)"
	p.X.Min = 0
	p.X.Max = float64(n - 1)
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create curve line: %w", err)
	}
	line.Color = colorEnvelope
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("CO2", line)

	normo, err := horizontalLine(0, float64(n-1), cal.Levels.Normocap, colorNormo)
	if err != nil {
		return nil, err
	}
	hyper, err := horizontalLine(0, float64(n-1), cal.Levels.Hypercap, colorHyper)
	if err != nil {
		return nil, err
	}
	p.Add(normo, hyper)
	p.Legend.Add(fmt.Sprintf("Normocapnia %.1f mmHg", cal.Levels.Normocap), normo)
	p.Legend.Add(fmt.Sprintf("Hypercapnia %.1f mmHg", cal.Levels.Hypercap), hyper)
	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-10)

	return renderPNG(p, vg.Points(800), vg.Points(400))
}

// CreateSpectrumPlot draws the one-sided amplitude spectrum of the baseline
// block and marks the respiratory peak.
func CreateSpectrumPlot(cal *petco2.Calibration) ([]byte, error) {
	if cal == nil || len(cal.Diagnostics.SpectrumFreq) < 2 {
		return nil, fmt.Errorf("no spectrum to plot")
	}
	d := cal.Diagnostics

	pts := make(plotter.XYs, 0, len(d.SpectrumFreq))
	for i, f := range d.SpectrumFreq {
		if i == 0 || f > spectrumMaxHz {
			continue
		}
		pts = append(pts, plotter.XY{X: f, Y: d.SpectrumAmp[i]})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("no spectrum bins below %.1f Hz", spectrumMaxHz)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Baseline Spectrum (respiratory period %ds)", d.RespPeriod)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Amplitude (%)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create spectrum line: %w", err)
	}
	line.Color = colorEnvelope
	p.Add(line)

	ymin, ymax := plotter.Range(plotter.YValues{XYer: pts})
	marker, err := plotter.NewLine(plotter.XYs{{X: d.PeakFrequency, Y: ymin}, {X: d.PeakFrequency, Y: ymax}})
	if err != nil {
		return nil, fmt.Errorf("failed to create peak marker: %w", err)
	}
	marker.Color = colorPeak
	marker.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(marker)
	p.Legend.Add(fmt.Sprintf("Peak %.3f Hz", d.PeakFrequency), marker)
	p.Legend.Top = true

	return renderPNG(p, vg.Points(800), vg.Points(300))
}
