package report

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/user/petco2_cvr_go/internal/analysis"
	"github.com/user/petco2_cvr_go/internal/model"
	"github.com/user/petco2_cvr_go/internal/petco2"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)
)

// Keys of the figures BuildPDFReport looks for.
const (
	PlotTrace        = "trace"
	PlotCurve        = "curve"
	PlotSpectrum     = "spectrum"
	PlotDelayHeatmap = "delay_heatmap"
)

// ReportData is everything the PDF report summarises.
type ReportData struct {
	RunID       string
	Source      string
	Created     time.Time
	Calibration *petco2.Calibration
	Analysis    *analysis.AnalysisResults
	ModelParams []model.Parameter
	Warnings    []string // loader and calibration warnings
}

type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6,
		pageHeight:  pdfPageHeightLandscape - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["small"] = func() {
		s.pdf.SetFont("Arial", "I", 8)
		s.pdf.SetTextColor(90, 90, 90)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellRed"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetTextColor(200, 0, 0)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.newPage()
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := s.pdf.SplitLines([]byte(text), pdfContentWidth)
	s.checkAddPage(float64(len(lines)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.checkAddPage(height)
	s.currentY += height
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width float64, height float64, caption string) {
	s.pdf.RegisterImageOptionsReader(imageName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(imageBytes))

	if width > pdfContentWidth {
		height *= pdfContentWidth / width
		width = pdfContentWidth
	}
	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.ImageOptions(imageName, x, s.currentY, width, height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "small", "C")
	}
	s.addSpacer(2)
}

// writeTable draws a bordered table; red marks cells to highlight.
func (s *pdfStyler) writeTable(headers []string, widthsRel []float64, rows [][]string, red func(row, col int) bool) {
	widths := make([]float64, len(widthsRel))
	for i, rel := range widthsRel {
		widths[i] = rel * pdfContentWidth
	}

	header := func() {
		s.applyStyle("tableHeader")
		x := pdfMargin
		for i, h := range headers {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, h, "1", 0, "C", true, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}

	s.checkAddPage(s.lineHeight * 2)
	header()
	for r, row := range rows {
		if s.currentY+s.lineHeight > s.pageHeight {
			s.newPage()
			header()
		}
		x := pdfMargin
		for c, cell := range row {
			if red != nil && red(r, c) {
				s.applyStyle("tableCellRed")
			} else {
				s.applyStyle("tableCell")
			}
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[c], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			x += widths[c]
		}
		s.currentY += s.lineHeight
	}
	s.addSpacer(4)
}

func summaryRows(cal *petco2.Calibration) [][]string {
	d := cal.Diagnostics
	p := cal.Params
	return [][]string{
		{"Trigger events", fmt.Sprintf("%d", d.TriggerCount)},
		{"Adjacent trigger samples", fmt.Sprintf("%d", d.AdjacentTriggers)},
		{"Volumes", fmt.Sprintf("%d", d.Volumes)},
		{"TR (nominal / recovered)", fmt.Sprintf("%.4f s / %.4f s", d.NominalTR, d.RecoveredTR)},
		{"Mechanical delay", fmt.Sprintf("%.1f s (trace kept from %.2f s)", p.MechanicalDelay, d.TrimStart)},
		{"Respiratory frequency", fmt.Sprintf("%.4f Hz (period %d s)", d.PeakFrequency, d.RespPeriod)},
		{"Search window", fmt.Sprintf("%d samples, %d peaks", d.WindowSamples, len(d.PeakPositions))},
		{"Barometric pressure", fmt.Sprintf("%.1f mbar = %.1f mmHg", p.AirPressure, d.PressureMmHg)},
		{"Normocapnia", fmt.Sprintf("%.2f mmHg", cal.Levels.Normocap)},
		{"Hypercapnia", fmt.Sprintf("%.2f mmHg", cal.Levels.Hypercap)},
		{"Stimulus (hyper - normo)", fmt.Sprintf("%.2f mmHg", cal.Levels.Delta())},
	}
}

// BuildPDFReport writes a calibration report to filepath.
func BuildPDFReport(filepath string, data ReportData, plotImages map[string][]byte) error {
	if data.Calibration == nil || data.Calibration.Curve == nil {
		return fmt.Errorf("no calibration to report")
	}
	cal := data.Calibration

	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle("PETCO2 Calibration Report", true)
	pdf.AddPage()

	styler := newPDFStyler(pdf)

	styler.writeParagraph("PETCO2 Calibration Report", "h1", "C")
	created := data.Created
	if created.IsZero() {
		created = time.Now()
	}
	styler.writeParagraph(fmt.Sprintf("Run %s, %s", data.RunID, created.Format(time.RFC3339)), "small", "C")
	if data.Source != "" {
		styler.writeParagraph(fmt.Sprintf("Physiological data: %s", data.Source), "normal", "L")
	}
	styler.addSpacer(4)

	styler.writeParagraph("Calibration Summary", "h2", "L")
	styler.writeTable([]string{"Quantity", "Value"}, []float64{0.4, 0.6}, summaryRows(cal), func(row, col int) bool {
		return row == 9 && col == 1 && cal.Levels.Delta() <= 0
	})

	if data.Analysis != nil && len(data.Analysis.Blocks) > 0 {
		styler.writeParagraph("Protocol Blocks", "h2", "L")
		rows := make([][]string, len(data.Analysis.Blocks))
		for i, b := range data.Analysis.Blocks {
			rows[i] = []string{
				b.Name,
				fmt.Sprintf("%d-%d", b.StartVol, b.EndVol-1),
				fmt.Sprintf("%.2f", b.Mean),
				fmt.Sprintf("%.2f", b.StdDev),
				fmt.Sprintf("%.2f", b.Range),
				fmt.Sprintf("%+.2f", b.Response),
			}
		}
		blocks := data.Analysis.Blocks
		styler.writeTable(
			[]string{"Block", "Volumes", "Mean (mmHg)", "Std Dev (mmHg)", "Range (mmHg)", "Response (mmHg)"},
			[]float64{0.15, 0.15, 0.175, 0.175, 0.175, 0.175},
			rows,
			func(row, col int) bool { return col == 5 && blocks[row].IsWeak },
		)
		styler.writeParagraph(fmt.Sprintf("Breathing: %.1f breaths/min, peak spacing %.2f +/- %.2f s. Trigger jitter %.4f s.",
			data.Analysis.BreathsPerMin, data.Analysis.BreathInterval, data.Analysis.BreathIntervalSD, data.Analysis.TriggerJitter), "normal", "L")
		styler.addSpacer(4)
	}

	if len(data.ModelParams) > 0 {
		styler.writeParagraph("Forward Model Parameters", "h2", "L")
		rows := make([][]string, len(data.ModelParams))
		for i, mp := range data.ModelParams {
			rows[i] = []string{mp.Name, fmt.Sprintf("%g", mp.Mean), fmt.Sprintf("%g", mp.PriorVar),
				fmt.Sprintf("%g", mp.PostMean), fmt.Sprintf("%g", mp.PostVar)}
		}
		styler.writeTable([]string{"Parameter", "Prior mean", "Prior var", "Initial post. mean", "Initial post. var"},
			[]float64{0.2, 0.2, 0.2, 0.2, 0.2}, rows, nil)
	}

	var warnings []string
	warnings = append(warnings, data.Warnings...)
	if data.Analysis != nil {
		warnings = append(warnings, data.Analysis.AnalysisErrors...)
	}
	if len(warnings) > 0 {
		styler.writeParagraph("Warnings", "h2", "L")
		for _, w := range warnings {
			styler.writeParagraph(w, "normal", "L")
		}
	}

	plotDefs := []struct {
		Key     string
		Title   string
		Caption string
		Aspect  float64
	}{
		{PlotTrace, "End-tidal Trace", "Delay-trimmed PETCO2 with end-tidal peaks and linear envelope", 0.5},
		{PlotSpectrum, "Respiratory Spectrum", "One-sided amplitude spectrum of the baseline block", 0.375},
		{PlotCurve, "Calibrated Regressor", "Per-volume CO2 partial pressure with reference levels", 0.5},
		{PlotDelayHeatmap, "Delay Sweep", "Regressor sampled with increasing delay (rows) at every volume (columns)", 0.5},
	}

	imgWidth := pdfContentWidth * 0.85
	for _, pDef := range plotDefs {
		styler.newPage()
		styler.writeParagraph(pDef.Title, "h2", "L")
		if imgBytes, ok := plotImages[pDef.Key]; ok && len(imgBytes) > 0 {
			styler.addImage(imgBytes, pDef.Key, imgWidth, imgWidth*pDef.Aspect, pDef.Caption)
		} else {
			log.Printf("Warning: plot %q missing from report", pDef.Key)
			styler.writeParagraph(fmt.Sprintf("Plot for %s not available.", pDef.Title), "normal", "L")
		}
	}

	return pdf.OutputFileAndClose(filepath)
}
