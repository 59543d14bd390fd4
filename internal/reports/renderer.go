package reports

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// chartPalette is cycled through for bar and pie fills.
var chartPalette = [][3]int{
	{52, 101, 164},
	{204, 85, 51},
	{78, 154, 6},
	{196, 160, 0},
	{117, 80, 123},
	{164, 0, 0},
}

// Renderer turns a completed report into a PDF on disk. Charts are drawn with
// PDF primitives and the insights narrative is rendered from markdown.
type Renderer struct {
	outputDir string
	logger    arbor.ILogger
}

// NewRenderer creates the PDF renderer and ensures the output directory
// exists.
func NewRenderer(outputDir string, logger arbor.ILogger) (*Renderer, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report output directory: %w", err)
	}
	return &Renderer{outputDir: outputDir, logger: logger}, nil
}

// OutputPath returns the artifact path a job id renders to. The path is
// stable from submission onward so pending job metadata can carry it.
func (r *Renderer) OutputPath(jobID string) string {
	return filepath.Join(r.outputDir, fmt.Sprintf("report_%s.pdf", jobID))
}

// Render writes the PDF for a report and returns the artifact path. The
// written file is validated before the path is returned, so a corrupt
// artifact fails the render job instead of being handed to the caller.
func (r *Renderer) Render(report *models.Report, jobID string) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	r.writeTitle(pdf, report)
	r.writeSummary(pdf, report)
	r.writeCategoryTable(pdf, report)
	r.writeCharts(pdf, report)
	r.writeInsights(pdf, report)
	r.writeResultsTable(pdf, report)

	outputPath := r.OutputPath(jobID)
	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return "", fmt.Errorf("failed to write PDF: %w", err)
	}

	if err := api.ValidateFile(outputPath, nil); err != nil {
		return "", fmt.Errorf("generated PDF failed validation: %w", err)
	}

	r.logger.Debug().
		Str("path", outputPath).
		Int("records", report.Analysis.TotalRecords).
		Msg("Report PDF written")

	return outputPath, nil
}

func (r *Renderer) writeTitle(pdf *fpdf.Fpdf, report *models.Report) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Intellectual Property Search Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("Search criteria: %s", report.SearchCriteria), "", 1, "C", false, 0, "")
	pdf.Ln(4)
}

func (r *Renderer) writeSummary(pdf *fpdf.Fpdf, report *models.Report) {
	r.sectionHeading(pdf, "Summary")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Records collected: %d", report.DataCollected), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Records analyzed: %d", report.Analysis.TotalRecords), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Categories found: %d", len(report.Analysis.CountByCategory)), "", 1, "L", false, 0, "")
	if report.ErrorMessage != "" {
		pdf.SetTextColor(164, 0, 0)
		pdf.MultiCell(0, 6, fmt.Sprintf("Pipeline error: %s", report.ErrorMessage), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)
}

func (r *Renderer) writeCategoryTable(pdf *fpdf.Fpdf, report *models.Report) {
	if len(report.Analysis.CountByCategory) == 0 {
		return
	}

	r.sectionHeading(pdf, "Records by Category")

	categories := make([]string, 0, len(report.Analysis.CountByCategory))
	for category := range report.Analysis.CountByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(90, 7, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "Records", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, category := range categories {
		pdf.CellFormat(90, 7, category, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%d", report.Analysis.CountByCategory[category]), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *Renderer) writeCharts(pdf *fpdf.Fpdf, report *models.Report) {
	if len(report.Visualizations) == 0 {
		return
	}

	names := make([]string, 0, len(report.Visualizations))
	for name := range report.Visualizations {
		names = append(names, name)
	}
	sort.Strings(names)

	wrote := false
	for _, name := range names {
		spec, err := NormalizeChart(name, report.Visualizations[name])
		if err != nil {
			r.logger.Warn().Err(err).Str("chart", name).Msg("Skipping chart with unrecognized shape")
			continue
		}
		if !wrote {
			r.sectionHeading(pdf, "Visualizations")
			wrote = true
		}
		r.drawChart(pdf, spec)
	}
}

func (r *Renderer) drawChart(pdf *fpdf.Fpdf, spec *models.ChartSpec) {
	const chartHeight = 70.0
	if pdf.GetY()+chartHeight+20 > 270 {
		pdf.AddPage()
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, spec.Title, "", 1, "L", false, 0, "")

	switch spec.Kind {
	case models.ChartKindPie:
		r.drawPieChart(pdf, spec)
	case models.ChartKindLine:
		r.drawLineChart(pdf, spec)
	default:
		r.drawBarChart(pdf, spec)
	}
	pdf.Ln(6)
}

func (r *Renderer) drawBarChart(pdf *fpdf.Fpdf, spec *models.ChartSpec) {
	series := spec.Series[0]
	if len(series.Values) == 0 {
		return
	}

	const plotW, plotH = 160.0, 60.0
	left := 25.0
	top := pdf.GetY() + 2
	maxVal := maxValue(series.Values)

	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(left, top, left, top+plotH)
	pdf.Line(left, top+plotH, left+plotW, top+plotH)

	barW := plotW / float64(len(series.Values)) * 0.7
	gap := plotW / float64(len(series.Values)) * 0.3
	pdf.SetFont("Arial", "", 7)
	for i, val := range series.Values {
		c := chartPalette[i%len(chartPalette)]
		pdf.SetFillColor(c[0], c[1], c[2])
		barH := plotH * val / maxVal
		x := left + gap/2 + float64(i)*(barW+gap)
		pdf.Rect(x, top+plotH-barH, barW, barH, "F")
		pdf.SetXY(x-gap/2, top+plotH+1)
		pdf.CellFormat(barW+gap, 4, truncate(series.Labels[i], 14), "", 0, "C", false, 0, "")
		pdf.SetXY(x-gap/2, top+plotH-barH-4)
		pdf.CellFormat(barW+gap, 4, formatValue(val), "", 0, "C", false, 0, "")
	}
	pdf.SetY(top + plotH + 7)
}

func (r *Renderer) drawPieChart(pdf *fpdf.Fpdf, spec *models.ChartSpec) {
	series := spec.Series[0]
	total := 0.0
	for _, v := range series.Values {
		total += v
	}
	if total == 0 {
		return
	}

	const radius = 28.0
	cx := 60.0
	cy := pdf.GetY() + radius + 4

	angle := -90.0
	for i, val := range series.Values {
		sweep := val / total * 360
		c := chartPalette[i%len(chartPalette)]
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.MoveTo(cx, cy)
		pdf.LineTo(cx+radius*cosDeg(angle), cy+radius*sinDeg(angle))
		pdf.ArcTo(cx, cy, radius, radius, 0, -angle, -(angle + sweep))
		pdf.ClosePath()
		pdf.DrawPath("F")
		angle += sweep
	}

	// Legend to the right of the pie
	pdf.SetFont("Arial", "", 8)
	legendY := cy - radius
	for i, label := range series.Labels {
		c := chartPalette[i%len(chartPalette)]
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.Rect(100, legendY, 4, 4, "F")
		pdf.SetXY(106, legendY)
		share := series.Values[i] / total * 100
		pdf.CellFormat(80, 4, fmt.Sprintf("%s (%.0f%%)", truncate(label, 30), share), "", 0, "L", false, 0, "")
		legendY += 6
	}

	pdf.SetY(math.Max(cy+radius, legendY) + 4)
}

func (r *Renderer) drawLineChart(pdf *fpdf.Fpdf, spec *models.ChartSpec) {
	series := spec.Series[0]
	if len(series.Values) == 0 {
		return
	}

	const plotW, plotH = 160.0, 60.0
	left := 25.0
	top := pdf.GetY() + 2
	maxVal := maxValue(series.Values)

	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(left, top, left, top+plotH)
	pdf.Line(left, top+plotH, left+plotW, top+plotH)

	step := plotW
	if len(series.Values) > 1 {
		step = plotW / float64(len(series.Values)-1)
	}

	c := chartPalette[0]
	pdf.SetDrawColor(c[0], c[1], c[2])
	pdf.SetFillColor(c[0], c[1], c[2])
	pdf.SetLineWidth(0.5)

	prevX, prevY := 0.0, 0.0
	pdf.SetFont("Arial", "", 7)
	for i, val := range series.Values {
		x := left + float64(i)*step
		y := top + plotH - plotH*val/maxVal
		if i > 0 {
			pdf.Line(prevX, prevY, x, y)
		}
		pdf.Circle(x, y, 1, "F")
		pdf.SetXY(x-8, top+plotH+1)
		pdf.CellFormat(16, 4, truncate(series.Labels[i], 8), "", 0, "C", false, 0, "")
		prevX, prevY = x, y
	}
	pdf.SetLineWidth(0.2)
	pdf.SetY(top + plotH + 7)
}

// writeInsights renders the markdown narrative through a goldmark AST walk
// so bold spans and lists survive into the PDF.
func (r *Renderer) writeInsights(pdf *fpdf.Fpdf, report *models.Report) {
	if report.Insights == "" {
		return
	}

	r.sectionHeading(pdf, "Insights")
	pdf.SetFont("Arial", "", 10)

	md := goldmark.New(goldmark.WithExtensions(extension.Strikethrough))
	source := []byte(report.Insights)
	doc := md.Parser().Parse(text.NewReader(source))

	walker := &insightsWriter{pdf: pdf, source: source}
	if err := ast.Walk(doc, walker.walk); err != nil {
		r.logger.Warn().Err(err).Msg("Falling back to plain insights text")
		pdf.MultiCell(0, 5, report.Insights, "", "L", false)
	}
	pdf.Ln(4)
}

func (r *Renderer) writeResultsTable(pdf *fpdf.Fpdf, report *models.Report) {
	if len(report.ClassifiedData) == 0 {
		return
	}

	const maxRows = 25
	r.sectionHeading(pdf, "Detailed Results")

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(75, 7, "Title", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 7, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "Applicant", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Date", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 8)
	for i, item := range report.ClassifiedData {
		if i >= maxRows {
			pdf.SetFont("Arial", "I", 8)
			pdf.CellFormat(0, 6, fmt.Sprintf("... and %d more records", len(report.ClassifiedData)-maxRows), "", 1, "L", false, 0, "")
			break
		}
		pdf.CellFormat(75, 6, truncate(item.Title, 45), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, truncate(item.Category, 20), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, truncate(item.Applicant, 24), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, truncate(item.DateFound, 16), "1", 1, "L", false, 0, "")
	}
}

func (r *Renderer) sectionHeading(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
}

// insightsWriter is a minimal goldmark walker for the narrative text. It
// handles the node kinds the analyzer actually emits.
type insightsWriter struct {
	pdf    *fpdf.Fpdf
	source []byte
	bold   bool
	italic bool
}

func (w *insightsWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Text:
		if entering {
			w.pdf.Write(5, string(node.Text(w.source)))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.updateFont()
	case *ast.Paragraph:
		if !entering {
			w.pdf.Ln(7)
		}
	case *ast.ListItem:
		if entering {
			w.pdf.Ln(5)
			w.pdf.SetX(20)
			w.pdf.Write(5, "- ")
		}
	}
	return ast.WalkContinue, nil
}

func (w *insightsWriter) updateFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont("Arial", style, 10)
}

func maxValue(values []float64) float64 {
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		max = 1
	}
	return max
}

// truncate shortens a string to max characters, counting runes so multi-byte
// text is never cut mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func cosDeg(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }
func sinDeg(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }
