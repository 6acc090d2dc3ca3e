package report

import (
	"fmt"
	"io"
	"strconv"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/byteforge/internal/model"
)

// pdfSeverityRGB mirrors severityColors for the PDF renderer.
var pdfSeverityRGB = map[model.Severity][3]int{
	model.SeverityCritical: {220, 38, 38},
	model.SeverityHigh:     {234, 88, 12},
	model.SeverityMedium:   {202, 138, 4},
	model.SeverityLow:      {37, 99, 235},
	model.SeverityInfo:     {107, 114, 128},
}

// PDFWriter renders the report as an A4 PDF document.
type PDFWriter struct {
	baseWriter
}

// NewPDFWriter creates a PDFWriter that outputs to the given writer.
func NewPDFWriter(output io.Writer) *PDFWriter {
	return &PDFWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the report as PDF.
func (w *PDFWriter) Write(report *Report) (int, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Security Assessment Report", true)
	pdf.SetCreator("ByteForge", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	// Core fonts are cp1252; translate UTF-8 text before writing.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	titleCase := cases.Title(language.English)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s - page %d/{nb}", report.ReportID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	w.addCover(pdf, report, tr)
	w.addSummary(pdf, report, titleCase)
	w.addFindings(pdf, report, tr, titleCase)

	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("render pdf report: %w", err)
	}

	cw := &countingWriter{w: w.output}
	if err := pdf.Output(cw); err != nil {
		return cw.n, fmt.Errorf("write pdf report: %w", err)
	}
	return cw.n, nil
}

func (w *PDFWriter) addCover(pdf *gofpdf.Fpdf, report *Report, tr func(string) string) {
	pdf.SetFillColor(15, 23, 42)
	pdf.Rect(0, 0, 210, 40, "F")

	pdf.SetXY(15, 12)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(0, 10, "Security Assessment Report", "", 1, "L", false, 0, "")

	pdf.SetX(15)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(203, 213, 225)
	pdf.CellFormat(0, 6, tr(report.ReportID+"  |  "+report.TargetName+"  |  "+report.GeneratedAt.Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")

	pdf.SetY(48)
}

func (w *PDFWriter) addSummary(pdf *gofpdf.Fpdf, report *Report, titleCase cases.Caser) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(15, 23, 42)
	pdf.CellFormat(0, 8, "Executive Summary", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, fmt.Sprintf("Risk score %d/100 (%s). %d finding(s) were identified.",
		report.RiskScore, titleCase.String(report.RiskLevel()), report.TotalFindings()), "", "L", false)
	pdf.Ln(3)

	// Risk meter.
	x, y := pdf.GetX(), pdf.GetY()
	pdf.SetFillColor(226, 232, 240)
	pdf.Rect(x, y, 180, 5, "F")
	rgb := pdfSeverityRGB[severityForScore(report.RiskScore)]
	pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
	if report.RiskScore > 0 {
		pdf.Rect(x, y, 180*float64(report.RiskScore)/100, 5, "F")
	}
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(60, 8, "Severity", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Count", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, sev := range model.AllSeverities {
		rgb := pdfSeverityRGB[sev]
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.CellFormat(60, 7, titleCase.String(sev.String()), "1", 0, "L", false, 0, "")
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(30, 7, strconv.Itoa(report.Counts.Get(sev)), "1", 1, "C", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(60, 7, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, strconv.Itoa(report.TotalFindings()), "1", 1, "C", false, 0, "")
	pdf.Ln(6)
}

func (w *PDFWriter) addFindings(pdf *gofpdf.Fpdf, report *Report, tr func(string) string, titleCase cases.Caser) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(15, 23, 42)
	pdf.CellFormat(0, 8, "Findings", "", 1, "L", false, 0, "")

	if !report.HasFindings() {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.CellFormat(0, 6, "No security findings detected.", "", 1, "L", false, 0, "")
		return
	}

	for i, f := range report.Findings {
		rgb := pdfSeverityRGB[f.Severity]
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. [%s] %s", i+1, titleCase.String(f.Severity.String()), f.Title)), "", "L", false)

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(71, 85, 105)
		if f.CWE != "" {
			pdf.CellFormat(0, 5, tr("CWE: "+f.CWE), "", 1, "L", false, 0, "")
		}
		if f.OWASP != "" {
			pdf.CellFormat(0, 5, tr("OWASP: "+f.OWASP), "", 1, "L", false, 0, "")
		}
		if label := CVSSLabel(f); label != "" {
			pdf.CellFormat(0, 5, tr("CVSS: "+label), "", 1, "L", false, 0, "")
		}
		pdf.SetTextColor(60, 60, 60)
		if f.Description != "" {
			pdf.MultiCell(0, 5, tr(f.Description), "", "L", false)
		}
		if f.Remediation != "" {
			pdf.MultiCell(0, 5, tr("Remediation: "+f.Remediation), "", "L", false)
		}
		pdf.Ln(3)
	}
}

// severityForScore picks the meter color for a risk score.
func severityForScore(score int) model.Severity {
	switch {
	case score >= 75:
		return model.SeverityCritical
	case score >= 50:
		return model.SeverityHigh
	case score >= 25:
		return model.SeverityMedium
	case score > 0:
		return model.SeverityLow
	default:
		return model.SeverityInfo
	}
}
