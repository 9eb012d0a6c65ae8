package stubapi

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

var reportColumns = []struct {
	title string
	width float64
}{
	{"ID", 20},
	{"Name", 48},
	{"Department", 36},
	{"Attendance", 24},
	{"Total Days", 22},
	{"Attendance %", 30},
}

// buildReportPDF lists entries below threshold as a single table.
func buildReportPDF(threshold float64, entries []entry) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := fmt.Sprintf("Attendance below %s%%", formatNumber(threshold))
	pdf.SetTitle(title, false)
	pdf.SetAuthor("attendhash", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d employee(s)", len(entries)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range reportColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(entries) == 0 {
		pdf.CellFormat(totalReportWidth(), 8, "No records below threshold.", "1", 1, "C", false, 0, "")
	}
	for _, e := range entries {
		cells := []string{
			e.ID,
			e.Name,
			e.Department,
			formatNumber(e.Attendance),
			formatNumber(e.TotalDays),
			formatNumber(e.Percentage) + "%",
		}
		for i, col := range reportColumns {
			align := "L"
			if i >= 3 {
				align = "R"
			}
			pdf.CellFormat(col.width, 7, tr(cells[i]), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func totalReportWidth() float64 {
	total := 0.0
	for _, col := range reportColumns {
		total += col.width
	}
	return total
}
