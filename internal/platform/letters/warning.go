package letters

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"kpi/internal/domain/kpi"
)

// HasWarningLetter reports whether the result carries a Warning Letter action.
func HasWarningLetter(result kpi.EvaluationResult) bool {
	for _, trigger := range result.Triggers {
		if trigger.Action == kpi.ActionWarningLetter {
			return true
		}
	}
	return false
}

// WriteWarningLetter renders the warning letter for a committed result as PDF.
func WriteWarningLetter(w io.Writer, company string, result kpi.EvaluationResult, issued time.Time) error {
	if !result.Matched || !HasWarningLetter(result) {
		return kpi.ErrNoWarningLetter
	}
	name := result.EmployeeName
	if name == "" {
		name = result.EmployeeIdentifier
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Warning letter %s %s", result.EmployeeIdentifier, result.Period), true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, company)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Date: %s", issued.Format("2 January 2006")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s (%s)", name, result.EmployeeIdentifier))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Subject: Performance warning")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, fmt.Sprintf(
		"Your KPI score for %s was %.2f, rated %s. This is below the level expected for your role "+
			"and this letter is a formal warning. The breakdown below lists the metrics behind the score.",
		result.Period, result.KPIScore, result.Rating), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(70, 8, "Metric", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 8, "Value", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "Weight", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "Score", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range result.Breakdown {
		pdf.CellFormat(70, 7, line.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", line.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.0f", line.Weight), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", line.Score), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	actions := make([]string, 0, len(result.Triggers))
	for _, trigger := range result.Triggers {
		actions = append(actions, string(trigger.Action))
	}
	pdf.MultiCell(0, 6, fmt.Sprintf("Follow-up actions: %s.", strings.Join(actions, ", ")), "", "L", false)
	pdf.Ln(10)
	pdf.Cell(0, 8, "Human Resources")

	return pdf.Output(w)
}
