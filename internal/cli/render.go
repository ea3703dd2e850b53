package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"kpi/internal/domain/kpi"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// FilePreview is the evaluation of one input file.
type FilePreview struct {
	File   string          `json:"file"`
	Result kpi.BatchResult `json:"result"`
}

func RenderPreview(w io.Writer, format string, previews []FilePreview) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(previews)
	}
	for i, preview := range previews {
		if i > 0 {
			fmt.Fprintln(w)
		}
		renderPreviewTable(w, preview)
	}
	return nil
}

func renderPreviewTable(w io.Writer, preview FilePreview) {
	result := preview.Result
	title := preview.File
	if result.Period != "" {
		title = fmt.Sprintf("%s (%s)", preview.File, result.Period)
	}
	fmt.Fprintln(w, headerStyle.Render(title))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Row", "Employee", "Score", "Rating", "Actions", "Notify", "Matched").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range result.Results {
		matched := okStyle.Render("yes")
		if !r.Matched {
			matched = warningStyle.Render("no")
		}
		t.Row(
			strconv.Itoa(r.Row),
			r.EmployeeIdentifier,
			strconv.FormatFloat(r.KPIScore, 'f', 2, 64),
			r.Rating,
			joinActions(r.Triggers),
			joinRoles(r.NotifyRoles),
			matched,
		)
	}
	fmt.Fprintln(w, t.String())

	for _, rowErr := range result.RowErrors {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("  row %d: %s", rowErr.Row, rowErr.Reason)))
	}
	for _, warning := range result.ConfigWarnings {
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("  config: %s", warning.Message)))
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d rows: %d matched, %d unmatched, %d rejected",
		result.Total, result.Matched, result.Unmatched, result.Rejected)))
}

// RenderWarnings prints configuration warnings, blocking ones in red.
func RenderWarnings(w io.Writer, warnings []kpi.ConfigWarning) {
	if len(warnings) == 0 {
		fmt.Fprintln(w, okStyle.Render("configuration is valid"))
		return
	}
	for _, warning := range warnings {
		style := warningStyle
		level := "warning"
		if kpi.IsBlocking(warning) {
			style = errorStyle
			level = "error"
		}
		line := fmt.Sprintf("%s [%s] %s", level, warning.Code, warning.Message)
		if warning.Subject != "" {
			line += mutedStyle.Render(" (" + warning.Subject + ")")
		}
		fmt.Fprintln(w, style.Render(line))
	}
}

func joinActions(triggers []kpi.Trigger) string {
	parts := make([]string, 0, len(triggers))
	for _, trigger := range triggers {
		parts = append(parts, string(trigger.Action))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func joinRoles(roles []kpi.Role) string {
	parts := make([]string, 0, len(roles))
	for _, role := range roles {
		parts = append(parts, string(role))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
