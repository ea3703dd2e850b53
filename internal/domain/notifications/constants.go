package notifications

const (
	TypeKPITrigger = "kpi_trigger"

	RecipientEmployee = "employee"
	RecipientManager  = "manager"
)

// DefaultTemplates seed the email_templates table on first start.
var DefaultTemplates = []Template{
	{
		Key:     TypeKPITrigger,
		Subject: "KPI follow-up for {{.EmployeeName}} ({{.Period}})",
		Body: "Hello,\n\n" +
			"{{.EmployeeName}} scored {{.Score}} ({{.Rating}}) for {{.Period}}.\n" +
			"Required follow-up: {{.Actions}}.\n\n" +
			"You are receiving this notice as {{.Role}}.\n",
	},
}
