package auth

const (
	RoleAdmin    = "Admin"
	RoleHR       = "HR"
	RoleManager  = "Manager"
	RoleTrainer  = "Trainer"
	RoleAuditor  = "Auditor"
	RoleEmployee = "Employee"
	RoleService  = "Service"
)

const (
	PermKPIRead      = "kpi.read"
	PermKPIConfigure = "kpi.configure"
	PermKPIUpload    = "kpi.upload"
	PermKPICommit    = "kpi.commit"
	PermAuditRead    = "audit.read"
)

var DefaultPermissions = []string{
	PermKPIRead,
	PermKPIConfigure,
	PermKPIUpload,
	PermKPICommit,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermKPIRead,
		PermKPIConfigure,
		PermKPIUpload,
		PermKPICommit,
		PermAuditRead,
	},
	RoleHR: {
		PermKPIRead,
		PermKPIUpload,
		PermKPICommit,
		PermAuditRead,
	},
	RoleManager: {
		PermKPIRead,
	},
	RoleTrainer: {
		PermKPIRead,
	},
	RoleAuditor: {
		PermKPIRead,
		PermAuditRead,
	},
	// Employees only see their own notifications.
	RoleEmployee: {},
	// Service tokens drive scheduled uploads from batch jobs.
	RoleService: {
		PermKPIRead,
		PermKPIUpload,
		PermKPICommit,
	},
}

// RecipientRoles maps trigger recipient tags that fan out to a whole role.
// "employee" and "manager" are resolved per record instead.
var RecipientRoles = map[string]string{
	"hr":      RoleHR,
	"trainer": RoleTrainer,
	"auditor": RoleAuditor,
}
