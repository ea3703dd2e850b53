package kpi

type MetricKey string

const (
	MetricTAT               MetricKey = "tat"
	MetricMajorNegativity   MetricKey = "major_negativity"
	MetricQualityConcern    MetricKey = "quality_concern"
	MetricNeighborCheck     MetricKey = "neighbor_check"
	MetricGeneralNegativity MetricKey = "general_negativity"
	MetricAppUsage          MetricKey = "app_usage"
	MetricInsufficiency     MetricKey = "insufficiency"
)

// MetricKeys lists every tracked metric in display order.
var MetricKeys = []MetricKey{
	MetricTAT,
	MetricMajorNegativity,
	MetricQualityConcern,
	MetricNeighborCheck,
	MetricGeneralNegativity,
	MetricAppUsage,
	MetricInsufficiency,
}

var metricLabels = map[MetricKey]string{
	MetricTAT:               "TAT",
	MetricMajorNegativity:   "Major Negativity",
	MetricQualityConcern:    "Quality Concern",
	MetricNeighborCheck:     "Neighbor Check",
	MetricGeneralNegativity: "General Negativity",
	MetricAppUsage:          "App Usage",
	MetricInsufficiency:     "Insufficiency",
}

func (k MetricKey) Valid() bool {
	_, ok := metricLabels[k]
	return ok
}

func (k MetricKey) Label() string {
	if label, ok := metricLabels[k]; ok {
		return label
	}
	return string(k)
}

type TriggerType string

const (
	TriggerScoreBased     TriggerType = "score_based"
	TriggerConditionBased TriggerType = "condition_based"
)

type Action string

const (
	ActionTraining      Action = "Training"
	ActionAuditCall     Action = "Audit Call"
	ActionWarningLetter Action = "Warning Letter"
)

var actionKinds = map[Action]string{
	ActionTraining:      AssignmentKindTraining,
	ActionAuditCall:     AssignmentKindAudit,
	ActionWarningLetter: AssignmentKindWarningLetter,
}

func (a Action) Valid() bool {
	_, ok := actionKinds[a]
	return ok
}

// Kind maps an action to the assignment record it creates on commit.
func (a Action) Kind() string {
	return actionKinds[a]
}

const (
	AssignmentKindTraining      = "training"
	AssignmentKindAudit         = "audit"
	AssignmentKindWarningLetter = "warning_letter"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleTrainer  Role = "trainer"
	RoleAuditor  Role = "auditor"
)

var validRoles = map[Role]bool{
	RoleEmployee: true,
	RoleManager:  true,
	RoleHR:       true,
	RoleTrainer:  true,
	RoleAuditor:  true,
}

func (r Role) Valid() bool {
	return validRoles[r]
}

const (
	WarningNoMatchingBand    = "no_matching_band"
	WarningDefaultedValue    = "defaulted_value"
	WarningUnmatchedIdentity = "unmatched_identity"
	WarningRuleSkipped       = "rule_skipped"
	WarningUnrated           = "unrated"

	ConfigWarningWeightSum          = "weight_sum"
	ConfigWarningWeightRange        = "weight_range"
	ConfigWarningDuplicateMetric    = "duplicate_metric"
	ConfigWarningUnknownMetric      = "unknown_metric"
	ConfigWarningUnknownOperator    = "unknown_operator"
	ConfigWarningThresholdOrder     = "threshold_order"
	ConfigWarningRatingGap          = "rating_gap"
	ConfigWarningRatingOverlap      = "rating_overlap"
	ConfigWarningRatingBounds       = "rating_bounds"
	ConfigWarningMalformedCondition = "malformed_condition"
	ConfigWarningNoScoreTiers       = "no_score_tiers"
	ConfigWarningUnknownAction      = "unknown_action"
	ConfigWarningUnknownRole        = "unknown_role"

	TemplateKPITrigger = "kpi_trigger"

	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"

	AssignmentStatusAssigned = "assigned"

	UnratedLabel = "Unrated"
)
