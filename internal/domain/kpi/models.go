package kpi

import "time"

type Threshold struct {
	Operator Operator `json:"operator" yaml:"operator"`
	Value    float64  `json:"value" yaml:"value"`
	Score    float64  `json:"score" yaml:"score"`
	Label    string   `json:"label" yaml:"label"`
}

type MetricDefinition struct {
	Key        MetricKey   `json:"metricKey" yaml:"metricKey"`
	Label      string      `json:"label,omitempty" yaml:"label,omitempty"`
	Weight     float64     `json:"weight" yaml:"weight"`
	Thresholds []Threshold `json:"thresholds" yaml:"thresholds"`
	Active     bool        `json:"isActive" yaml:"isActive"`
	UpdatedAt  time.Time   `json:"updatedAt,omitzero" yaml:"-"`
	UpdatedBy  string      `json:"updatedBy,omitempty" yaml:"-"`
}

type RatingBand struct {
	Label string  `json:"label" yaml:"label"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
}

type RatingScale []RatingBand

type TriggerRule struct {
	ID         string      `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string      `json:"name" yaml:"name"`
	Type       TriggerType `json:"triggerType" yaml:"triggerType"`
	Threshold  float64     `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Expression string      `json:"expression,omitempty" yaml:"expression,omitempty"`
	Condition  *Condition  `json:"condition,omitempty" yaml:"condition,omitempty"`
	Actions    []Action    `json:"actions" yaml:"actions"`
	Recipients []Role      `json:"emailRecipients" yaml:"emailRecipients"`
	Active     bool        `json:"isActive" yaml:"isActive"`
	UpdatedAt  time.Time   `json:"updatedAt,omitzero" yaml:"-"`
	UpdatedBy  string      `json:"updatedBy,omitempty" yaml:"-"`
}

// Configuration is the administrator-managed scoring and trigger setup.
type Configuration struct {
	Metrics  []MetricDefinition `json:"metrics" yaml:"metrics"`
	Triggers []TriggerRule      `json:"triggers" yaml:"triggers"`
	Ratings  RatingScale        `json:"ratings" yaml:"ratings"`
	Version  string             `json:"version,omitempty" yaml:"version,omitempty"`
}

type ConfigWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

type Warning struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Metric  MetricKey `json:"metric,omitempty"`
	Rule    string    `json:"rule,omitempty"`
}

// RawRow is one already-parsed spreadsheet row keyed by column header.
type RawRow struct {
	Index  int               `json:"row"`
	Values map[string]string `json:"values"`
}

type PerformanceRecord struct {
	Row                int                   `json:"row"`
	EmployeeIdentifier string                `json:"employeeIdentifier"`
	EmployeeID         string                `json:"employeeId,omitempty"`
	EmployeeName       string                `json:"employeeName,omitempty"`
	Email              string                `json:"email,omitempty"`
	Period             string                `json:"period"`
	Metrics            map[MetricKey]float64 `json:"metrics"`
	Matched            bool                  `json:"matched"`
	UserID             string                `json:"userId,omitempty"`
	Warnings           []Warning             `json:"warnings,omitempty"`
}

type MetricScore struct {
	Metric  MetricKey `json:"metric"`
	Label   string    `json:"label"`
	Value   float64   `json:"value"`
	Weight  float64   `json:"weight"`
	Score   float64   `json:"score"`
	Band    string    `json:"band,omitempty"`
	Matched bool      `json:"matched"`
}

type Trigger struct {
	Type       TriggerType `json:"type"`
	Action     Action      `json:"action"`
	Recipients []Role      `json:"recipients"`
	Rules      []string    `json:"rules"`
}

type EvaluationResult struct {
	Row                int           `json:"row"`
	EmployeeIdentifier string        `json:"employeeIdentifier"`
	EmployeeName       string        `json:"employeeName,omitempty"`
	Period             string        `json:"period"`
	Matched            bool          `json:"matched"`
	UserID             string        `json:"userId,omitempty"`
	KPIScore           float64       `json:"kpiScore"`
	Rating             string        `json:"rating"`
	Breakdown          []MetricScore `json:"perMetricBreakdown"`
	Triggers           []Trigger     `json:"triggers"`
	NotifyRoles        []Role        `json:"notifyRoles"`
	Warnings           []Warning     `json:"warnings"`
}

type BatchRequest struct {
	Period   string   `json:"period,omitempty"`
	FileName string   `json:"fileName,omitempty"`
	Rows     []RawRow `json:"rows"`
}

type BatchResult struct {
	BatchKey       string             `json:"batchKey"`
	Period         string             `json:"period,omitempty"`
	ConfigVersion  string             `json:"configVersion,omitempty"`
	Results        []EvaluationResult `json:"results"`
	RowErrors      []RowError         `json:"rowErrors"`
	ConfigWarnings []ConfigWarning    `json:"configWarnings"`
	Total          int                `json:"total"`
	Matched        int                `json:"matched"`
	Unmatched      int                `json:"unmatched"`
	Rejected       int                `json:"rejected"`
}

// AppliedAssignment is a commit-time idempotency report for one action.
type AppliedAssignment struct {
	EmployeeIdentifier string `json:"employeeIdentifier"`
	Period             string `json:"period"`
	Kind               string `json:"kind"`
}

type CommitResult struct {
	BatchResult
	BatchID             string              `json:"batchId"`
	AssignmentsCreated  int                 `json:"assignmentsCreated"`
	AlreadyApplied      []AppliedAssignment `json:"alreadyApplied"`
	NotificationsQueued int                 `json:"notificationsQueued"`
	SkippedUnmatched    int                 `json:"skippedUnmatched"`
}

type Assignment struct {
	ID                 string    `json:"id"`
	BatchID            string    `json:"batchId"`
	EmployeeIdentifier string    `json:"employeeIdentifier"`
	UserID             string    `json:"userId,omitempty"`
	Period             string    `json:"period"`
	Kind               string    `json:"kind"`
	Action             Action    `json:"action"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
}

type AssignmentFilter struct {
	Period             string
	Kind               string
	EmployeeIdentifier string
	Limit              int
	Offset             int
}

type StoredResult struct {
	ID        string           `json:"id"`
	BatchID   string           `json:"batchId"`
	Result    EvaluationResult `json:"result"`
	CreatedAt time.Time        `json:"createdAt"`
}

type ResultFilter struct {
	Period string
	Rating string
	Limit  int
	Offset int
}

// OutboxEntry is a committed notification waiting for dispatch.
type OutboxEntry struct {
	ID                 string         `json:"id"`
	EmployeeIdentifier string         `json:"employeeIdentifier"`
	UserID             string         `json:"userId,omitempty"`
	Period             string         `json:"period"`
	Role               Role           `json:"role"`
	TemplateKey        string         `json:"templateKey"`
	Variables          map[string]any `json:"variables"`
	Attempts           int            `json:"attempts"`
}
