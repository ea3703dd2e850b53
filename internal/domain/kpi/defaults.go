package kpi

// DefaultConfiguration is the seed setup shipped with a new installation.
func DefaultConfiguration() Configuration {
	return Configuration{
		Metrics:  DefaultMetrics(),
		Triggers: DefaultTriggers(),
		Ratings:  DefaultRatings(),
		Version:  "default",
	}
}

func DefaultMetrics() []MetricDefinition {
	return []MetricDefinition{
		{
			Key: MetricTAT, Label: MetricTAT.Label(), Weight: 20, Active: true,
			Thresholds: []Threshold{
				{Operator: OpGTE, Value: 95, Score: 20, Label: "Excellent"},
				{Operator: OpGTE, Value: 90, Score: 15, Label: "Good"},
				{Operator: OpGTE, Value: 85, Score: 10, Label: "Average"},
				{Operator: OpGTE, Value: 0, Score: 0, Label: "Poor"},
			},
		},
		{
			Key: MetricMajorNegativity, Label: MetricMajorNegativity.Label(), Weight: 20, Active: true,
			Thresholds: []Threshold{
				{Operator: OpLTE, Value: 1, Score: 20, Label: "Excellent"},
				{Operator: OpLTE, Value: 2.5, Score: 10, Label: "Average"},
				{Operator: OpGT, Value: 2.5, Score: 0, Label: "Poor"},
			},
		},
		{
			Key: MetricQualityConcern, Label: MetricQualityConcern.Label(), Weight: 20, Active: true,
			Thresholds: []Threshold{
				{Operator: OpLTE, Value: 0.25, Score: 20, Label: "Excellent"},
				{Operator: OpLTE, Value: 0.5, Score: 10, Label: "Average"},
				{Operator: OpGT, Value: 0.5, Score: 0, Label: "Poor"},
			},
		},
		{
			Key: MetricNeighborCheck, Label: MetricNeighborCheck.Label(), Weight: 10, Active: true,
			Thresholds: []Threshold{
				{Operator: OpGTE, Value: 90, Score: 10, Label: "Excellent"},
				{Operator: OpGTE, Value: 80, Score: 5, Label: "Average"},
				{Operator: OpGTE, Value: 0, Score: 0, Label: "Poor"},
			},
		},
		{
			Key: MetricGeneralNegativity, Label: MetricGeneralNegativity.Label(), Weight: 10, Active: true,
			Thresholds: []Threshold{
				{Operator: OpLTE, Value: 10, Score: 10, Label: "Excellent"},
				{Operator: OpLTE, Value: 25, Score: 5, Label: "Average"},
				{Operator: OpGT, Value: 25, Score: 0, Label: "Poor"},
			},
		},
		{
			Key: MetricAppUsage, Label: MetricAppUsage.Label(), Weight: 10, Active: true,
			Thresholds: []Threshold{
				{Operator: OpGTE, Value: 90, Score: 10, Label: "Excellent"},
				{Operator: OpGTE, Value: 75, Score: 5, Label: "Average"},
				{Operator: OpGTE, Value: 0, Score: 0, Label: "Poor"},
			},
		},
		{
			Key: MetricInsufficiency, Label: MetricInsufficiency.Label(), Weight: 10, Active: true,
			Thresholds: []Threshold{
				{Operator: OpLTE, Value: 0.5, Score: 10, Label: "Excellent"},
				{Operator: OpLTE, Value: 1.5, Score: 5, Label: "Average"},
				{Operator: OpGT, Value: 1.5, Score: 0, Label: "Poor"},
			},
		},
	}
}

func DefaultRatings() RatingScale {
	return RatingScale{
		{Label: "Outstanding", Min: 85, Max: 100},
		{Label: "Excellent", Min: 70, Max: 85},
		{Label: "Satisfactory", Min: 50, Max: 70},
		{Label: "Need Improvement", Min: 40, Max: 50},
		{Label: "Unsatisfactory", Min: 0, Max: 40},
	}
}

func DefaultTriggers() []TriggerRule {
	return []TriggerRule{
		{
			Name: "Outstanding", Type: TriggerScoreBased, Threshold: 85, Active: true,
			Actions: []Action{}, Recipients: []Role{},
		},
		{
			Name: "Audit tier", Type: TriggerScoreBased, Threshold: 70, Active: true,
			Actions:    []Action{ActionAuditCall},
			Recipients: []Role{RoleManager, RoleAuditor},
		},
		{
			Name: "Training tier", Type: TriggerScoreBased, Threshold: 40, Active: true,
			Actions:    []Action{ActionTraining, ActionAuditCall},
			Recipients: []Role{RoleManager, RoleTrainer, RoleAuditor},
		},
		{
			Name: "Critical tier", Type: TriggerScoreBased, Threshold: 0, Active: true,
			Actions:    []Action{ActionTraining, ActionAuditCall, ActionWarningLetter},
			Recipients: []Role{RoleEmployee, RoleManager, RoleHR},
		},
		{
			Name: "Quality Concern > 1%", Type: TriggerConditionBased, Active: true,
			Expression: "Quality Concern > 1%",
			Actions:    []Action{ActionTraining, ActionAuditCall},
			Recipients: []Role{RoleManager, RoleTrainer},
		},
		{
			Name: "Major Negativity spike", Type: TriggerConditionBased, Active: true,
			Expression: "Major Negativity > 2.5% AND General Negativity < 25%",
			Actions:    []Action{ActionAuditCall},
			Recipients: []Role{RoleManager, RoleAuditor},
		},
		{
			Name: "Low app usage", Type: TriggerConditionBased, Active: true,
			Expression: "App Usage < 60%",
			Actions:    []Action{ActionTraining},
			Recipients: []Role{RoleManager, RoleTrainer},
		},
	}
}
