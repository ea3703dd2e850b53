package kpi

import "time"

// Snapshot is an immutable, compiled copy of the configuration taken at the
// start of a batch. Configuration edits made while a batch runs do not
// reach it.
type Snapshot struct {
	Metrics  []MetricDefinition
	Triggers []TriggerRule
	Ratings  RatingScale
	Version  string
	Warnings []ConfigWarning
	TakenAt  time.Time
}

func NewSnapshot(cfg Configuration) *Snapshot {
	return &Snapshot{
		Metrics:  cloneMetrics(cfg.Metrics),
		Triggers: CompileTriggers(cfg.Triggers),
		Ratings:  append(RatingScale(nil), cfg.Ratings...),
		Version:  cfg.Version,
		Warnings: cfg.Validate(),
		TakenAt:  time.Now().UTC(),
	}
}

func (s *Snapshot) Configuration() Configuration {
	return Configuration{
		Metrics:  cloneMetrics(s.Metrics),
		Triggers: CompileTriggers(s.Triggers),
		Ratings:  append(RatingScale(nil), s.Ratings...),
		Version:  s.Version,
	}
}

// Evaluate runs scoring and trigger resolution for one normalized record.
func (s *Snapshot) Evaluate(record PerformanceRecord) EvaluationResult {
	scored := Score(record, s.Metrics, s.Ratings)
	outcome := EvaluateTriggers(record, scored.Score, s.Triggers)

	result := EvaluationResult{
		Row:                record.Row,
		EmployeeIdentifier: record.EmployeeIdentifier,
		EmployeeName:       record.EmployeeName,
		Period:             record.Period,
		Matched:            record.Matched,
		UserID:             record.UserID,
		KPIScore:           scored.Score,
		Rating:             scored.Rating,
		Breakdown:          scored.Breakdown,
		Triggers:           outcome.Triggers,
		NotifyRoles:        outcome.NotifyRoles,
	}
	if result.Triggers == nil {
		result.Triggers = []Trigger{}
	}
	if !record.Matched {
		result.NotifyRoles = nil
	}
	if result.NotifyRoles == nil {
		result.NotifyRoles = []Role{}
	}
	result.Warnings = make([]Warning, 0, len(record.Warnings)+len(scored.Warnings)+len(outcome.Warnings))
	result.Warnings = append(result.Warnings, record.Warnings...)
	result.Warnings = append(result.Warnings, scored.Warnings...)
	result.Warnings = append(result.Warnings, outcome.Warnings...)
	return result
}
