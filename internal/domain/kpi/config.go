package kpi

import (
	"fmt"
	"math"
	"sort"
)

const (
	ConfigWarningThresholdRange = "threshold_range"
	ConfigWarningUnknownTrigger = "unknown_trigger_type"

	weightTolerance = 1e-6
)

// blockingCodes are warnings that make an update payload unusable. The rest
// are tolerated and surfaced alongside evaluation output.
var blockingCodes = map[string]bool{
	ConfigWarningWeightRange:        true,
	ConfigWarningDuplicateMetric:    true,
	ConfigWarningUnknownMetric:      true,
	ConfigWarningUnknownOperator:    true,
	ConfigWarningThresholdOrder:     true,
	ConfigWarningThresholdRange:     true,
	ConfigWarningMalformedCondition: true,
	ConfigWarningUnknownAction:      true,
	ConfigWarningUnknownRole:        true,
	ConfigWarningUnknownTrigger:     true,
	ConfigWarningRatingBounds:       true,
}

func IsBlocking(w ConfigWarning) bool {
	return blockingCodes[w.Code]
}

// Blocking filters warnings down to the ones that reject an update.
func Blocking(warnings []ConfigWarning) []ConfigWarning {
	var out []ConfigWarning
	for _, w := range warnings {
		if IsBlocking(w) {
			out = append(out, w)
		}
	}
	return out
}

func (c Configuration) Validate() []ConfigWarning {
	warnings := ValidateMetrics(c.Metrics)
	warnings = append(warnings, c.Ratings.Validate()...)
	warnings = append(warnings, ValidateTriggers(c.Triggers)...)
	return warnings
}

func ValidateMetrics(defs []MetricDefinition) []ConfigWarning {
	var warnings []ConfigWarning
	seen := make(map[MetricKey]bool, len(defs))
	activeWeight := 0.0
	for _, def := range defs {
		subject := string(def.Key)
		if !def.Key.Valid() {
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningUnknownMetric, Subject: subject, Message: fmt.Sprintf("unknown metric %q", def.Key)})
		}
		if seen[def.Key] {
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningDuplicateMetric, Subject: subject, Message: fmt.Sprintf("metric %s defined more than once", def.Key)})
		}
		seen[def.Key] = true
		if def.Weight < 0 || def.Weight > 100 {
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningWeightRange, Subject: subject, Message: fmt.Sprintf("weight %g for %s must be between 0 and 100", def.Weight, def.Key)})
		}
		warnings = append(warnings, validateThresholds(def)...)
		if def.Active {
			activeWeight += def.Weight
		}
	}
	if math.Abs(activeWeight-100) > weightTolerance {
		warnings = append(warnings, ConfigWarning{Code: ConfigWarningWeightSum, Message: fmt.Sprintf("active metric weights sum to %g, expected 100", activeWeight)})
	}
	return warnings
}

// validateThresholds enforces that first-match-wins also means tightest
// match wins: >=/> bands run high-to-low, <=/< bands run low-to-high.
func validateThresholds(def MetricDefinition) []ConfigWarning {
	var warnings []ConfigWarning
	subject := string(def.Key)
	for i, band := range def.Thresholds {
		if !band.Operator.Valid() {
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningUnknownOperator, Subject: subject, Message: fmt.Sprintf("%s band %d has unknown operator %q", def.Key, i+1, band.Operator)})
			continue
		}
		if i == 0 {
			continue
		}
		prev := def.Thresholds[i-1]
		switch {
		case prev.Operator.descending() && band.Operator.descending() && band.Value > prev.Value:
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningThresholdOrder, Subject: subject, Message: fmt.Sprintf("%s bands using >= or > must be declared from highest to lowest value (band %d)", def.Key, i+1)})
		case prev.Operator.ascending() && band.Operator.ascending() && band.Value < prev.Value:
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningThresholdOrder, Subject: subject, Message: fmt.Sprintf("%s bands using <= or < must be declared from lowest to highest value (band %d)", def.Key, i+1)})
		}
	}
	return warnings
}

func (s RatingScale) Validate() []ConfigWarning {
	if len(s) == 0 {
		return []ConfigWarning{{Code: ConfigWarningRatingGap, Message: "rating scale has no bands"}}
	}
	bands := make(RatingScale, len(s))
	copy(bands, s)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min })

	var warnings []ConfigWarning
	for _, band := range bands {
		if band.Min >= band.Max || band.Min < 0 || band.Max > 100 {
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningRatingBounds, Subject: band.Label, Message: fmt.Sprintf("rating %q range [%g, %g) is outside 0-100 or empty", band.Label, band.Min, band.Max)})
		}
	}
	if bands[0].Min > 0 {
		warnings = append(warnings, ConfigWarning{Code: ConfigWarningRatingGap, Subject: bands[0].Label, Message: fmt.Sprintf("scores below %g have no rating", bands[0].Min)})
	}
	for i := 1; i < len(bands); i++ {
		prev, cur := bands[i-1], bands[i]
		switch {
		case cur.Min > prev.Max:
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningRatingGap, Subject: cur.Label, Message: fmt.Sprintf("scores between %g and %g have no rating", prev.Max, cur.Min)})
		case cur.Min < prev.Max:
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningRatingOverlap, Subject: cur.Label, Message: fmt.Sprintf("ratings %q and %q overlap between %g and %g", prev.Label, cur.Label, cur.Min, prev.Max)})
		}
	}
	if last := bands[len(bands)-1]; last.Max < 100 {
		warnings = append(warnings, ConfigWarning{Code: ConfigWarningRatingGap, Subject: last.Label, Message: fmt.Sprintf("scores above %g have no rating", last.Max)})
	}
	return warnings
}

// Rate maps a score to the band containing it. Max is exclusive except at 100.
func (s RatingScale) Rate(score float64) (string, bool) {
	for _, band := range s {
		if score >= band.Min && (score < band.Max || (band.Max >= 100 && score <= band.Max)) {
			return band.Label, true
		}
	}
	return "", false
}

func ValidateTriggers(rules []TriggerRule) []ConfigWarning {
	var warnings []ConfigWarning
	activeTiers := 0
	for i, rule := range rules {
		subject := rule.Name
		if subject == "" {
			subject = fmt.Sprintf("rule %d", i+1)
		}
		for _, action := range rule.Actions {
			if !action.Valid() {
				warnings = append(warnings, ConfigWarning{Code: ConfigWarningUnknownAction, Subject: subject, Message: fmt.Sprintf("%s has unknown action %q", subject, action)})
			}
		}
		for _, role := range rule.Recipients {
			if !role.Valid() {
				warnings = append(warnings, ConfigWarning{Code: ConfigWarningUnknownRole, Subject: subject, Message: fmt.Sprintf("%s has unknown recipient role %q", subject, role)})
			}
		}
		switch rule.Type {
		case TriggerScoreBased:
			if rule.Threshold < 0 || rule.Threshold > 100 {
				warnings = append(warnings, ConfigWarning{Code: ConfigWarningThresholdRange, Subject: subject, Message: fmt.Sprintf("%s threshold %g must be between 0 and 100", subject, rule.Threshold)})
			}
			if rule.Active {
				activeTiers++
			}
		case TriggerConditionBased:
			if _, err := compileCondition(rule); err != nil {
				warnings = append(warnings, ConfigWarning{Code: ConfigWarningMalformedCondition, Subject: subject, Message: fmt.Sprintf("%s: %v", subject, err)})
			}
		default:
			warnings = append(warnings, ConfigWarning{Code: ConfigWarningUnknownTrigger, Subject: subject, Message: fmt.Sprintf("%s has unknown trigger type %q", subject, rule.Type)})
		}
	}
	if activeTiers == 0 {
		warnings = append(warnings, ConfigWarning{Code: ConfigWarningNoScoreTiers, Message: "no active score-based trigger tiers"})
	}
	return warnings
}

// compileCondition returns the typed tree for a condition rule, parsing the
// free-text expression when no tree was supplied.
func compileCondition(rule TriggerRule) (*Condition, error) {
	if rule.Condition != nil {
		if err := rule.Condition.Validate(); err != nil {
			return nil, err
		}
		tree := cloneCondition(*rule.Condition)
		return &tree, nil
	}
	if rule.Expression == "" {
		return nil, fmt.Errorf("%w: no condition supplied", ErrMalformedRule)
	}
	tree, err := ParseCondition(rule.Expression)
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

// CompileTriggers prepares rules for evaluation. Condition rules whose
// expression cannot be compiled keep a nil Condition so evaluation skips
// them with a warning.
func CompileTriggers(rules []TriggerRule) []TriggerRule {
	out := make([]TriggerRule, len(rules))
	for i, rule := range rules {
		compiled := cloneRule(rule)
		if rule.Type == TriggerConditionBased {
			tree, err := compileCondition(rule)
			compiled.Condition = tree
			if err == nil && compiled.Expression == "" {
				compiled.Expression = tree.String()
			}
		}
		out[i] = compiled
	}
	return out
}

func cloneRule(rule TriggerRule) TriggerRule {
	out := rule
	out.Actions = append([]Action(nil), rule.Actions...)
	out.Recipients = append([]Role(nil), rule.Recipients...)
	if rule.Condition != nil {
		tree := cloneCondition(*rule.Condition)
		out.Condition = &tree
	}
	return out
}

func cloneCondition(c Condition) Condition {
	out := Condition{Metric: c.Metric, Operator: c.Operator, Value: c.Value}
	for _, child := range c.All {
		out.All = append(out.All, cloneCondition(child))
	}
	for _, child := range c.Any {
		out.Any = append(out.Any, cloneCondition(child))
	}
	return out
}

func cloneMetrics(defs []MetricDefinition) []MetricDefinition {
	out := make([]MetricDefinition, len(defs))
	for i, def := range defs {
		out[i] = def
		out[i].Thresholds = append([]Threshold(nil), def.Thresholds...)
	}
	return out
}
