package kpi

import (
	"fmt"
	"sort"
)

type TriggerOutcome struct {
	Triggers    []Trigger
	NotifyRoles []Role
	Warnings    []Warning
}

// EvaluateTriggers resolves one score-based tier plus every matching
// condition rule. Rules must already be compiled (see CompileTriggers).
func EvaluateTriggers(record PerformanceRecord, score float64, rules []TriggerRule) TriggerOutcome {
	var tiers, conditions []TriggerRule
	var outcome TriggerOutcome
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		switch rule.Type {
		case TriggerScoreBased:
			tiers = append(tiers, rule)
		case TriggerConditionBased:
			conditions = append(conditions, rule)
		default:
			outcome.Warnings = append(outcome.Warnings, skippedRule(rule, fmt.Sprintf("unknown trigger type %q", rule.Type)))
		}
	}

	b := &triggerBuilder{index: map[Action]int{}, roles: map[Role]bool{}}
	if tier, ok := selectTier(tiers, score); ok {
		b.add(TriggerScoreBased, tier)
	}
	for _, rule := range conditions {
		if rule.Condition == nil {
			outcome.Warnings = append(outcome.Warnings, skippedRule(rule, "condition is malformed"))
			continue
		}
		if err := rule.Condition.Validate(); err != nil {
			outcome.Warnings = append(outcome.Warnings, skippedRule(rule, err.Error()))
			continue
		}
		if rule.Condition.Eval(record.Metrics) {
			b.add(TriggerConditionBased, rule)
		}
	}

	outcome.Triggers = b.triggers
	outcome.NotifyRoles = b.order
	return outcome
}

// selectTier scans from the highest threshold down and falls back to the
// lowest tier as a catch-all. Equal thresholds keep declaration order.
func selectTier(tiers []TriggerRule, score float64) (TriggerRule, bool) {
	if len(tiers) == 0 {
		return TriggerRule{}, false
	}
	sorted := make([]TriggerRule, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })
	for _, tier := range sorted {
		if tier.Threshold <= score {
			return tier, true
		}
	}
	return sorted[len(sorted)-1], true
}

func skippedRule(rule TriggerRule, reason string) Warning {
	return Warning{
		Code:    WarningRuleSkipped,
		Rule:    rule.Name,
		Message: fmt.Sprintf("trigger rule %q skipped: %s", rule.Name, reason),
	}
}

type triggerBuilder struct {
	triggers []Trigger
	index    map[Action]int
	roles    map[Role]bool
	order    []Role
}

// add merges a rule's actions by identifier; recipients of a repeated
// action are unioned into the first occurrence.
func (b *triggerBuilder) add(kind TriggerType, rule TriggerRule) {
	for _, action := range rule.Actions {
		i, ok := b.index[action]
		if !ok {
			b.index[action] = len(b.triggers)
			b.triggers = append(b.triggers, Trigger{
				Type:       kind,
				Action:     action,
				Recipients: unionRoles(nil, rule.Recipients),
				Rules:      []string{rule.Name},
			})
			continue
		}
		t := &b.triggers[i]
		t.Recipients = unionRoles(t.Recipients, rule.Recipients)
		if !containsString(t.Rules, rule.Name) {
			t.Rules = append(t.Rules, rule.Name)
		}
	}
	for _, role := range rule.Recipients {
		if !b.roles[role] {
			b.roles[role] = true
			b.order = append(b.order, role)
		}
	}
}

func unionRoles(base, extra []Role) []Role {
	out := append([]Role{}, base...)
	for _, role := range extra {
		found := false
		for _, existing := range out {
			if existing == role {
				found = true
				break
			}
		}
		if !found {
			out = append(out, role)
		}
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
