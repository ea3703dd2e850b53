package kpi

import (
	"fmt"
	"math"
)

type ScoreResult struct {
	Score     float64
	Rating    string
	Breakdown []MetricScore
	Warnings  []Warning
}

// Score is a pure function of its inputs. Active metrics are scored in
// declaration order; inactive ones are left out of the breakdown entirely.
func Score(record PerformanceRecord, defs []MetricDefinition, scale RatingScale) ScoreResult {
	var result ScoreResult
	total := 0.0
	for _, def := range defs {
		if !def.Active {
			continue
		}
		value := record.Metrics[def.Key]
		entry := MetricScore{
			Metric: def.Key,
			Label:  def.Label,
			Value:  value,
			Weight: def.Weight,
		}
		if entry.Label == "" {
			entry.Label = def.Key.Label()
		}
		for _, band := range def.Thresholds {
			if band.Operator.Apply(value, band.Value) {
				entry.Score = clamp(band.Score, 0, math.Max(def.Weight, 0))
				entry.Band = band.Label
				entry.Matched = true
				break
			}
		}
		if !entry.Matched {
			result.Warnings = append(result.Warnings, Warning{
				Code:    WarningNoMatchingBand,
				Metric:  def.Key,
				Message: fmt.Sprintf("%s value %g matched no threshold band, scored 0", entry.Label, value),
			})
		}
		total += entry.Score
		result.Breakdown = append(result.Breakdown, entry)
	}

	result.Score = round2(clamp(total, 0, 100))
	rating, ok := scale.Rate(result.Score)
	if !ok {
		rating = UnratedLabel
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarningUnrated,
			Message: fmt.Sprintf("score %g falls outside every rating band", result.Score),
		})
	}
	result.Rating = rating
	return result
}

func clamp(value, lo, hi float64) float64 {
	return math.Min(math.Max(value, lo), hi)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
