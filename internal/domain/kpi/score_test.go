package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perfectMetrics() map[MetricKey]float64 {
	return map[MetricKey]float64{
		MetricTAT:               96,
		MetricMajorNegativity:   0.5,
		MetricQualityConcern:    0.1,
		MetricNeighborCheck:     95,
		MetricGeneralNegativity: 5,
		MetricAppUsage:          95,
		MetricInsufficiency:     0.2,
	}
}

func recordWith(metrics map[MetricKey]float64) PerformanceRecord {
	return PerformanceRecord{Row: 1, EmployeeIdentifier: "E100", Period: "2024-03", Metrics: metrics, Matched: true, UserID: "u-100"}
}

func TestScorePerfectRecord(t *testing.T) {
	cfg := DefaultConfiguration()
	got := Score(recordWith(perfectMetrics()), cfg.Metrics, cfg.Ratings)

	assert.Equal(t, 100.0, got.Score)
	assert.Equal(t, "Outstanding", got.Rating)
	assert.Empty(t, got.Warnings)
	require.Len(t, got.Breakdown, len(MetricKeys))
	for _, entry := range got.Breakdown {
		assert.True(t, entry.Matched, entry.Metric)
		assert.Equal(t, entry.Weight, entry.Score, entry.Metric)
	}
}

func TestScoreQualityConcernDrop(t *testing.T) {
	cfg := DefaultConfiguration()
	metrics := perfectMetrics()
	metrics[MetricQualityConcern] = 1.2

	got := Score(recordWith(metrics), cfg.Metrics, cfg.Ratings)
	assert.Equal(t, 80.0, got.Score)
	assert.Equal(t, "Excellent", got.Rating)
}

func TestScoreBandScoreClampedToWeight(t *testing.T) {
	defs := []MetricDefinition{{
		Key: MetricTAT, Weight: 10, Active: true,
		Thresholds: []Threshold{{Operator: OpGTE, Value: 0, Score: 50}},
	}}
	got := Score(recordWith(map[MetricKey]float64{MetricTAT: 99}), defs, DefaultRatings())
	assert.Equal(t, 10.0, got.Score)
	assert.Equal(t, 10.0, got.Breakdown[0].Score)
}

func TestScoreStaysWithinBounds(t *testing.T) {
	defs := []MetricDefinition{
		{Key: MetricTAT, Weight: 80, Active: true, Thresholds: []Threshold{{Operator: OpGTE, Value: 0, Score: 80}}},
		{Key: MetricAppUsage, Weight: 80, Active: true, Thresholds: []Threshold{{Operator: OpGTE, Value: 0, Score: 80}}},
		{Key: MetricInsufficiency, Weight: 10, Active: true, Thresholds: []Threshold{{Operator: OpGTE, Value: 0, Score: -5}}},
	}
	got := Score(recordWith(perfectMetrics()), defs, DefaultRatings())
	assert.Equal(t, 100.0, got.Score)
	assert.Equal(t, 0.0, got.Breakdown[2].Score)
}

func TestScoreNoMatchingBandWarns(t *testing.T) {
	defs := []MetricDefinition{{
		Key: MetricTAT, Weight: 100, Active: true,
		Thresholds: []Threshold{{Operator: OpGTE, Value: 90, Score: 100}},
	}}
	got := Score(recordWith(map[MetricKey]float64{MetricTAT: 50}), defs, DefaultRatings())
	assert.Equal(t, 0.0, got.Score)
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, WarningNoMatchingBand, got.Warnings[0].Code)
	assert.Equal(t, MetricTAT, got.Warnings[0].Metric)
}

func TestScoreSkipsInactiveMetrics(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Metrics[0].Active = false
	got := Score(recordWith(perfectMetrics()), cfg.Metrics, cfg.Ratings)
	assert.Equal(t, 80.0, got.Score)
	assert.Len(t, got.Breakdown, len(MetricKeys)-1)
}

func TestScoreUnrated(t *testing.T) {
	cfg := DefaultConfiguration()
	scale := RatingScale{{Label: "Top", Min: 90, Max: 100}}
	metrics := perfectMetrics()
	metrics[MetricTAT] = 10

	got := Score(recordWith(metrics), cfg.Metrics, scale)
	assert.Equal(t, UnratedLabel, got.Rating)
	assert.Equal(t, WarningUnrated, got.Warnings[len(got.Warnings)-1].Code)
}

func TestRatingBoundaries(t *testing.T) {
	scale := DefaultRatings()
	cases := []struct {
		score float64
		want  string
	}{
		{100, "Outstanding"},
		{85, "Outstanding"},
		{84.99, "Excellent"},
		{70, "Excellent"},
		{50, "Satisfactory"},
		{40, "Need Improvement"},
		{0, "Unsatisfactory"},
	}
	for _, tc := range cases {
		got, ok := scale.Rate(tc.score)
		assert.True(t, ok, tc.score)
		assert.Equal(t, tc.want, got, tc.score)
	}
}

func TestSnapshotEvaluateIsDeterministic(t *testing.T) {
	snapshot := NewSnapshot(DefaultConfiguration())
	metrics := perfectMetrics()
	metrics[MetricQualityConcern] = 1.2
	record := recordWith(metrics)

	first := snapshot.Evaluate(record)
	second := snapshot.Evaluate(record)
	assert.Equal(t, first, second)
}

func TestSnapshotIsolatedFromLaterEdits(t *testing.T) {
	cfg := DefaultConfiguration()
	snapshot := NewSnapshot(cfg)
	cfg.Metrics[0].Thresholds[0].Score = 0
	cfg.Triggers[1].Actions[0] = ActionWarningLetter

	assert.Equal(t, 20.0, snapshot.Metrics[0].Thresholds[0].Score)
	assert.Equal(t, ActionAuditCall, snapshot.Triggers[1].Actions[0])
}
