package kpi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store *memoryStore) *Service {
	svc := NewService(store, testRoster(), NewInMemoryConfigCache())
	svc.Concurrency = 4
	return svc
}

func sampleBatch() BatchRequest {
	return BatchRequest{
		Period:   "2024-03",
		FileName: "march.xlsx",
		Rows: []RawRow{
			uploadRow(1, "E100", nil),
			uploadRow(2, "E200", map[string]string{"Quality Concern": "1.2"}),
			uploadRow(3, "E999", map[string]string{"Employee Name": "Nobody", "TAT %": "40"}),
			{Index: 4, Values: map[string]string{"Employee ID": "E300"}},
		},
	}
}

func TestPreviewMakesNoWrites(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)

	result, err := svc.Preview(context.Background(), sampleBatch())
	require.NoError(t, err)

	assert.Equal(t, 0, store.writeCount())
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, 4, result.RowErrors[0].Row)
	assert.Len(t, result.BatchKey, 64)
	assert.Empty(t, result.ConfigWarnings)

	require.Len(t, result.Results, 3)
	assert.Equal(t, 100.0, result.Results[0].KPIScore)
	assert.Empty(t, result.Results[0].Triggers)
	assert.Equal(t, 80.0, result.Results[1].KPIScore)
	assert.Equal(t, []Action{ActionAuditCall, ActionTraining}, actionsOf(result.Results[1].Triggers))
	assert.False(t, result.Results[2].Matched)
	assert.Empty(t, result.Results[2].NotifyRoles)
}

func TestPreviewPreservesRowOrder(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)

	req := BatchRequest{Period: "2024-03"}
	for i := 1; i <= 60; i++ {
		req.Rows = append(req.Rows, uploadRow(i, fmt.Sprintf("E%03d", i), nil))
	}
	result, err := svc.Preview(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Results, 60)
	for i, r := range result.Results {
		assert.Equal(t, i+1, r.Row)
	}
}

func TestPreviewAssignsMissingRowIndexes(t *testing.T) {
	svc := newTestService(newMemoryStore(DefaultConfiguration()))
	row := uploadRow(0, "E100", nil)
	result, err := svc.Preview(context.Background(), BatchRequest{Rows: []RawRow{row, row}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Results[0].Row)
	assert.Equal(t, 2, result.Results[1].Row)
}

func TestPreviewWithNonFiniteCellsEncodes(t *testing.T) {
	svc := newTestService(newMemoryStore(DefaultConfiguration()))
	req := BatchRequest{Period: "2024-03", Rows: []RawRow{
		uploadRow(1, "E100", map[string]string{"TAT %": "NaN", "Insuff": "-Inf"}),
	}}

	result, err := svc.Preview(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	defaulted := 0
	for _, w := range result.Results[0].Warnings {
		if w.Code == WarningDefaultedValue {
			defaulted++
		}
	}
	assert.Equal(t, 2, defaulted)

	_, err = json.Marshal(result)
	require.NoError(t, err)
}

func TestPreviewErrors(t *testing.T) {
	svc := newTestService(newMemoryStore(DefaultConfiguration()))

	_, err := svc.Preview(context.Background(), BatchRequest{})
	assert.ErrorIs(t, err, ErrBatchEmpty)

	_, err = svc.Preview(context.Background(), BatchRequest{Period: "later", Rows: sampleBatch().Rows})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Preview(ctx, sampleBatch())
	assert.ErrorIs(t, err, context.Canceled)

	failing := NewService(newMemoryStore(DefaultConfiguration()), failingResolver{}, nil)
	_, err = failing.Preview(context.Background(), sampleBatch())
	assert.ErrorIs(t, err, ErrResolverFailed)
}

func TestCommitMatchesPreview(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)

	preview, err := svc.Preview(context.Background(), sampleBatch())
	require.NoError(t, err)
	committed, err := svc.Commit(context.Background(), sampleBatch(), "admin")
	require.NoError(t, err)

	assert.Equal(t, preview.Results, committed.Results)
	assert.Equal(t, preview.BatchKey, committed.BatchKey)
	assert.NotEmpty(t, committed.BatchID)
	// E200 receives Audit Call and Training; E999 is unmatched.
	assert.Equal(t, 2, committed.AssignmentsCreated)
	assert.Equal(t, 1, committed.SkippedUnmatched)
	assert.Equal(t, 3, committed.NotificationsQueued)
	assert.Empty(t, committed.AlreadyApplied)
	assert.Len(t, store.results, 3)
}

func TestCommitReportsStoredConfigWarnings(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Ratings[0].Min, cfg.Ratings[0].Max = cfg.Ratings[0].Max, cfg.Ratings[0].Min
	svc := newTestService(newMemoryStore(cfg))

	committed, err := svc.Commit(context.Background(), sampleBatch(), "admin")
	require.NoError(t, err)
	assert.Contains(t, codesOf(committed.ConfigWarnings), ConfigWarningRatingBounds)
	assert.Len(t, committed.Results, 3)
}

func TestCommitIsIdempotent(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)
	var hooked int
	svc.Committed = func(context.Context, CommitResult) { hooked++ }

	first, err := svc.Commit(context.Background(), sampleBatch(), "admin")
	require.NoError(t, err)
	second, err := svc.Commit(context.Background(), sampleBatch(), "admin")
	require.NoError(t, err)

	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Equal(t, 0, second.AssignmentsCreated)
	assert.Len(t, second.AlreadyApplied, first.AssignmentsCreated)
	assert.Equal(t, 0, second.NotificationsQueued)
	assert.Len(t, store.assignments, first.AssignmentsCreated)
	assert.Equal(t, 2, hooked)
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	store.failOn = "assignment"
	svc := newTestService(store)
	svc.Committed = func(context.Context, CommitResult) { t.Fatal("hook must not run on failure") }

	_, err := svc.Commit(context.Background(), sampleBatch(), "admin")
	require.Error(t, err)
	assert.Empty(t, store.results)
	assert.Empty(t, store.assignments)
	assert.Empty(t, store.outbox)
	assert.Equal(t, 0, store.writeCount())
}

func TestCommitUsesFreshConfiguration(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)

	preview, err := svc.Preview(context.Background(), sampleBatch())
	require.NoError(t, err)

	metrics := DefaultMetrics()
	metrics[2].Thresholds[2].Score = 20
	_, _, err = svc.UpdateMetrics(context.Background(), metrics, "admin")
	require.NoError(t, err)

	committed, err := svc.Commit(context.Background(), sampleBatch(), "admin")
	require.NoError(t, err)
	assert.Equal(t, 80.0, preview.Results[1].KPIScore)
	assert.Equal(t, 100.0, committed.Results[1].KPIScore)
	assert.NotEqual(t, preview.ConfigVersion, committed.ConfigVersion)
}

func TestUpdateRejectsBlockingWarnings(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)

	metrics := DefaultMetrics()
	metrics[0].Thresholds[0].Operator = "approx"
	_, warnings, err := svc.UpdateMetrics(context.Background(), metrics, "admin")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{ConfigWarningUnknownOperator}, codesOf(warnings))
	assert.Equal(t, 0, store.writeCount())

	rules := DefaultTriggers()
	rules[4].Expression = "Quality Concern >> 1"
	_, _, err = svc.UpdateTriggers(context.Background(), rules, "admin")
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, _, err = svc.UpdateRatings(context.Background(), RatingScale{{Label: "x", Min: 10, Max: 5}}, "admin")
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestUpdateKeepsNonBlockingWarnings(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)

	metrics := DefaultMetrics()
	metrics[0].Weight = 10
	cfg, warnings, err := svc.UpdateMetrics(context.Background(), metrics, "admin")
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.Metrics[0].Weight)
	assert.Equal(t, []string{ConfigWarningWeightSum}, codesOf(warnings))
}

func TestUpdateTriggersStoresCompiledTree(t *testing.T) {
	store := newMemoryStore(DefaultConfiguration())
	svc := newTestService(store)

	cfg, _, err := svc.UpdateTriggers(context.Background(), DefaultTriggers(), "admin")
	require.NoError(t, err)
	for _, rule := range cfg.Triggers {
		if rule.Type == TriggerConditionBased {
			assert.NotNil(t, rule.Condition, rule.Name)
		}
	}
}

func TestBatchKeyIsStable(t *testing.T) {
	a := BatchKey(sampleBatch())
	b := BatchKey(sampleBatch())
	assert.Equal(t, a, b)

	other := sampleBatch()
	other.Period = "2024-04"
	assert.NotEqual(t, a, BatchKey(other))
}
