package letters

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"kpi/internal/domain/kpi"
)

func warnedResult() kpi.EvaluationResult {
	return kpi.EvaluationResult{
		EmployeeIdentifier: "E300",
		EmployeeName:       "Kiran Shah",
		Period:             "2024-03",
		Matched:            true,
		KPIScore:           38.5,
		Rating:             "Poor",
		Breakdown: []kpi.MetricScore{
			{Metric: kpi.MetricTAT, Label: "TAT", Value: 60, Weight: 25, Score: 5},
		},
		Triggers: []kpi.Trigger{
			{Type: kpi.TriggerScoreBased, Action: kpi.ActionWarningLetter},
		},
	}
}

func TestWriteWarningLetterProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWarningLetter(&buf, "Acme Field Services", warnedResult(), time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", buf.Bytes()[:8])
	}
}

func TestWriteWarningLetterRequiresTrigger(t *testing.T) {
	result := warnedResult()
	result.Triggers = []kpi.Trigger{{Type: kpi.TriggerScoreBased, Action: kpi.ActionTraining}}
	var buf bytes.Buffer
	if err := WriteWarningLetter(&buf, "Acme", result, time.Now()); !errors.Is(err, kpi.ErrNoWarningLetter) {
		t.Fatalf("expected ErrNoWarningLetter, got %v", err)
	}

	result = warnedResult()
	result.Matched = false
	if err := WriteWarningLetter(&buf, "Acme", result, time.Now()); !errors.Is(err, kpi.ErrNoWarningLetter) {
		t.Fatalf("expected ErrNoWarningLetter for unmatched result, got %v", err)
	}
}
