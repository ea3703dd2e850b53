package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kpi/internal/domain/kpi"
	"kpi/internal/domain/notifications"
	"kpi/internal/platform/config"
)

type fakeOutbox struct {
	mu      sync.Mutex
	entries []kpi.OutboxEntry
	marks   map[string]string
}

func (f *fakeOutbox) PendingOutbox(_ context.Context, maxAttempts, limit int) ([]kpi.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []kpi.OutboxEntry{}
	for _, entry := range f.entries {
		status := f.marks[entry.ID]
		if status == kpi.OutboxStatusSent || entry.Attempts >= maxAttempts {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkOutbox(_ context.Context, id, status, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marks == nil {
		f.marks = map[string]string{}
	}
	f.marks[id] = status
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Attempts++
		}
	}
	return nil
}

func (f *fakeOutbox) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks[id]
}

type fakeDispatcher struct {
	mu     sync.Mutex
	seen   []notifications.Notification
	failOn string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, n notifications.Notification) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, n)
	if n.Role == f.failOn {
		return 0, errors.New("smtp unavailable")
	}
	return 1, nil
}

type fakeRuns struct {
	mu       sync.Mutex
	finished map[string]string
}

func (f *fakeRuns) Begin(_ context.Context, jobType string) (string, error) {
	return "run-" + jobType, nil
}

func (f *fakeRuns) Finish(_ context.Context, runID, status string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished == nil {
		f.finished = map[string]string{}
	}
	f.finished[runID] = status
	return nil
}

func (f *fakeRuns) status(runID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[runID]
}

func sampleOutbox() *fakeOutbox {
	return &fakeOutbox{entries: []kpi.OutboxEntry{
		{ID: "o-1", EmployeeIdentifier: "E100", UserID: "u-100", Period: "2024-03", Role: kpi.Role("manager"), TemplateKey: kpi.TemplateKPITrigger},
		{ID: "o-2", EmployeeIdentifier: "E100", UserID: "u-100", Period: "2024-03", Role: kpi.Role("trainer"), TemplateKey: kpi.TemplateKPITrigger},
	}}
}

func TestDrainMarksEntries(t *testing.T) {
	outbox := sampleOutbox()
	dispatcher := &fakeDispatcher{failOn: "trainer"}
	drainer := &OutboxDrainer{Store: outbox, Dispatcher: dispatcher, MaxAttempts: 3, BatchSize: 10}

	report, err := drainer.Drain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Processed != 2 || report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if outbox.status("o-1") != kpi.OutboxStatusSent || outbox.status("o-2") != kpi.OutboxStatusFailed {
		t.Fatalf("unexpected marks %v", outbox.marks)
	}
	if dispatcher.seen[0].DedupeKey != "outbox:o-1" || dispatcher.seen[0].UserID != "u-100" {
		t.Fatalf("unexpected notification %+v", dispatcher.seen[0])
	}
}

func TestDrainRetriesUntilMaxAttempts(t *testing.T) {
	outbox := sampleOutbox()
	dispatcher := &fakeDispatcher{failOn: "trainer"}
	drainer := &OutboxDrainer{Store: outbox, Dispatcher: dispatcher, MaxAttempts: 3, BatchSize: 10}

	for i := 0; i < 5; i++ {
		if _, err := drainer.Drain(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	trainerCalls := 0
	for _, n := range dispatcher.seen {
		if n.Role == "trainer" {
			trainerCalls++
		}
	}
	if trainerCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", trainerCalls)
	}
	if len(dispatcher.seen) != 4 {
		t.Fatalf("expected sent entry dispatched once, got %d calls", len(dispatcher.seen))
	}
}

func TestRunNowRecordsStatus(t *testing.T) {
	runs := &fakeRuns{}
	svc := New(runs, config.Config{}, nil)

	if _, err := svc.RunNow(context.Background(), "ok", func(context.Context) (any, error) { return map[string]int{"n": 1}, nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.RunNow(context.Background(), "boom", func(context.Context) (any, error) { return nil, errors.New("boom") }); err == nil {
		t.Fatal("expected job error")
	}
	if runs.status("run-ok") != "completed" || runs.status("run-boom") != "failed" {
		t.Fatalf("unexpected statuses %v", runs.finished)
	}
}

func TestWorkerDrainsEnqueuedOutbox(t *testing.T) {
	outbox := sampleOutbox()
	runs := &fakeRuns{}
	drainer := &OutboxDrainer{Store: outbox, Dispatcher: &fakeDispatcher{}, MaxAttempts: 3, BatchSize: 10}
	svc := New(runs, config.Config{}, drainer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	svc.EnqueueOutboxDrain()

	deadline := time.Now().Add(2 * time.Second)
	for runs.status("run-"+JobOutboxDrain) == "" {
		if time.Now().After(deadline) {
			t.Fatal("outbox drain did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if outbox.status("o-1") != kpi.OutboxStatusSent || outbox.status("o-2") != kpi.OutboxStatusSent {
		t.Fatalf("expected both entries sent, got %v", outbox.marks)
	}
}
