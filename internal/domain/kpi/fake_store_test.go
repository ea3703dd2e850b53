package kpi

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

type assignmentKey struct {
	employee, period, kind string
}

type outboxKey struct {
	employee, period string
	role             Role
}

// memoryStore is an in-memory StoreAPI. Transactions stage writes and apply
// them only when fn returns nil.
type memoryStore struct {
	mu          sync.Mutex
	cfg         Configuration
	version     int
	writes      int
	batches     map[string]string
	results     map[string]EvaluationResult
	assignments map[assignmentKey]Assignment
	outbox      map[outboxKey]OutboxEntry
	failOn      string
}

func newMemoryStore(cfg Configuration) *memoryStore {
	return &memoryStore{
		cfg:         cfg,
		batches:     map[string]string{},
		results:     map[string]EvaluationResult{},
		assignments: map[assignmentKey]Assignment{},
		outbox:      map[outboxKey]OutboxEntry{},
	}
}

func (m *memoryStore) LoadConfiguration(context.Context) (Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.cfg
	cfg.Metrics = cloneMetrics(m.cfg.Metrics)
	cfg.Triggers = CompileTriggers(m.cfg.Triggers)
	cfg.Ratings = append(RatingScale(nil), m.cfg.Ratings...)
	cfg.Version = strconv.Itoa(m.version)
	return cfg, nil
}

func (m *memoryStore) SaveMetrics(_ context.Context, defs []MetricDefinition, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Metrics = cloneMetrics(defs)
	return m.bump(), nil
}

func (m *memoryStore) SaveTriggers(_ context.Context, rules []TriggerRule, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Triggers = CompileTriggers(rules)
	return m.bump(), nil
}

func (m *memoryStore) SaveRatings(_ context.Context, scale RatingScale, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Ratings = append(RatingScale(nil), scale...)
	return m.bump(), nil
}

func (m *memoryStore) bump() string {
	m.version++
	m.writes++
	return strconv.Itoa(m.version)
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(tx CommitTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{store: m, results: map[string]EvaluationResult{}, assignments: map[assignmentKey]Assignment{}, outbox: map[outboxKey]OutboxEntry{}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.batchKey != "" {
		m.batches[tx.batchKey] = tx.batchID
	}
	for k, v := range tx.results {
		m.results[k] = v
	}
	for k, v := range tx.assignments {
		m.assignments[k] = v
	}
	for k, v := range tx.outbox {
		m.outbox[k] = v
	}
	m.writes += tx.writes
	return nil
}

func (m *memoryStore) ListResults(context.Context, ResultFilter) ([]StoredResult, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StoredResult
	for _, r := range m.results {
		out = append(out, StoredResult{Result: r})
	}
	return out, len(out), nil
}

func (m *memoryStore) GetResult(_ context.Context, employeeIdentifier, period string) (StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[employeeIdentifier+"|"+period]
	if !ok {
		return StoredResult{}, ErrNotFound
	}
	return StoredResult{Result: r}, nil
}

func (m *memoryStore) ListAssignments(context.Context, AssignmentFilter) ([]Assignment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for _, a := range m.assignments {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *memoryStore) PendingOutbox(context.Context, int, int) ([]OutboxEntry, error) {
	return nil, nil
}

func (m *memoryStore) MarkOutbox(context.Context, string, string, string) error {
	return nil
}

func (m *memoryStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type memoryTx struct {
	store       *memoryStore
	batchKey    string
	batchID     string
	writes      int
	results     map[string]EvaluationResult
	assignments map[assignmentKey]Assignment
	outbox      map[outboxKey]OutboxEntry
}

func (t *memoryTx) UpsertBatch(_ context.Context, batch BatchRecord) (string, error) {
	t.writes++
	t.batchKey = batch.BatchKey
	if id, ok := t.store.batches[batch.BatchKey]; ok {
		t.batchID = id
		return id, nil
	}
	t.batchID = fmt.Sprintf("batch-%d", len(t.store.batches)+1)
	return t.batchID, nil
}

func (t *memoryTx) UpsertResult(_ context.Context, _ string, result EvaluationResult) error {
	if t.store.failOn == "result" {
		return fmt.Errorf("result write failed")
	}
	t.writes++
	t.results[result.EmployeeIdentifier+"|"+result.Period] = result
	return nil
}

func (t *memoryTx) InsertAssignment(_ context.Context, _ string, a Assignment) (bool, error) {
	key := assignmentKey{a.EmployeeIdentifier, a.Period, a.Kind}
	if _, ok := t.store.assignments[key]; ok {
		return false, nil
	}
	if _, ok := t.assignments[key]; ok {
		return false, nil
	}
	if t.store.failOn == "assignment" {
		return false, fmt.Errorf("assignment write failed")
	}
	t.writes++
	t.assignments[key] = a
	return true, nil
}

func (t *memoryTx) InsertOutbox(_ context.Context, _ string, e OutboxEntry) (bool, error) {
	key := outboxKey{e.EmployeeIdentifier, e.Period, e.Role}
	if _, ok := t.store.outbox[key]; ok {
		return false, nil
	}
	if _, ok := t.outbox[key]; ok {
		return false, nil
	}
	t.writes++
	t.outbox[key] = e
	return true, nil
}
