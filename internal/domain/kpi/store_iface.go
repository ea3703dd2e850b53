package kpi

import (
	"context"
	"time"
)

type StoreAPI interface {
	LoadConfiguration(ctx context.Context) (Configuration, error)
	SaveMetrics(ctx context.Context, defs []MetricDefinition, actor string) (string, error)
	SaveTriggers(ctx context.Context, rules []TriggerRule, actor string) (string, error)
	SaveRatings(ctx context.Context, scale RatingScale, actor string) (string, error)
	WithTx(ctx context.Context, fn func(tx CommitTx) error) error
	ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, int, error)
	GetResult(ctx context.Context, employeeIdentifier, period string) (StoredResult, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, int, error)
	PendingOutbox(ctx context.Context, maxAttempts, limit int) ([]OutboxEntry, error)
	MarkOutbox(ctx context.Context, id, status, lastError string) error
}

// CommitTx is the transactional surface used while persisting a batch.
// Everything written through it commits or rolls back together.
type CommitTx interface {
	UpsertBatch(ctx context.Context, batch BatchRecord) (string, error)
	UpsertResult(ctx context.Context, batchID string, result EvaluationResult) error
	InsertAssignment(ctx context.Context, batchID string, assignment Assignment) (bool, error)
	InsertOutbox(ctx context.Context, batchID string, entry OutboxEntry) (bool, error)
}

type BatchRecord struct {
	BatchKey      string
	Period        string
	FileName      string
	ConfigVersion string
	Total         int
	Matched       int
	Rejected      int
	CommittedBy   string
	CommittedAt   time.Time
}
