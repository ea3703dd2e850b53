package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	previews        uint64
	commits         uint64
	rowsEvaluated   uint64
	rowsRejected    uint64
	assignments     uint64
	notifications   uint64
	batchDurationMs uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordPreview counts one evaluated batch that was not persisted.
func (c *Collector) RecordPreview(rows, rejected int, duration time.Duration) {
	atomic.AddUint64(&c.previews, 1)
	c.recordRows(rows, rejected, duration)
}

func (c *Collector) RecordCommit(rows, rejected, assignments, notifications int, duration time.Duration) {
	atomic.AddUint64(&c.commits, 1)
	atomic.AddUint64(&c.assignments, uint64(assignments))
	atomic.AddUint64(&c.notifications, uint64(notifications))
	c.recordRows(rows, rejected, duration)
}

func (c *Collector) recordRows(rows, rejected int, duration time.Duration) {
	atomic.AddUint64(&c.rowsEvaluated, uint64(rows))
	atomic.AddUint64(&c.rowsRejected, uint64(rejected))
	atomic.AddUint64(&c.batchDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":           total,
		"errorsTotal":             errs,
		"rateLimitedTotal":        limited,
		"avgDurationMs":           avg,
		"totalDurationMs":         totalMs,
		"kpiPreviewsTotal":        atomic.LoadUint64(&c.previews),
		"kpiCommitsTotal":         atomic.LoadUint64(&c.commits),
		"kpiRowsEvaluatedTotal":   atomic.LoadUint64(&c.rowsEvaluated),
		"kpiRowsRejectedTotal":    atomic.LoadUint64(&c.rowsRejected),
		"kpiAssignmentsTotal":     atomic.LoadUint64(&c.assignments),
		"kpiNotificationsTotal":   atomic.LoadUint64(&c.notifications),
		"kpiBatchDurationMsTotal": atomic.LoadUint64(&c.batchDurationMs),
	}
}
