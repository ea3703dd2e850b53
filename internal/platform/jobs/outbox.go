package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"kpi/internal/domain/kpi"
	"kpi/internal/domain/notifications"
)

type OutboxStore interface {
	PendingOutbox(ctx context.Context, maxAttempts, limit int) ([]kpi.OutboxEntry, error)
	MarkOutbox(ctx context.Context, id, status, lastError string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n notifications.Notification) (int, error)
}

type OutboxDrainer struct {
	Store       OutboxStore
	Dispatcher  Dispatcher
	MaxAttempts int
	BatchSize   int
}

type DrainReport struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Delivered int `json:"delivered"`
}

// Drain dispatches one page of pending or retryable outbox entries. A failed
// entry stays eligible until it reaches MaxAttempts.
func (d *OutboxDrainer) Drain(ctx context.Context) (DrainReport, error) {
	var report DrainReport
	entries, err := d.Store.PendingOutbox(ctx, d.MaxAttempts, d.BatchSize)
	if err != nil {
		return report, fmt.Errorf("load outbox: %w", err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		delivered, dispatchErr := d.Dispatcher.Dispatch(ctx, notifications.Notification{
			Role:               string(entry.Role),
			TemplateKey:        entry.TemplateKey,
			Variables:          entry.Variables,
			EmployeeIdentifier: entry.EmployeeIdentifier,
			UserID:             entry.UserID,
			DedupeKey:          "outbox:" + entry.ID,
		})
		status, lastError := kpi.OutboxStatusSent, ""
		if dispatchErr != nil {
			status, lastError = kpi.OutboxStatusFailed, dispatchErr.Error()
			report.Failed++
			slog.Warn("outbox dispatch failed", "id", entry.ID, "role", entry.Role, "attempt", entry.Attempts+1, "err", dispatchErr)
		} else {
			report.Sent++
			report.Delivered += delivered
		}
		if err := d.Store.MarkOutbox(ctx, entry.ID, status, lastError); err != nil {
			return report, fmt.Errorf("mark outbox %s: %w", entry.ID, err)
		}
	}
	return report, nil
}
