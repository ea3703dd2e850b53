package kpi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

type evaluation struct {
	result *EvaluationResult
	rowErr *RowError
}

// Preview evaluates a batch against the current configuration without
// writing anything.
func (s *Service) Preview(ctx context.Context, req BatchRequest) (BatchResult, error) {
	return s.evaluate(ctx, req)
}

// Commit re-evaluates the batch with a fresh configuration snapshot and
// persists results, assignments and queued notifications in one
// transaction. Re-committing the same batch reports existing assignments as
// already applied instead of creating duplicates.
func (s *Service) Commit(ctx context.Context, req BatchRequest, actor string) (CommitResult, error) {
	batch, err := s.evaluate(ctx, req)
	if err != nil {
		return CommitResult{}, err
	}

	out := CommitResult{BatchResult: batch, AlreadyApplied: []AppliedAssignment{}}
	err = s.store.WithTx(ctx, func(tx CommitTx) error {
		batchID, err := tx.UpsertBatch(ctx, BatchRecord{
			BatchKey:      batch.BatchKey,
			Period:        batch.Period,
			FileName:      req.FileName,
			ConfigVersion: batch.ConfigVersion,
			Total:         batch.Total,
			Matched:       batch.Matched,
			Rejected:      batch.Rejected,
			CommittedBy:   actor,
			CommittedAt:   s.Now(),
		})
		if err != nil {
			return err
		}
		out.BatchID = batchID

		for _, result := range batch.Results {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.UpsertResult(ctx, batchID, result); err != nil {
				return err
			}
			if !result.Matched {
				if len(result.Triggers) > 0 {
					out.SkippedUnmatched++
				}
				continue
			}
			for _, trigger := range result.Triggers {
				assignment := Assignment{
					BatchID:            batchID,
					EmployeeIdentifier: result.EmployeeIdentifier,
					UserID:             result.UserID,
					Period:             result.Period,
					Kind:               trigger.Action.Kind(),
					Action:             trigger.Action,
					Status:             AssignmentStatusAssigned,
				}
				created, err := tx.InsertAssignment(ctx, batchID, assignment)
				if err != nil {
					return err
				}
				if created {
					out.AssignmentsCreated++
					continue
				}
				out.AlreadyApplied = append(out.AlreadyApplied, AppliedAssignment{
					EmployeeIdentifier: assignment.EmployeeIdentifier,
					Period:             assignment.Period,
					Kind:               assignment.Kind,
				})
			}
			for _, role := range result.NotifyRoles {
				queued, err := tx.InsertOutbox(ctx, batchID, OutboxEntry{
					EmployeeIdentifier: result.EmployeeIdentifier,
					UserID:             result.UserID,
					Period:             result.Period,
					Role:               role,
					TemplateKey:        TemplateKPITrigger,
					Variables:          NotificationVariables(result, role),
				})
				if err != nil {
					return err
				}
				if queued {
					out.NotificationsQueued++
				}
			}
		}
		return nil
	})
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit batch %s: %w", batch.BatchKey, err)
	}

	slog.Info("kpi batch committed",
		"batchId", out.BatchID,
		"batchKey", out.BatchKey,
		"results", len(out.Results),
		"assignmentsCreated", out.AssignmentsCreated,
		"alreadyApplied", len(out.AlreadyApplied),
		"notificationsQueued", out.NotificationsQueued,
	)
	if s.Committed != nil {
		s.Committed(ctx, out)
	}
	return out, nil
}

func (s *Service) evaluate(ctx context.Context, req BatchRequest) (BatchResult, error) {
	if len(req.Rows) == 0 {
		return BatchResult{}, ErrBatchEmpty
	}
	if _, err := NewNormalizer(s.resolver, req.Period); err != nil {
		return BatchResult{}, err
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return EvaluateBatch(ctx, cfg, s.resolver, req, s.Concurrency)
}

// EvaluateBatch normalizes and evaluates every row of req against one
// configuration snapshot. Rows are evaluated concurrently, at most limit at a
// time, and results keep input order.
func EvaluateBatch(ctx context.Context, cfg Configuration, resolver Resolver, req BatchRequest, limit int) (BatchResult, error) {
	if len(req.Rows) == 0 {
		return BatchResult{}, ErrBatchEmpty
	}
	normalizer, err := NewNormalizer(resolver, req.Period)
	if err != nil {
		return BatchResult{}, err
	}
	snapshot := NewSnapshot(cfg)

	if limit <= 0 {
		limit = defaultConcurrency
	}
	slots := make([]evaluation, len(req.Rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, row := range req.Rows {
		if row.Index == 0 {
			row.Index = i + 1
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record, err := normalizer.Normalize(gctx, row)
			var rowErr RowError
			if errors.As(err, &rowErr) {
				slots[i].rowErr = &rowErr
				return nil
			}
			if err != nil {
				return err
			}
			result := snapshot.Evaluate(record)
			slots[i].result = &result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	out := BatchResult{
		BatchKey:       BatchKey(req),
		Period:         normalizer.period,
		ConfigVersion:  snapshot.Version,
		Results:        make([]EvaluationResult, 0, len(req.Rows)),
		RowErrors:      []RowError{},
		ConfigWarnings: nonNilWarnings(snapshot.Warnings),
		Total:          len(req.Rows),
	}
	for _, slot := range slots {
		switch {
		case slot.rowErr != nil:
			out.RowErrors = append(out.RowErrors, *slot.rowErr)
			out.Rejected++
		case slot.result != nil:
			out.Results = append(out.Results, *slot.result)
			if slot.result.Matched {
				out.Matched++
			} else {
				out.Unmatched++
			}
		}
	}
	return out, nil
}

// BatchKey fingerprints the batch content so repeated uploads of the same
// file can be traced to one batch row.
func BatchKey(req BatchRequest) string {
	canonical := struct {
		Period string   `json:"period"`
		Rows   []RawRow `json:"rows"`
	}{Period: strings.TrimSpace(req.Period), Rows: req.Rows}
	payload, err := json.Marshal(canonical)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", canonical))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// NotificationVariables builds the template variables for a trigger
// notification addressed to role.
func NotificationVariables(result EvaluationResult, role Role) map[string]any {
	actions := make([]string, 0, len(result.Triggers))
	for _, trigger := range result.Triggers {
		actions = append(actions, string(trigger.Action))
	}
	name := result.EmployeeName
	if name == "" {
		name = result.EmployeeIdentifier
	}
	return map[string]any{
		"EmployeeName":       name,
		"EmployeeIdentifier": result.EmployeeIdentifier,
		"Period":             result.Period,
		"Score":              fmt.Sprintf("%.2f", result.KPIScore),
		"Rating":             result.Rating,
		"Actions":            strings.Join(actions, ", "),
		"Role":               string(role),
	}
}
