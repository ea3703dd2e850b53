package kpi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type commitTx struct {
	tx pgx.Tx
}

func (c *commitTx) UpsertBatch(ctx context.Context, batch BatchRecord) (string, error) {
	var id string
	err := c.tx.QueryRow(ctx, `
    INSERT INTO kpi_batches (batch_key, period, file_name, config_version, total_rows, matched_rows, rejected_rows, committed_by, committed_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    ON CONFLICT (batch_key) DO UPDATE
      SET commit_count = kpi_batches.commit_count + 1,
          config_version = EXCLUDED.config_version,
          committed_by = EXCLUDED.committed_by,
          committed_at = EXCLUDED.committed_at
    RETURNING id
  `, batch.BatchKey, nullIfEmpty(batch.Period), nullIfEmpty(batch.FileName), batch.ConfigVersion,
		batch.Total, batch.Matched, batch.Rejected, nullIfEmpty(batch.CommittedBy), batch.CommittedAt).Scan(&id)
	return id, err
}

func (c *commitTx) UpsertResult(ctx context.Context, batchID string, result EvaluationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = c.tx.Exec(ctx, `
    INSERT INTO kpi_results (batch_id, employee_identifier, period, user_id, matched, kpi_score, rating, result_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (employee_identifier, period) DO UPDATE
      SET batch_id = EXCLUDED.batch_id,
          user_id = EXCLUDED.user_id,
          matched = EXCLUDED.matched,
          kpi_score = EXCLUDED.kpi_score,
          rating = EXCLUDED.rating,
          result_json = EXCLUDED.result_json,
          updated_at = now()
  `, batchID, result.EmployeeIdentifier, result.Period, nullIfEmpty(result.UserID), result.Matched, result.KPIScore, result.Rating, payload)
	return err
}

// InsertAssignment reports false when the (employee, period, kind) triple
// already exists.
func (c *commitTx) InsertAssignment(ctx context.Context, batchID string, assignment Assignment) (bool, error) {
	tag, err := c.tx.Exec(ctx, `
    INSERT INTO kpi_assignments (batch_id, employee_identifier, user_id, period, kind, action, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (employee_identifier, period, kind) DO NOTHING
  `, batchID, assignment.EmployeeIdentifier, nullIfEmpty(assignment.UserID), assignment.Period, assignment.Kind, assignment.Action, assignment.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (c *commitTx) InsertOutbox(ctx context.Context, batchID string, entry OutboxEntry) (bool, error) {
	variables, err := json.Marshal(entry.Variables)
	if err != nil {
		return false, err
	}
	tag, err := c.tx.Exec(ctx, `
    INSERT INTO kpi_notification_outbox (batch_id, employee_identifier, user_id, period, role, template_key, variables_json, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (employee_identifier, period, role) DO NOTHING
  `, batchID, entry.EmployeeIdentifier, nullIfEmpty(entry.UserID), entry.Period, entry.Role, entry.TemplateKey, variables, OutboxStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, int, error) {
	where := " WHERE 1=1"
	var args []any
	if filter.Period != "" {
		args = append(args, filter.Period)
		where += fmt.Sprintf(" AND period = $%d", len(args))
	}
	if filter.Rating != "" {
		args = append(args, filter.Rating)
		where += fmt.Sprintf(" AND rating = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM kpi_results"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, batch_id, result_json, created_at FROM kpi_results" + where +
		fmt.Sprintf(" ORDER BY period DESC, employee_identifier LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []StoredResult{}
	for rows.Next() {
		stored, err := scanStoredResult(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, stored)
	}
	return out, total, rows.Err()
}

func (s *Store) GetResult(ctx context.Context, employeeIdentifier, period string) (StoredResult, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, batch_id, result_json, created_at
    FROM kpi_results
    WHERE employee_identifier = $1 AND period = $2
  `, employeeIdentifier, period)
	stored, err := scanStoredResult(row)
	if err != nil {
		return StoredResult{}, notFound(err, "result")
	}
	return stored, nil
}

func scanStoredResult(row pgx.Row) (StoredResult, error) {
	var stored StoredResult
	var payload []byte
	if err := row.Scan(&stored.ID, &stored.BatchID, &payload, &stored.CreatedAt); err != nil {
		return StoredResult{}, err
	}
	if err := json.Unmarshal(payload, &stored.Result); err != nil {
		return StoredResult{}, err
	}
	return stored, nil
}

func (s *Store) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, int, error) {
	where := " WHERE 1=1"
	var args []any
	if filter.Period != "" {
		args = append(args, filter.Period)
		where += fmt.Sprintf(" AND period = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.EmployeeIdentifier != "" {
		args = append(args, filter.EmployeeIdentifier)
		where += fmt.Sprintf(" AND employee_identifier = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM kpi_assignments"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, batch_id, employee_identifier, COALESCE(user_id::text, ''), period, kind, action, status, created_at FROM kpi_assignments" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.BatchID, &a.EmployeeIdentifier, &a.UserID, &a.Period, &a.Kind, &a.Action, &a.Status, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (s *Store) PendingOutbox(ctx context.Context, maxAttempts, limit int) ([]OutboxEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_identifier, COALESCE(user_id::text, ''), period, role, template_key, variables_json, attempts
    FROM kpi_notification_outbox
    WHERE status IN ($1, $2) AND attempts < $3
    ORDER BY created_at
    LIMIT $4
  `, OutboxStatusPending, OutboxStatusFailed, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var variables []byte
		if err := rows.Scan(&entry.ID, &entry.EmployeeIdentifier, &entry.UserID, &entry.Period, &entry.Role, &entry.TemplateKey, &variables, &entry.Attempts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(variables, &entry.Variables); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) MarkOutbox(ctx context.Context, id, status, lastError string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE kpi_notification_outbox
    SET status = $1,
        attempts = attempts + 1,
        last_error = $2,
        sent_at = CASE WHEN $1 = 'sent' THEN now() ELSE sent_at END
    WHERE id = $3
  `, status, nullIfEmpty(lastError), id)
	return err
}
