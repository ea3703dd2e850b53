package kpi

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// LoadConfiguration reads every section and the current version from one
// repeatable-read snapshot.
func (s *Store) LoadConfiguration(ctx context.Context) (Configuration, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Configuration{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()
	return loadConfiguration(ctx, tx)
}

func loadConfiguration(ctx context.Context, tx pgx.Tx) (Configuration, error) {
	var cfg Configuration

	rows, err := tx.Query(ctx, `
    SELECT metric_key, label, weight, thresholds_json, is_active, updated_at, COALESCE(updated_by, '')
    FROM kpi_metric_definitions
    ORDER BY position, metric_key
  `)
	if err != nil {
		return cfg, err
	}
	for rows.Next() {
		var def MetricDefinition
		var thresholdsJSON []byte
		if err := rows.Scan(&def.Key, &def.Label, &def.Weight, &thresholdsJSON, &def.Active, &def.UpdatedAt, &def.UpdatedBy); err != nil {
			rows.Close()
			return cfg, err
		}
		if err := json.Unmarshal(thresholdsJSON, &def.Thresholds); err != nil {
			rows.Close()
			return cfg, err
		}
		cfg.Metrics = append(cfg.Metrics, def)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cfg, err
	}

	rows, err = tx.Query(ctx, `
    SELECT id, name, trigger_type, threshold, COALESCE(expression, ''), condition_json, actions_json, recipients_json, is_active, updated_at, COALESCE(updated_by, '')
    FROM kpi_trigger_rules
    ORDER BY position, created_at
  `)
	if err != nil {
		return cfg, err
	}
	for rows.Next() {
		var rule TriggerRule
		var conditionJSON, actionsJSON, recipientsJSON []byte
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Type, &rule.Threshold, &rule.Expression, &conditionJSON, &actionsJSON, &recipientsJSON, &rule.Active, &rule.UpdatedAt, &rule.UpdatedBy); err != nil {
			rows.Close()
			return cfg, err
		}
		if len(conditionJSON) > 0 && string(conditionJSON) != "null" {
			var cond Condition
			if err := json.Unmarshal(conditionJSON, &cond); err != nil {
				rows.Close()
				return cfg, err
			}
			rule.Condition = &cond
		}
		if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
			rows.Close()
			return cfg, err
		}
		if err := json.Unmarshal(recipientsJSON, &rule.Recipients); err != nil {
			rows.Close()
			return cfg, err
		}
		cfg.Triggers = append(cfg.Triggers, rule)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cfg, err
	}

	rows, err = tx.Query(ctx, `
    SELECT label, min_score, max_score
    FROM kpi_rating_bands
    ORDER BY position
  `)
	if err != nil {
		return cfg, err
	}
	for rows.Next() {
		var band RatingBand
		if err := rows.Scan(&band.Label, &band.Min, &band.Max); err != nil {
			rows.Close()
			return cfg, err
		}
		cfg.Ratings = append(cfg.Ratings, band)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cfg, err
	}

	var version int64
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(id), 0) FROM kpi_config_versions").Scan(&version); err != nil {
		return cfg, err
	}
	cfg.Version = strconv.FormatInt(version, 10)
	return cfg, nil
}

func (s *Store) SaveMetrics(ctx context.Context, defs []MetricDefinition, actor string) (string, error) {
	return s.replaceSection(ctx, "metrics", actor, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM kpi_metric_definitions"); err != nil {
			return err
		}
		for i, def := range defs {
			thresholdsJSON, err := json.Marshal(def.Thresholds)
			if err != nil {
				return err
			}
			label := def.Label
			if label == "" {
				label = def.Key.Label()
			}
			if _, err := tx.Exec(ctx, `
        INSERT INTO kpi_metric_definitions (metric_key, position, label, weight, thresholds_json, is_active, updated_at, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,now(),$7)
      `, def.Key, i, label, def.Weight, thresholdsJSON, def.Active, nullIfEmpty(actor)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveTriggers(ctx context.Context, rules []TriggerRule, actor string) (string, error) {
	return s.replaceSection(ctx, "triggers", actor, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM kpi_trigger_rules"); err != nil {
			return err
		}
		for i, rule := range rules {
			var conditionJSON []byte
			if rule.Condition != nil {
				payload, err := json.Marshal(rule.Condition)
				if err != nil {
					return err
				}
				conditionJSON = payload
			}
			actionsJSON, err := json.Marshal(nonNilActions(rule.Actions))
			if err != nil {
				return err
			}
			recipientsJSON, err := json.Marshal(nonNilRoles(rule.Recipients))
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
        INSERT INTO kpi_trigger_rules (id, position, name, trigger_type, threshold, expression, condition_json, actions_json, recipients_json, is_active, updated_at, updated_by)
        VALUES (COALESCE($1::uuid, gen_random_uuid()),$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),$11)
      `, nullIfEmpty(rule.ID), i, rule.Name, rule.Type, rule.Threshold, nullIfEmpty(rule.Expression), conditionJSON, actionsJSON, recipientsJSON, rule.Active, nullIfEmpty(actor)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveRatings(ctx context.Context, scale RatingScale, actor string) (string, error) {
	return s.replaceSection(ctx, "ratings", actor, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM kpi_rating_bands"); err != nil {
			return err
		}
		for i, band := range scale {
			if _, err := tx.Exec(ctx, `
        INSERT INTO kpi_rating_bands (position, label, min_score, max_score)
        VALUES ($1,$2,$3,$4)
      `, i, band.Label, band.Min, band.Max); err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceSection swaps one configuration section and records a new version
// in the same transaction.
func (s *Store) replaceSection(ctx context.Context, section, actor string, write func(tx pgx.Tx) error) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := write(tx); err != nil {
		return "", err
	}
	var version int64
	if err := tx.QueryRow(ctx, `
    INSERT INTO kpi_config_versions (section, updated_by)
    VALUES ($1,$2)
    RETURNING id
  `, section, nullIfEmpty(actor)).Scan(&version); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return strconv.FormatInt(version, 10), nil
}

func nonNilActions(actions []Action) []Action {
	if actions == nil {
		return []Action{}
	}
	return actions
}

func nonNilRoles(roles []Role) []Role {
	if roles == nil {
		return []Role{}
	}
	return roles
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
