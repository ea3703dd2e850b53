package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// CreateNotification reports false when the dedupe key was already
// delivered to this user.
func (s *Store) CreateNotification(ctx context.Context, userID, ntype, title, body, dedupeKey string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO notifications (user_id, type, title, body, dedupe_key)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (user_id, dedupe_key) DO NOTHING
  `, userID, ntype, title, body, nullIfEmpty(dedupeKey))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, type, title, body, read_at, created_at
    FROM notifications
    WHERE user_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Type, &item.Title, &item.Body, &item.ReadAt, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, userID string) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notifications WHERE user_id = $1", userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = now()
    WHERE user_id = $1 AND id = $2
  `, userID, notificationID)
	return err
}

func (s *Store) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := s.DB.Query(ctx, "SELECT key, subject, body, updated_at FROM email_templates ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Template{}
	for rows.Next() {
		var tmpl Template
		if err := rows.Scan(&tmpl.Key, &tmpl.Subject, &tmpl.Body, &tmpl.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, rows.Err()
}

func (s *Store) GetTemplate(ctx context.Context, key string) (Template, error) {
	var tmpl Template
	err := s.DB.QueryRow(ctx, "SELECT key, subject, body, updated_at FROM email_templates WHERE key = $1", key).
		Scan(&tmpl.Key, &tmpl.Subject, &tmpl.Body, &tmpl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrTemplateNotFound
	}
	return tmpl, err
}

func (s *Store) UpsertTemplate(ctx context.Context, tmpl Template) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO email_templates (key, subject, body)
    VALUES ($1,$2,$3)
    ON CONFLICT (key) DO UPDATE
      SET subject = EXCLUDED.subject,
          body = EXCLUDED.body,
          updated_at = now()
  `, tmpl.Key, tmpl.Subject, tmpl.Body)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
