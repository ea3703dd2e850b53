package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpi/internal/domain/kpi"
)

const statusActive = "active"

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// Resolve implements kpi.Resolver against the users table: employee code
// first, then email, then an exact case-insensitive name match. Ambiguous
// name matches are treated as unmatched.
func (s *Store) Resolve(ctx context.Context, identity kpi.Identity) (kpi.Resolution, error) {
	if code := strings.TrimSpace(identity.EmployeeID); code != "" {
		id, err := s.lookupOne(ctx, "SELECT id FROM users WHERE lower(employee_code) = lower($1) AND status = $2", code)
		if err != nil || id != "" {
			return matched(id, "employee_id"), err
		}
	}
	if email := strings.TrimSpace(identity.Email); email != "" {
		id, err := s.lookupOne(ctx, "SELECT id FROM users WHERE lower(email) = lower($1) AND status = $2", email)
		if err != nil || id != "" {
			return matched(id, "email"), err
		}
	}
	if name := strings.Join(strings.Fields(identity.Name), " "); name != "" {
		id, err := s.lookupOne(ctx, "SELECT id FROM users WHERE lower(full_name) = lower($1) AND status = $2", name)
		if err != nil || id != "" {
			return matched(id, "name"), err
		}
	}
	return kpi.Resolution{}, nil
}

func matched(id, by string) kpi.Resolution {
	if id == "" {
		return kpi.Resolution{}
	}
	return kpi.Resolution{UserID: id, Matched: true, MatchedBy: by}
}

// lookupOne returns "" when zero or several active users match.
func (s *Store) lookupOne(ctx context.Context, query, value string) (string, error) {
	rows, err := s.DB.Query(ctx, query+" LIMIT 2", value, statusActive)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(ids) != 1 {
		return "", nil
	}
	return ids[0], nil
}

func (s *Store) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	if err := s.DB.QueryRow(ctx, "SELECT email FROM users WHERE id = $1", userID).Scan(&email); err != nil {
		return "", err
	}
	return email, nil
}

func (s *Store) ManagerOf(ctx context.Context, userID string) (string, error) {
	var managerID *string
	err := s.DB.QueryRow(ctx, "SELECT manager_id FROM users WHERE id = $1", userID).Scan(&managerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if managerID == nil {
		return "", nil
	}
	return *managerID, nil
}

func (s *Store) UsersWithRole(ctx context.Context, roleName string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE r.name = $1 AND u.status = $2
    ORDER BY u.id
  `, roleName, statusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
