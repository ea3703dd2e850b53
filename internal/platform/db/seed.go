package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"kpi/internal/domain/auth"
	"kpi/internal/domain/kpi"
	"kpi/internal/domain/notifications"
	"kpi/internal/platform/config"
)

const seedActor = "seed"

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}

	roleIDs, err := ensureRoles(ctx, pool)
	if err != nil {
		return err
	}

	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}

	if err := ensureAdminUser(ctx, pool, roleIDs[auth.RoleAdmin], cfg.SeedAdminEmail, cfg.SeedAdminName); err != nil {
		return err
	}

	if err := SeedKPIConfiguration(ctx, kpi.NewStore(pool)); err != nil {
		return err
	}

	templates := notifications.NewService(notifications.NewStore(pool), nil, nil, "", false)
	return templates.SeedTemplates(ctx)
}

// ConfigSeeder is the part of the KPI store the seed writes through.
type ConfigSeeder interface {
	LoadConfiguration(ctx context.Context) (kpi.Configuration, error)
	SaveMetrics(ctx context.Context, defs []kpi.MetricDefinition, actor string) (string, error)
	SaveTriggers(ctx context.Context, rules []kpi.TriggerRule, actor string) (string, error)
	SaveRatings(ctx context.Context, scale kpi.RatingScale, actor string) (string, error)
}

// SeedKPIConfiguration fills each empty configuration section with the
// defaults. Sections an administrator already edited are left alone.
func SeedKPIConfiguration(ctx context.Context, store ConfigSeeder) error {
	current, err := store.LoadConfiguration(ctx)
	if err != nil {
		return err
	}
	defaults := kpi.DefaultConfiguration()
	if len(current.Metrics) == 0 {
		if _, err := store.SaveMetrics(ctx, defaults.Metrics, seedActor); err != nil {
			return err
		}
	}
	if len(current.Triggers) == 0 {
		if _, err := store.SaveTriggers(ctx, kpi.CompileTriggers(defaults.Triggers), seedActor); err != nil {
			return err
		}
	}
	if len(current.Ratings) == 0 {
		if _, err := store.SaveRatings(ctx, defaults.Ratings, seedActor); err != nil {
			return err
		}
	}
	return nil
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		_, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range auth.RolePermissions {
		var id string
		err := pool.QueryRow(ctx, `
    INSERT INTO roles (name) VALUES ($1)
    ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
  `, roleName).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	permMap := map[string]string{}
	rows, err := pool.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return err
		}
		permMap[key] = id
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := permMap[permKey]
			if !ok {
				return errors.New("permission not found: " + permKey)
			}
			_, err := pool.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, roleID, email, name string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	_, err := pool.Exec(ctx, `
    INSERT INTO users (email, full_name, role_id)
    VALUES ($1, $2, $3)
    ON CONFLICT (email) DO NOTHING
  `, email, name, roleID)
	return err
}
