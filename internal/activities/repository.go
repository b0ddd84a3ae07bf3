package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrActivityNotFound is returned when an activity does not exist for the org.
var ErrActivityNotFound = errors.New("activity not found")

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository stores activities in the relational database.
type Repository struct {
	pool querier
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("activities: pgx pool required")
	}
	return &Repository{pool: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(q querier) *Repository {
	return &Repository{pool: q}
}

// Create inserts a new activity row.
func (r *Repository) Create(ctx context.Context, a *Activity) (*Activity, error) {
	if _, err := ParseConfig(a.RawConfig); err != nil {
		return nil, err
	}
	id := uuid.New()
	query := `
		INSERT INTO activities (id, org_id, name, kind, config, stages)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	created := *a
	created.ID = id
	if err := r.pool.QueryRow(ctx, query,
		id,
		a.OrgID,
		a.Name,
		a.Kind,
		a.RawConfig,
		a.Stages,
	).Scan(&created.CreatedAt); err != nil {
		return nil, fmt.Errorf("activities: insert failed: %w", err)
	}
	return &created, nil
}

// GetForOrg fetches an activity scoped to the org.
func (r *Repository) GetForOrg(ctx context.Context, orgID, id uuid.UUID) (*Activity, error) {
	query := `
		SELECT id, org_id, name, kind, config, stages, created_at
		FROM activities
		WHERE id = $1 AND org_id = $2
	`
	var a Activity
	if err := r.pool.QueryRow(ctx, query, id, orgID).Scan(
		&a.ID,
		&a.OrgID,
		&a.Name,
		&a.Kind,
		&a.RawConfig,
		&a.Stages,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("activities: select failed: %w", err)
	}
	return &a, nil
}

// ListForOrg returns all activities owned by the org.
func (r *Repository) ListForOrg(ctx context.Context, orgID uuid.UUID) ([]Activity, error) {
	query := `
		SELECT id, org_id, name, kind, config, stages, created_at
		FROM activities
		WHERE org_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("activities: list failed: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.Kind, &a.RawConfig, &a.Stages, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("activities: scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
