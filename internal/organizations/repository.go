package organizations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists organizations.
type Repository struct {
	pool querier
}

// NewRepository creates a repository backed by pgx.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("organizations: pgx pool required")
	}
	return &Repository{pool: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(q querier) *Repository {
	return &Repository{pool: q}
}

const organizationColumns = `id, name, billing_email, active, COALESCE(external_account_id, ''), gateway_account_status, created_at, updated_at`

func scanOrganization(row pgx.Row) (*Organization, error) {
	var o Organization
	if err := row.Scan(&o.ID, &o.Name, &o.BillingEmail, &o.Active, &o.ExternalAccountID, &o.GatewayAccountStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts an active organization with no gateway account yet.
func (r *Repository) Create(ctx context.Context, name, billingEmail string) (*Organization, error) {
	if name == "" {
		return nil, errors.New("organizations: name required")
	}
	query := `
		INSERT INTO organizations (id, name, billing_email, active, gateway_account_status)
		VALUES ($1, $2, $3, true, 'none')
		RETURNING ` + organizationColumns
	o, err := scanOrganization(r.pool.QueryRow(ctx, query, uuid.New(), name, billingEmail))
	if err != nil {
		return nil, fmt.Errorf("organizations: insert failed: %w", err)
	}
	return o, nil
}

// LinkGatewayAccount records the payment gateway account id assigned to the
// tenant during onboarding.
func (r *Repository) LinkGatewayAccount(ctx context.Context, id uuid.UUID, externalAccountID, status string) error {
	query := `
		UPDATE organizations
		SET external_account_id = $2, gateway_account_status = $3, updated_at = now()
		WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id, externalAccountID, status)
	if err != nil {
		return fmt.Errorf("organizations: link gateway account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// Get fetches an organization by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	o, err := scanOrganization(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("organizations: select failed: %w", err)
	}
	return o, nil
}

// Deactivate suspends a tenant. Rows owned by the org stay in place; the
// tenant middleware stops admitting requests for it.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE organizations SET active = false, updated_at = now() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("organizations: deactivate: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}
