package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists reservations. Status fields are only ever written
// through guarded compare-and-swap updates so a concurrent webhook effect
// and operator action cannot both apply against a stale read.
type Repository struct {
	pool querier
}

// NewRepository creates a repository backed by pgx.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("reservations: pgx pool required")
	}
	return &Repository{pool: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(q querier) *Repository {
	return &Repository{pool: q}
}

const reservationColumns = `id, org_id, activity_id, activity_kind, status, payment_status, customer_name, customer_email, participants, metadata, scheduled_at, resources, COALESCE(cancel_reason, ''), created_at, updated_at`

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	var metadata []byte
	var scheduledAt *time.Time
	if err := row.Scan(
		&r.ID,
		&r.OrgID,
		&r.ActivityID,
		&r.ActivityKind,
		&r.Status,
		&r.PaymentStatus,
		&r.CustomerName,
		&r.CustomerEmail,
		&r.Participants,
		&metadata,
		&scheduledAt,
		&r.Resources,
		&r.CancelReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.ScheduledAt = scheduledAt
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("reservations: decode metadata: %w", err)
		}
	}
	return &r, nil
}

// Create inserts a reservation in pending/pending.
func (r *Repository) Create(ctx context.Context, res *Reservation) (*Reservation, error) {
	metadata, err := json.Marshal(res.Metadata)
	if err != nil {
		return nil, fmt.Errorf("reservations: encode metadata: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO reservations (id, org_id, activity_id, activity_kind, status, payment_status, customer_name, customer_email, participants, metadata)
		VALUES ($1, $2, $3, $4, 'pending', 'pending', $5, $6, $7, $8)
		RETURNING ` + reservationColumns
	created, err := scanReservation(r.pool.QueryRow(ctx, query,
		id,
		res.OrgID,
		res.ActivityID,
		res.ActivityKind,
		res.CustomerName,
		res.CustomerEmail,
		res.Participants,
		metadata,
	))
	if err != nil {
		return nil, fmt.Errorf("reservations: insert failed: %w", err)
	}
	return created, nil
}

// GetForOrg fetches a reservation scoped to the org.
func (r *Repository) GetForOrg(ctx context.Context, orgID, id uuid.UUID) (*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 AND org_id = $2`
	res, err := scanReservation(r.pool.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("reservations: select failed: %w", err)
	}
	return res, nil
}

// TransitionStatus applies a guarded lifecycle transition. The update only
// matches when the persisted status is still one of the allowed sources;
// applied is false when a concurrent writer got there first.
func (r *Repository) TransitionStatus(ctx context.Context, orgID, id uuid.UUID, to string, from []string) (bool, error) {
	query := `
		UPDATE reservations
		SET status = $3, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND status = ANY($4)
	`
	ct, err := r.pool.Exec(ctx, query, id, orgID, to, from)
	if err != nil {
		return false, fmt.Errorf("reservations: transition status: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkScheduled transitions authorized -> scheduled and records the slot.
func (r *Repository) MarkScheduled(ctx context.Context, orgID, id uuid.UUID, scheduledAt time.Time, resources []string) (bool, error) {
	query := `
		UPDATE reservations
		SET status = 'scheduled', scheduled_at = $3, resources = $4, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND status = 'authorized'
	`
	ct, err := r.pool.Exec(ctx, query, id, orgID, scheduledAt, resources)
	if err != nil {
		return false, fmt.Errorf("reservations: mark scheduled: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkCancelled transitions any non-terminal status to cancelled with a
// reason.
func (r *Repository) MarkCancelled(ctx context.Context, orgID, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE reservations
		SET status = 'cancelled', cancel_reason = $3, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND status = ANY($4)
	`
	ct, err := r.pool.Exec(ctx, query, id, orgID, reason, statusSources[StatusCancelled])
	if err != nil {
		return false, fmt.Errorf("reservations: mark cancelled: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// SetPaymentStatus applies a guarded payment sub-status transition along
// the monotone DAG.
func (r *Repository) SetPaymentStatus(ctx context.Context, orgID, id uuid.UUID, to string, from []string) (bool, error) {
	query := `
		UPDATE reservations
		SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND payment_status = ANY($4)
	`
	ct, err := r.pool.Exec(ctx, query, id, orgID, to, from)
	if err != nil {
		return false, fmt.Errorf("reservations: set payment status: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MergeMetadata merges key/value pairs into the metadata document. Keys
// must already be validated by the caller.
func (r *Repository) MergeMetadata(ctx context.Context, orgID, id uuid.UUID, kv map[string]string) error {
	patch, err := json.Marshal(kv)
	if err != nil {
		return fmt.Errorf("reservations: encode metadata patch: %w", err)
	}
	query := `
		UPDATE reservations
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`
	ct, err := r.pool.Exec(ctx, query, id, orgID, patch)
	if err != nil {
		return fmt.Errorf("reservations: merge metadata: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// RemoveMetadataKey deletes one key from the metadata document.
func (r *Repository) RemoveMetadataKey(ctx context.Context, orgID, id uuid.UUID, key string) error {
	query := `
		UPDATE reservations
		SET metadata = COALESCE(metadata, '{}'::jsonb) - $3, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`
	if _, err := r.pool.Exec(ctx, query, id, orgID, key); err != nil {
		return fmt.Errorf("reservations: remove metadata key: %w", err)
	}
	return nil
}
