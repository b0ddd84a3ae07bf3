package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func paymentRows(id, orgID, resID uuid.UUID, intentID, chargeID, status string, amount, refunded int64) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{
		"id", "org_id", "reservation_id", "intent_id", "charge_id", "type",
		"amount_cents", "refunded_cents", "status", "failure_reason", "created_at", "updated_at",
	}).AddRow(id, orgID, resID, intentID, chargeID, TypeAuthorization, amount, refunded, status, "", now, now)
}

func TestInsertAttemptConflictReturnsExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithQuerier(mock)
	orgID := uuid.New()
	resID := uuid.New()
	existingID := uuid.New()

	// ON CONFLICT DO NOTHING returns no rows for a duplicate.
	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(pgxmock.AnyArg(), orgID, resID, "pi_dup", TypeAuthorization, int64(15000), StatusRequiresCapture).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT").
		WithArgs("pi_dup").
		WillReturnRows(paymentRows(existingID, orgID, resID, "pi_dup", "", StatusRequiresCapture, 15000, 0))

	p, created, err := repo.InsertAttempt(context.Background(), &Payment{
		OrgID:         orgID,
		ReservationID: resID,
		IntentID:      "pi_dup",
		Type:          TypeAuthorization,
		AmountCents:   15000,
		Status:        StatusRequiresCapture,
	})
	if err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	if created {
		t.Fatal("duplicate must report created=false")
	}
	if p.ID != existingID {
		t.Fatalf("expected existing row, got %s", p.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByIntentIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithQuerier(mock)
	mock.ExpectQuery("SELECT").WithArgs("pi_ghost").WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = repo.GetByIntentID(context.Background(), "pi_ghost")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestMarkSucceededGuard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithQuerier(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE payments").
		WithArgs(id, "ch_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	applied, err := repo.MarkSucceeded(context.Background(), id, "ch_1")
	if err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if !applied {
		t.Fatal("expected first application to apply")
	}

	// Replay: the guard no longer matches.
	mock.ExpectExec("UPDATE payments").
		WithArgs(id, "ch_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	applied, err = repo.MarkSucceeded(context.Background(), id, "ch_1")
	if err != nil {
		t.Fatalf("replayed mark succeeded: %v", err)
	}
	if applied {
		t.Fatal("replay must not report applied")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkTerminalRejectsNonTerminal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithQuerier(mock)
	if _, err := repo.MarkTerminal(context.Background(), uuid.New(), StatusSucceeded, ""); err == nil {
		t.Fatal("expected rejection of non-terminal status")
	}
}

func TestSetRefundedCentsGuard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithQuerier(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE payments").
		WithArgs(id, int64(5000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	applied, err := repo.SetRefundedCents(context.Background(), id, 5000)
	if err != nil {
		t.Fatalf("set refunded: %v", err)
	}
	if !applied {
		t.Fatal("expected refund raise to apply")
	}

	// Stale lower amount misses the monotone guard.
	mock.ExpectExec("UPDATE payments").
		WithArgs(id, int64(3000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	applied, err = repo.SetRefundedCents(context.Background(), id, 3000)
	if err != nil {
		t.Fatalf("stale set refunded: %v", err)
	}
	if applied {
		t.Fatal("stale amount must not apply")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
