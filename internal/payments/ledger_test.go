package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/pkg/logging"
)

// fakeLedgerStore mirrors the repository's guard semantics in memory.
type fakeLedgerStore struct {
	rows map[uuid.UUID]*Payment
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{rows: make(map[uuid.UUID]*Payment)}
}

func (s *fakeLedgerStore) InsertAttempt(_ context.Context, p *Payment) (*Payment, bool, error) {
	for _, row := range s.rows {
		if row.OrgID == p.OrgID && row.IntentID == p.IntentID {
			cp := *row
			return &cp, false, nil
		}
	}
	cp := *p
	cp.ID = uuid.New()
	s.rows[cp.ID] = &cp
	out := cp
	return &out, true, nil
}

func (s *fakeLedgerStore) GetByIntentID(_ context.Context, intentID string) (*Payment, error) {
	for _, row := range s.rows {
		if row.IntentID == intentID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *fakeLedgerStore) GetByChargeID(_ context.Context, chargeID string) (*Payment, error) {
	for _, row := range s.rows {
		if row.ChargeID == chargeID && chargeID != "" {
			cp := *row
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *fakeLedgerStore) GetCapturedForReservation(_ context.Context, orgID, reservationID uuid.UUID) (*Payment, error) {
	for _, row := range s.rows {
		if row.OrgID == orgID && row.ReservationID == reservationID && row.Status == StatusSucceeded {
			cp := *row
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *fakeLedgerStore) MarkSucceeded(_ context.Context, id uuid.UUID, chargeID string) (bool, error) {
	row, ok := s.rows[id]
	if !ok || row.Status != StatusRequiresCapture {
		return false, nil
	}
	row.Status = StatusSucceeded
	if chargeID != "" {
		row.ChargeID = chargeID
	}
	return true, nil
}

func (s *fakeLedgerStore) MarkTerminal(_ context.Context, id uuid.UUID, status, failureReason string) (bool, error) {
	row, ok := s.rows[id]
	if !ok || row.Status != StatusRequiresCapture {
		return false, nil
	}
	row.Status = status
	row.FailureReason = failureReason
	return true, nil
}

func (s *fakeLedgerStore) SetRefundedCents(_ context.Context, id uuid.UUID, refundedCents int64) (bool, error) {
	row, ok := s.rows[id]
	if !ok || row.RefundedCents >= refundedCents || refundedCents > row.AmountCents {
		return false, nil
	}
	row.RefundedCents = refundedCents
	return true, nil
}

// fakeDriver records how the ledger drove the reservation side.
type fakeDriver struct {
	authorized  int
	captured    int
	failed      int
	canceled    int
	refunded    []bool // partial flags in call order
	correlated  int
	lastPayment *Payment
}

func (d *fakeDriver) MarkPaymentAuthorized(context.Context, uuid.UUID, uuid.UUID) error {
	d.authorized++
	return nil
}

func (d *fakeDriver) MarkCaptured(_ context.Context, _, _ uuid.UUID, p *Payment) error {
	d.captured++
	d.lastPayment = p
	return nil
}

func (d *fakeDriver) MarkPaymentFailed(_ context.Context, _, _ uuid.UUID, canceled bool) error {
	if canceled {
		d.canceled++
	} else {
		d.failed++
	}
	return nil
}

func (d *fakeDriver) MarkRefunded(_ context.Context, _, _ uuid.UUID, p *Payment, partial bool) error {
	d.refunded = append(d.refunded, partial)
	d.lastPayment = p
	return nil
}

func (d *fakeDriver) StoreGatewayCorrelation(context.Context, uuid.UUID, uuid.UUID, string, string) error {
	d.correlated++
	return nil
}

func newTestLedger() (*Ledger, *fakeLedgerStore, *fakeDriver) {
	store := newFakeLedgerStore()
	driver := &fakeDriver{}
	return NewLedger(store, driver, logging.New("error")), store, driver
}

func recordAttempt(t *testing.T, l *Ledger, intentID string, amount int64) *Payment {
	t.Helper()
	p, err := l.RecordAttempt(context.Background(), uuid.New(), uuid.New(), TypeAuthorization, amount, intentID)
	if err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	return p
}

func TestRecordAttemptIdempotent(t *testing.T) {
	l, store, _ := newTestLedger()
	orgID := uuid.New()
	resID := uuid.New()

	first, err := l.RecordAttempt(context.Background(), orgID, resID, TypeCapture, 10000, "pi_dup")
	if err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	second, err := l.RecordAttempt(context.Background(), orgID, resID, TypeCapture, 10000, "pi_dup")
	if err != nil {
		t.Fatalf("replayed record attempt: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same row, got %s and %s", first.ID, second.ID)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(store.rows))
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	l, _, _ := newTestLedger()
	ctx := context.Background()

	if _, err := l.RecordAttempt(ctx, uuid.New(), uuid.New(), TypeCapture, 10000, ""); err == nil {
		t.Fatal("expected missing intent id rejection")
	}
	if _, err := l.RecordAttempt(ctx, uuid.New(), uuid.New(), TypeCapture, 0, "pi_zero"); err == nil {
		t.Fatal("expected zero amount rejection")
	}
	if _, err := l.RecordAttempt(ctx, uuid.New(), uuid.New(), "chargeback", 10000, "pi_bad"); err == nil {
		t.Fatal("expected unknown type rejection")
	}
}

func TestConfirmAuthorization(t *testing.T) {
	l, _, driver := newTestLedger()
	p := recordAttempt(t, l, "pi_auth", 10000)

	if err := l.ConfirmAuthorization(context.Background(), p); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if driver.authorized != 1 {
		t.Fatalf("expected one authorization drive, got %d", driver.authorized)
	}

	// A stale requires_capture after the capture already settled.
	p.Status = StatusSucceeded
	if err := l.ConfirmAuthorization(context.Background(), p); err != nil {
		t.Fatalf("stale confirm: %v", err)
	}
	if driver.authorized != 1 {
		t.Fatal("stale authorization must not drive again")
	}
}

func TestApplyCapture(t *testing.T) {
	l, store, driver := newTestLedger()
	p := recordAttempt(t, l, "pi_cap", 10000)

	if err := l.ApplyCapture(context.Background(), p, true, "ch_1", ""); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if store.rows[p.ID].Status != StatusSucceeded || store.rows[p.ID].ChargeID != "ch_1" {
		t.Fatalf("unexpected row: %+v", store.rows[p.ID])
	}
	if driver.captured != 1 || driver.lastPayment.ChargeID != "ch_1" {
		t.Fatalf("expected capture drive with charge id, got %d %+v", driver.captured, driver.lastPayment)
	}

	// Redelivery with the row already settled re-drives the guarded merge.
	settled, _ := store.GetByIntentID(context.Background(), "pi_cap")
	if err := l.ApplyCapture(context.Background(), settled, true, "ch_1", ""); err != nil {
		t.Fatalf("replayed capture: %v", err)
	}
}

func TestApplyCaptureAfterCancelRejected(t *testing.T) {
	l, store, _ := newTestLedger()
	p := recordAttempt(t, l, "pi_late", 10000)

	if err := l.ApplyCancellation(context.Background(), p); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	canceled, _ := store.GetByIntentID(context.Background(), "pi_late")

	err := l.ApplyCapture(context.Background(), canceled, true, "ch_x", "")
	var invalid *InvalidLedgerStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid ledger state, got %v", err)
	}
	if store.rows[p.ID].Status != StatusCanceled {
		t.Fatalf("canceled row must not move, got %s", store.rows[p.ID].Status)
	}
}

func TestApplyCaptureFailure(t *testing.T) {
	l, store, driver := newTestLedger()
	p := recordAttempt(t, l, "pi_declined", 10000)

	if err := l.ApplyCapture(context.Background(), p, false, "", "card_declined"); err != nil {
		t.Fatalf("failed capture: %v", err)
	}
	row := store.rows[p.ID]
	if row.Status != StatusFailed || row.FailureReason != "card_declined" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if driver.failed != 1 {
		t.Fatalf("expected one failure drive, got %d", driver.failed)
	}

	// Replay: guard misses, no second drive.
	failed, _ := store.GetByIntentID(context.Background(), "pi_declined")
	if err := l.ApplyCapture(context.Background(), failed, false, "", "card_declined"); err != nil {
		t.Fatalf("replayed failure: %v", err)
	}
	if driver.failed != 1 {
		t.Fatalf("replay must not drive again, got %d", driver.failed)
	}
}

func TestApplyRefundMonotone(t *testing.T) {
	l, store, driver := newTestLedger()
	p := recordAttempt(t, l, "pi_refund", 10000)
	if err := l.ApplyCapture(context.Background(), p, true, "ch_r", ""); err != nil {
		t.Fatalf("capture: %v", err)
	}

	current, _ := store.GetByIntentID(context.Background(), "pi_refund")
	if err := l.ApplyRefund(context.Background(), current, 5000); err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if store.rows[p.ID].RefundedCents != 5000 {
		t.Fatalf("expected 5000 refunded, got %d", store.rows[p.ID].RefundedCents)
	}
	if len(driver.refunded) != 1 || !driver.refunded[0] {
		t.Fatalf("expected one partial refund drive, got %v", driver.refunded)
	}

	// Stale event with a lower cumulative amount.
	current, _ = store.GetByIntentID(context.Background(), "pi_refund")
	if err := l.ApplyRefund(context.Background(), current, 3000); err != nil {
		t.Fatalf("stale refund: %v", err)
	}
	if store.rows[p.ID].RefundedCents != 5000 {
		t.Fatalf("stale refund must not lower the total, got %d", store.rows[p.ID].RefundedCents)
	}
	if len(driver.refunded) != 1 {
		t.Fatal("stale refund must not drive again")
	}

	// Full refund.
	current, _ = store.GetByIntentID(context.Background(), "pi_refund")
	if err := l.ApplyRefund(context.Background(), current, 10000); err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if len(driver.refunded) != 2 || driver.refunded[1] {
		t.Fatalf("expected a final full refund drive, got %v", driver.refunded)
	}
	if !store.rows[p.ID].FullyRefunded() {
		t.Fatal("expected fully refunded")
	}
}

func TestApplyRefundExceedsAmount(t *testing.T) {
	l, _, _ := newTestLedger()
	p := recordAttempt(t, l, "pi_over", 10000)
	if err := l.ApplyCapture(context.Background(), p, true, "ch_o", ""); err != nil {
		t.Fatalf("capture: %v", err)
	}
	p.Status = StatusSucceeded

	err := l.ApplyRefund(context.Background(), p, 10001)
	if !errors.Is(err, ErrRefundExceedsAmount) {
		t.Fatalf("expected ErrRefundExceedsAmount, got %v", err)
	}
}

func TestApplyCancellation(t *testing.T) {
	l, store, driver := newTestLedger()
	p := recordAttempt(t, l, "pi_void", 10000)

	if err := l.ApplyCancellation(context.Background(), p); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if store.rows[p.ID].Status != StatusCanceled {
		t.Fatalf("expected canceled, got %s", store.rows[p.ID].Status)
	}
	if driver.canceled != 1 {
		t.Fatalf("expected one void drive, got %d", driver.canceled)
	}

	// Replay is a no-op.
	canceled, _ := store.GetByIntentID(context.Background(), "pi_void")
	if err := l.ApplyCancellation(context.Background(), canceled); err != nil {
		t.Fatalf("replayed cancel: %v", err)
	}
	if driver.canceled != 1 {
		t.Fatal("replayed cancel must not drive again")
	}
}

func TestApplyCancellationAfterCapture(t *testing.T) {
	l, store, _ := newTestLedger()
	p := recordAttempt(t, l, "pi_stale_void", 10000)
	if err := l.ApplyCapture(context.Background(), p, true, "ch_s", ""); err != nil {
		t.Fatalf("capture: %v", err)
	}

	captured, _ := store.GetByIntentID(context.Background(), "pi_stale_void")
	err := l.ApplyCancellation(context.Background(), captured)
	var invalid *InvalidLedgerStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid ledger state, got %v", err)
	}
}
