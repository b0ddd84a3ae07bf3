package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/events"
	"github.com/glidebook/glidebook/internal/payments"
)

var _ payments.ReservationDriver = (*Service)(nil)

// The methods below are called by the payment ledger as gateway events land.
// Webhooks arrive at least once and out of order, so every write here is a
// guarded merge: a replay or a stale delivery is a no-op, never a regression.

// MarkPaymentAuthorized records a successful authorization hold.
func (s *Service) MarkPaymentAuthorized(ctx context.Context, orgID, reservationID uuid.UUID) error {
	applied, err := s.repo.TransitionStatus(ctx, orgID, reservationID, StatusAuthorized, statusSources[StatusAuthorized])
	if err != nil {
		return err
	}
	if applied {
		s.metrics.ObserveTransition(StatusPending, StatusAuthorized)
	}
	if _, err := s.repo.SetPaymentStatus(ctx, orgID, reservationID, PaymentAuthorized, paymentStatusSources[PaymentAuthorized]); err != nil {
		return err
	}
	return nil
}

// MarkCaptured records a settled capture. A capture without a preceding
// authorization event still advances the reservation: the gateway confirmed
// the hold implicitly.
func (s *Service) MarkCaptured(ctx context.Context, orgID, reservationID uuid.UUID, payment *payments.Payment) error {
	if applied, err := s.repo.TransitionStatus(ctx, orgID, reservationID, StatusAuthorized, statusSources[StatusAuthorized]); err != nil {
		return err
	} else if applied {
		s.metrics.ObserveTransition(StatusPending, StatusAuthorized)
	}

	applied, err := s.repo.SetPaymentStatus(ctx, orgID, reservationID, PaymentCaptured, paymentStatusSources[PaymentCaptured])
	if err != nil {
		return err
	}
	if !applied {
		// Already captured or further along: replayed capture event.
		return nil
	}

	res, err := s.repo.GetForOrg(ctx, orgID, reservationID)
	if err != nil {
		return err
	}
	return s.emit(ctx, orgID, events.TypePaymentCaptured, events.PaymentCapturedV1{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Reservation: snapshot(res),
		Payment:     paymentSnapshot(payment),
	})
}

// MarkPaymentFailed records a declined capture or a voided authorization.
func (s *Service) MarkPaymentFailed(ctx context.Context, orgID, reservationID uuid.UUID, canceled bool) error {
	if _, err := s.repo.SetPaymentStatus(ctx, orgID, reservationID, PaymentFailed, paymentStatusSources[PaymentFailed]); err != nil {
		return err
	}
	res, err := s.repo.GetForOrg(ctx, orgID, reservationID)
	if err != nil {
		return err
	}
	if res.Status == StatusCancelled {
		// A void after an explicit cancellation is the expected echo.
		return nil
	}
	applied, err := s.repo.TransitionStatus(ctx, orgID, reservationID, StatusFailed, statusSources[StatusFailed])
	if err != nil {
		return err
	}
	if applied {
		s.metrics.ObserveTransition(res.Status, StatusFailed)
	}
	return nil
}

// MarkRefunded settles a refund against the reservation. A full refund on a
// cancelled reservation also clears the refund-pending marker.
func (s *Service) MarkRefunded(ctx context.Context, orgID, reservationID uuid.UUID, payment *payments.Payment, partial bool) error {
	target := PaymentRefunded
	if partial {
		target = PaymentPartiallyRefunded
	}
	if _, err := s.repo.SetPaymentStatus(ctx, orgID, reservationID, target, paymentStatusSources[target]); err != nil {
		return err
	}
	if !partial {
		if err := s.repo.RemoveMetadataKey(ctx, orgID, reservationID, MetaRefundPending); err != nil {
			return err
		}
	}
	return nil
}

// StoreGatewayCorrelation persists gateway identifiers learned from a
// setup-intent event, for later off-session charging.
func (s *Service) StoreGatewayCorrelation(ctx context.Context, orgID, reservationID uuid.UUID, setupIntentID, paymentMethodID string) error {
	kv := map[string]string{}
	if setupIntentID != "" {
		kv[MetaSetupIntentID] = setupIntentID
	}
	if paymentMethodID != "" {
		kv[MetaPaymentMethodID] = paymentMethodID
	}
	if len(kv) == 0 {
		return nil
	}
	return s.repo.MergeMetadata(ctx, orgID, reservationID, kv)
}
