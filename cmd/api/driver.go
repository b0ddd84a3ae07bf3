package main

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/payments"
)

// lateDriver breaks the ledger/service construction cycle: the ledger is
// built first with this placeholder, then the reservation service is bound
// onto it.
type lateDriver struct {
	target payments.ReservationDriver
}

var errDriverUnbound = errors.New("reservation driver not bound")

func (d *lateDriver) bind(target payments.ReservationDriver) {
	d.target = target
}

func (d *lateDriver) MarkPaymentAuthorized(ctx context.Context, orgID, reservationID uuid.UUID) error {
	if d.target == nil {
		return errDriverUnbound
	}
	return d.target.MarkPaymentAuthorized(ctx, orgID, reservationID)
}

func (d *lateDriver) MarkCaptured(ctx context.Context, orgID, reservationID uuid.UUID, payment *payments.Payment) error {
	if d.target == nil {
		return errDriverUnbound
	}
	return d.target.MarkCaptured(ctx, orgID, reservationID, payment)
}

func (d *lateDriver) MarkPaymentFailed(ctx context.Context, orgID, reservationID uuid.UUID, canceled bool) error {
	if d.target == nil {
		return errDriverUnbound
	}
	return d.target.MarkPaymentFailed(ctx, orgID, reservationID, canceled)
}

func (d *lateDriver) MarkRefunded(ctx context.Context, orgID, reservationID uuid.UUID, payment *payments.Payment, partial bool) error {
	if d.target == nil {
		return errDriverUnbound
	}
	return d.target.MarkRefunded(ctx, orgID, reservationID, payment, partial)
}

func (d *lateDriver) StoreGatewayCorrelation(ctx context.Context, orgID, reservationID uuid.UUID, setupIntentID, paymentMethodID string) error {
	if d.target == nil {
		return errDriverUnbound
	}
	return d.target.StoreGatewayCorrelation(ctx, orgID, reservationID, setupIntentID, paymentMethodID)
}
