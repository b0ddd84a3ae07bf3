package compensation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/payments"
	"github.com/glidebook/glidebook/pkg/logging"
)

// RefundJob is a compensating refund request for a cancelled reservation
// whose payment was already captured.
type RefundJob struct {
	OrgID         uuid.UUID
	ReservationID uuid.UUID
	ChargeID      string
	AmountCents   int64
	Reason        string
	attempts      int
}

// Queue is a bounded channel between the state machine and the refund
// worker, so cancellation never blocks on the gateway.
type Queue struct {
	jobs   chan RefundJob
	logger *logging.Logger
}

// NewQueue creates a bounded refund queue.
func NewQueue(size int, logger *logging.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{
		jobs:   make(chan RefundJob, size),
		logger: logger,
	}
}

// Enqueue offers a job without blocking. A full queue returns false; the
// reservation keeps its refund-pending marker and the reconciliation
// report picks it up.
func (q *Queue) Enqueue(job RefundJob) bool {
	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.Error("refund queue full, job dropped",
			"reservation_id", job.ReservationID,
			"org_id", job.OrgID,
		)
		return false
	}
}

// refunder is the slice of the gateway client the worker needs.
type refunder interface {
	Refund(ctx context.Context, req payments.RefundRequest) (*payments.RefundResponse, error)
}

// Worker executes refund jobs against the gateway. The ledger is not
// touched here: settlement happens when the charge.refunded webhook
// arrives, keeping exactly-once effect with the reconciler.
type Worker struct {
	queue       *Queue
	client      refunder
	logger      *logging.Logger
	maxAttempts int
	retryDelay  time.Duration
}

// NewWorker creates a refund worker.
func NewWorker(queue *Queue, client refunder, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:       queue,
		client:      client,
		logger:      logger,
		maxAttempts: 3,
		retryDelay:  5 * time.Second,
	}
}

// WithRetry overrides the retry policy.
func (w *Worker) WithRetry(maxAttempts int, delay time.Duration) *Worker {
	if maxAttempts > 0 {
		w.maxAttempts = maxAttempts
	}
	if delay > 0 {
		w.retryDelay = delay
	}
	return w
}

// Start consumes jobs until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue.jobs:
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job RefundJob) {
	resp, err := w.client.Refund(ctx, payments.RefundRequest{
		ChargeID:    job.ChargeID,
		AmountCents: job.AmountCents,
		Reason:      job.Reason,
		OrgID:       job.OrgID.String(),
	})
	if err == nil {
		w.logger.Info("compensating refund requested",
			"reservation_id", job.ReservationID,
			"org_id", job.OrgID,
			"refund_id", resp.RefundID,
			"status", resp.Status,
		)
		return
	}

	job.attempts++
	if job.attempts >= w.maxAttempts {
		w.logger.Error("refund abandoned after retries",
			"error", err,
			"reservation_id", job.ReservationID,
			"attempts", job.attempts,
		)
		return
	}

	w.logger.Warn("refund attempt failed, retrying",
		"error", err,
		"reservation_id", job.ReservationID,
		"attempt", job.attempts,
	)
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
		w.queue.Enqueue(job)
	}
}
