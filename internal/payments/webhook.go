package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/observability/metrics"
	"github.com/glidebook/glidebook/pkg/logging"
)

// ledgerReconciler is the slice of Ledger the webhook handler needs.
type ledgerReconciler interface {
	ByIntentID(ctx context.Context, intentID string) (*Payment, error)
	ByChargeID(ctx context.Context, chargeID string) (*Payment, error)
	RecordAttempt(ctx context.Context, orgID, reservationID uuid.UUID, typ string, amountCents int64, intentID string) (*Payment, error)
	ConfirmAuthorization(ctx context.Context, p *Payment) error
	ApplyCapture(ctx context.Context, p *Payment, succeeded bool, chargeID, failureReason string) error
	ApplyRefund(ctx context.Context, p *Payment, refundedCents int64) error
	ApplyCancellation(ctx context.Context, p *Payment) error
	Correlate(ctx context.Context, orgID, reservationID uuid.UUID, setupIntentID, paymentMethodID string) error
}

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

const webhookProvider = "gateway"

// WebhookHandler reconciles gateway webhook events against the payment
// ledger and the reservation state machine. Delivery is at-least-once and
// unordered; every effect is an idempotent merge, so redelivery and stale
// events are acknowledged without re-applying.
type WebhookHandler struct {
	webhookSecret string
	ledger        ledgerReconciler
	processed     processedTracker
	metrics       *metrics.WebhookMetrics
	logger        *logging.Logger
}

// NewWebhookHandler creates a handler for gateway webhooks.
func NewWebhookHandler(
	webhookSecret string,
	ledger ledgerReconciler,
	processed processedTracker,
	m *metrics.WebhookMetrics,
	logger *logging.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		webhookSecret: webhookSecret,
		ledger:        ledger,
		processed:     processed,
		metrics:       m,
		logger:        logger,
	}
}

// webhookEvent is the gateway event envelope.
type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object webhookObject `json:"object"`
	} `json:"data"`
}

// webhookObject is the union of object fields the reconciler reads across
// payment_intent, charge and setup_intent events.
type webhookObject struct {
	ID               string            `json:"id"`
	PaymentIntent    string            `json:"payment_intent"`
	LatestCharge     string            `json:"latest_charge"`
	PaymentMethod    string            `json:"payment_method"`
	Amount           int64             `json:"amount"`
	AmountRefunded   int64             `json:"amount_refunded"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// Handle processes one inbound gateway webhook delivery.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	// Signature is verified against the raw body before anything mutates.
	if !verifySignature(h.webhookSecret, payload, r.Header.Get("Gateway-Signature")) {
		h.logger.Warn("webhook signature rejected", "remote_ip", r.RemoteAddr)
		h.metrics.ObserveEvent("unknown", "signature_rejected")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	// A malformed body behind a valid signature is acknowledged: the
	// gateway would redeliver the same bytes forever.
	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode gateway event", "error", err)
		h.metrics.ObserveEvent("unknown", "malformed")
		h.respondReceived(w)
		return
	}
	if evt.ID == "" || evt.Type == "" {
		h.logger.Error("gateway event missing id or type")
		h.metrics.ObserveEvent("unknown", "malformed")
		h.respondReceived(w)
		return
	}

	if seen, err := h.processed.AlreadyProcessed(r.Context(), webhookProvider, evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err, "event_id", evt.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if seen {
		h.metrics.ObserveEvent(evt.Type, "replayed")
		h.respondReceived(w)
		return
	}

	outcome, err := h.apply(r.Context(), &evt)
	if err != nil {
		// Only transient failures earn a retry. A permanently
		// inapplicable event would 500 on every redelivery.
		if !permanentApplyError(err) {
			h.logger.Error("webhook apply failed", "error", err, "event_id", evt.ID, "event_type", evt.Type)
			h.metrics.ObserveEvent(evt.Type, "error")
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		h.logger.Warn("webhook event not applicable", "error", err, "event_id", evt.ID, "event_type", evt.Type)
		outcome = "rejected"
	}

	if _, err := h.processed.MarkProcessed(r.Context(), webhookProvider, evt.ID); err != nil {
		// Dedupe is a fast path; the merges themselves tolerate replay.
		h.logger.Error("failed to record processed event", "error", err, "event_id", evt.ID)
	}

	h.metrics.ObserveEvent(evt.Type, outcome)
	h.metrics.ObserveLatency(evt.Type, time.Since(start).Seconds())
	h.respondReceived(w)
}

// apply routes one verified event to its ledger effect. An unmatched or
// malformed-but-authentic event returns a non-error outcome: acknowledging
// it is deliberate, redelivery cannot fix it and a reconciliation report is
// the recovery path.
func (h *WebhookHandler) apply(ctx context.Context, evt *webhookEvent) (string, error) {
	obj := &evt.Data.Object

	switch evt.Type {
	case "payment_intent.requires_capture":
		return h.applyAuthorization(ctx, obj)

	case "payment_intent.succeeded":
		p, err := h.ledger.ByIntentID(ctx, obj.ID)
		if err != nil {
			return h.unmatched(evt, err)
		}
		if err := h.ledger.ApplyCapture(ctx, p, true, obj.LatestCharge, ""); err != nil {
			return "", err
		}
		return "applied", nil

	case "payment_intent.payment_failed":
		p, err := h.ledger.ByIntentID(ctx, obj.ID)
		if err != nil {
			return h.unmatched(evt, err)
		}
		reason := "payment failed"
		if obj.LastPaymentError != nil && obj.LastPaymentError.Message != "" {
			reason = obj.LastPaymentError.Message
		}
		if err := h.ledger.ApplyCapture(ctx, p, false, "", reason); err != nil {
			return "", err
		}
		return "applied", nil

	case "payment_intent.canceled":
		p, err := h.ledger.ByIntentID(ctx, obj.ID)
		if err != nil {
			return h.unmatched(evt, err)
		}
		if err := h.ledger.ApplyCancellation(ctx, p); err != nil {
			var invalid *InvalidLedgerStateError
			if errors.As(err, &invalid) {
				// Stale cancel after capture: the refund flow owns it now.
				h.logger.Warn("stale cancel ignored", "event_id", evt.ID, "status", invalid.Status)
				return "ignored", nil
			}
			return "", err
		}
		return "applied", nil

	case "charge.refunded":
		p, err := h.ledger.ByChargeID(ctx, obj.ID)
		if err != nil && obj.PaymentIntent != "" {
			p, err = h.ledger.ByIntentID(ctx, obj.PaymentIntent)
		}
		if err != nil {
			return h.unmatched(evt, err)
		}
		if err := h.ledger.ApplyRefund(ctx, p, obj.AmountRefunded); err != nil {
			return "", err
		}
		return "applied", nil

	case "setup_intent.succeeded":
		orgID, reservationID, ok := parseCorrelation(obj.Metadata)
		if !ok {
			h.logger.Warn("setup intent missing correlation metadata", "event_id", evt.ID)
			return "unmatched", nil
		}
		if err := h.ledger.Correlate(ctx, orgID, reservationID, obj.ID, obj.PaymentMethod); err != nil {
			return "", err
		}
		return "applied", nil

	default:
		return "ignored", nil
	}
}

// applyAuthorization records or confirms the authorization hold. If the
// booking flow has not recorded the attempt yet, the event's correlation
// metadata is enough to create it.
func (h *WebhookHandler) applyAuthorization(ctx context.Context, obj *webhookObject) (string, error) {
	p, err := h.ledger.ByIntentID(ctx, obj.ID)
	if errors.Is(err, ErrPaymentNotFound) {
		orgID, reservationID, ok := parseCorrelation(obj.Metadata)
		if !ok {
			h.logger.Warn("authorization for unknown intent without metadata", "intent_id", obj.ID)
			return "unmatched", nil
		}
		p, err = h.ledger.RecordAttempt(ctx, orgID, reservationID, TypeAuthorization, obj.Amount, obj.ID)
	}
	if err != nil {
		return "", err
	}
	if err := h.ledger.ConfirmAuthorization(ctx, p); err != nil {
		return "", err
	}
	return "applied", nil
}

// unmatched acknowledges events for entities this platform never created.
// They are logged, not retried: redelivering them cannot help.
func (h *WebhookHandler) unmatched(evt *webhookEvent, cause error) (string, error) {
	if !errors.Is(cause, ErrPaymentNotFound) {
		return "", cause
	}
	h.logger.Warn("webhook event unmatched",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"object_id", evt.Data.Object.ID,
	)
	return "unmatched", nil
}

// permanentApplyError reports errors no redelivery can resolve: the
// payment's terminal status forbids the effect, or the event's amounts are
// inconsistent with the ledger row.
func permanentApplyError(err error) bool {
	var invalid *InvalidLedgerStateError
	return errors.As(err, &invalid) || errors.Is(err, ErrRefundExceedsAmount)
}

func (h *WebhookHandler) respondReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

func parseCorrelation(metadata map[string]string) (uuid.UUID, uuid.UUID, bool) {
	orgID, err := uuid.Parse(metadata["org_id"])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	reservationID, err := uuid.Parse(metadata["reservation_uuid"])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, reservationID, true
}

// verifySignature checks the HMAC-SHA256 signature bound to the raw body.
// Header format: t=<unix timestamp>,v1=<hex signature>[,v1=<rotated key>]
func verifySignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true // bypass for development
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	// Timestamp tolerance guards against replayed captures (5 minutes).
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
