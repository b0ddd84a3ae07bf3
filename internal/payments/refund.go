package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/glidebook/glidebook/pkg/logging"
)

var gatewayTracer = otel.Tracer("glidebook/payments")

// RefundClient requests refunds from the payment gateway. It holds no
// entity locks while waiting and never mutates local state: the ledger only
// settles when the charge.refunded webhook arrives.
type RefundClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *logging.Logger
}

// RefundRequest contains the details for a refund.
type RefundRequest struct {
	ChargeID    string // gateway charge to refund
	AmountCents int64  // must be <= remaining captured amount
	Reason      string
	OrgID       string
}

// RefundResponse contains the gateway's acknowledgement.
type RefundResponse struct {
	RefundID  string
	Status    string // pending, succeeded, failed
	CreatedAt time.Time
}

// NewRefundClient creates a refund client with a bounded request timeout.
func NewRefundClient(baseURL, secretKey string, timeout time.Duration, logger *logging.Logger) *RefundClient {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RefundClient{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Refund asks the gateway to refund part or all of a charge.
func (c *RefundClient) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	ctx, span := gatewayTracer.Start(ctx, "gateway.refund")
	defer span.End()
	span.SetAttributes(
		attribute.String("glidebook.org_id", req.OrgID),
		attribute.String("gateway.charge_id", req.ChargeID),
		attribute.Int64("glidebook.amount_cents", req.AmountCents),
	)

	// Idempotency key keyed on charge+amount so a retried request cannot
	// double-refund.
	idempotencyKey := fmt.Sprintf("refund-%s-%d", req.ChargeID, req.AmountCents)

	body := map[string]any{
		"charge": req.ChargeID,
		"amount": req.AmountCents,
	}
	if req.Reason != "" {
		body["reason"] = req.Reason
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: refund marshal: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v1/refunds", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("payments: refund request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Op: "refund", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &GatewayError{Op: "refund", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("gateway refund rejected",
			"status", resp.StatusCode,
			"charge_id", req.ChargeID,
			"org_id", req.OrgID,
		)
		return nil, &GatewayError{Op: "refund", StatusCode: resp.StatusCode}
	}

	var parsed struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Created int64  `json:"created"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("payments: refund decode: %w", err)
	}

	return &RefundResponse{
		RefundID:  parsed.ID,
		Status:    parsed.Status,
		CreatedAt: time.Unix(parsed.Created, 0),
	}, nil
}
