package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glidebook/glidebook/pkg/logging"
)

func TestRefundClient(t *testing.T) {
	var gotAuth, gotIdempotency string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/refunds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotIdempotency = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "re_1",
			"status":  "pending",
			"created": time.Now().Unix(),
		})
	}))
	defer srv.Close()

	client := NewRefundClient(srv.URL, "sk_test", 5*time.Second, logging.New("error"))
	resp, err := client.Refund(context.Background(), RefundRequest{
		ChargeID:    "ch_1",
		AmountCents: 7500,
		Reason:      "weather",
		OrgID:       "org-1",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	if resp.RefundID != "re_1" || resp.Status != "pending" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotIdempotency != "refund-ch_1-7500" {
		t.Fatalf("unexpected idempotency key %q", gotIdempotency)
	}
	if gotBody["charge"] != "ch_1" || gotBody["amount"] != float64(7500) || gotBody["reason"] != "weather" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestRefundClientGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"charge_already_refunded"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewRefundClient(srv.URL, "sk_test", 5*time.Second, logging.New("error"))
	_, err := client.Refund(context.Background(), RefundRequest{ChargeID: "ch_1", AmountCents: 100})

	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gatewayErr.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", gatewayErr.StatusCode)
	}
}
