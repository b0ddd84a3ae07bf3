package payments

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFullyRefunded(t *testing.T) {
	tests := []struct {
		name string
		p    Payment
		want bool
	}{
		{"untouched", Payment{AmountCents: 15000}, false},
		{"partial", Payment{AmountCents: 15000, RefundedCents: 5000}, false},
		{"full", Payment{AmountCents: 15000, RefundedCents: 15000}, true},
		{"zero amount never counts", Payment{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.FullyRefunded(); got != tt.want {
				t.Fatalf("FullyRefunded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvalidLedgerStateErrorMessage(t *testing.T) {
	err := &InvalidLedgerStateError{Op: "capture", Status: StatusCanceled}
	if !strings.Contains(err.Error(), "capture") || !strings.Contains(err.Error(), StatusCanceled) {
		t.Fatalf("error should name the op and the status: %q", err.Error())
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &GatewayError{Op: "refund", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}

	wrapped := fmt.Errorf("worker: %w", &GatewayError{Op: "refund", StatusCode: 503})
	var gatewayErr *GatewayError
	if !errors.As(wrapped, &gatewayErr) || gatewayErr.StatusCode != 503 {
		t.Fatalf("expected GatewayError with status 503, got %v", wrapped)
	}
}
