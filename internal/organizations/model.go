package organizations

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrOrganizationNotFound is returned when no organization matches.
var ErrOrganizationNotFound = errors.New("organizations: not found")

// Organization is a tenant. Every reservation, activity and payment row is
// scoped to exactly one organization.
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BillingEmail string    `json:"billing_email"`
	Active       bool      `json:"active"`

	// Gateway onboarding state. ExternalAccountID is the payment gateway's
	// account id for this tenant; empty until the org is linked.
	ExternalAccountID    string `json:"external_account_id,omitempty"`
	GatewayAccountStatus string `json:"gateway_account_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gateway account statuses.
const (
	GatewayAccountNone    = "none"
	GatewayAccountPending = "pending"
	GatewayAccountActive  = "active"
)
