package tenancy

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const orgKey ctxKey = "glidebook.org_id"

// WithOrgID stores the organization id in context.
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, orgKey, orgID)
}

// OrgIDFromContext extracts the organization id if present.
func OrgIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(orgKey)
	if val == nil {
		return uuid.Nil, false
	}
	orgID, ok := val.(uuid.UUID)
	return orgID, ok && orgID != uuid.Nil
}
