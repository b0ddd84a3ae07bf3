package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/organizations"
	"github.com/glidebook/glidebook/internal/tenancy"
)

const orgHeader = "X-Org-Id"

// OrgChecker resolves an organization for tenant admission.
type OrgChecker interface {
	Get(ctx context.Context, id uuid.UUID) (*organizations.Organization, error)
}

// RequireOrg enforces multi-tenancy on API requests: the X-Org-Id header
// must name an existing, active organization. The resolved id is placed on
// the request context; repositories additionally scope every query by it.
func RequireOrg(orgs OrgChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(orgHeader))
			if raw == "" {
				http.Error(w, "missing X-Org-Id", http.StatusBadRequest)
				return
			}
			orgID, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid X-Org-Id", http.StatusBadRequest)
				return
			}

			if orgs != nil {
				org, err := orgs.Get(r.Context(), orgID)
				if err != nil {
					if errors.Is(err, organizations.ErrOrganizationNotFound) {
						http.Error(w, "unknown organization", http.StatusForbidden)
						return
					}
					http.Error(w, "server error", http.StatusInternalServerError)
					return
				}
				if !org.Active {
					http.Error(w, "organization suspended", http.StatusForbidden)
					return
				}
			}

			ctx := tenancy.WithOrgID(r.Context(), orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
