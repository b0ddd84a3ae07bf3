package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/organizations"
	"github.com/glidebook/glidebook/internal/tenancy"
)

type stubOrgChecker struct {
	orgs map[uuid.UUID]*organizations.Organization
}

func (s *stubOrgChecker) Get(_ context.Context, id uuid.UUID) (*organizations.Organization, error) {
	o, ok := s.orgs[id]
	if !ok {
		return nil, organizations.ErrOrganizationNotFound
	}
	return o, nil
}

func TestRequireOrg(t *testing.T) {
	activeID := uuid.New()
	suspendedID := uuid.New()
	checker := &stubOrgChecker{orgs: map[uuid.UUID]*organizations.Organization{
		activeID:    {ID: activeID, Name: "Thermal Ridge", Active: true},
		suspendedID: {ID: suspendedID, Name: "Defunct Divers", Active: false},
	}}

	var gotOrg uuid.UUID
	handler := RequireOrg(checker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg, _ = tenancy.OrgIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusBadRequest},
		{"malformed id", "not-a-uuid", http.StatusBadRequest},
		{"unknown org", uuid.NewString(), http.StatusForbidden},
		{"suspended org", suspendedID.String(), http.StatusForbidden},
		{"active org", activeID.String(), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
			if tc.header != "" {
				req.Header.Set("X-Org-Id", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}

	if gotOrg != activeID {
		t.Fatalf("expected org id on context, got %s", gotOrg)
	}
}
