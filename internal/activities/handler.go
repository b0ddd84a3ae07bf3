package activities

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/tenancy"
	"github.com/glidebook/glidebook/pkg/logging"
)

// Handler handles HTTP requests for activities
type Handler struct {
	repo     *Repository
	registry *Registry
	logger   *logging.Logger
}

// NewHandler creates a new activities handler
func NewHandler(repo *Repository, registry *Registry, logger *logging.Logger) *Handler {
	return &Handler{
		repo:     repo,
		registry: registry,
		logger:   logger,
	}
}

// Routes returns the org-scoped activity routes.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{activityID}", h.Get)
	return r
}

type createActivityRequest struct {
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config"`
	Stages []string        `json:"stages,omitempty"`
}

// Create handles POST /activities requests
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	var req createActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := h.registry.Resolve(req.Kind); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	activity, err := h.repo.Create(r.Context(), &Activity{
		OrgID:     orgID,
		Name:      req.Name,
		Kind:      req.Kind,
		RawConfig: req.Config,
		Stages:    req.Stages,
	})
	if err != nil {
		h.logger.Error("failed to create activity", "error", err, "kind", req.Kind)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("activity created", "id", activity.ID, "kind", activity.Kind, "org_id", orgID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(activity)
}

// Get handles GET /activities/{activityID} requests
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "activityID"))
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}

	activity, err := h.repo.GetForOrg(r.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, ErrActivityNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get activity", "error", err)
		http.Error(w, "failed to get activity", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(activity)
}

// ListActivitiesResponse is the response for listing activities
type ListActivitiesResponse struct {
	Activities []Activity `json:"activities"`
	Count      int        `json:"count"`
}

// List handles GET /activities requests
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	activities, err := h.repo.ListForOrg(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to list activities", "error", err, "org_id", orgID)
		http.Error(w, "failed to list activities", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListActivitiesResponse{Activities: activities, Count: len(activities)})
}
