package reservations

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/activities"
	"github.com/glidebook/glidebook/internal/tenancy"
	"github.com/glidebook/glidebook/pkg/logging"
)

// Handler handles HTTP requests for reservations
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new reservations handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type createRequestBody struct {
	ActivityID         string            `json:"activity_id"`
	CustomerName       string            `json:"customer_name"`
	CustomerEmail      string            `json:"customer_email"`
	CustomerAge        int               `json:"customer_age"`
	CustomerWeightKg   int               `json:"customer_weight_kg"`
	CustomerHeightCm   int               `json:"customer_height_cm"`
	CertificationLevel string            `json:"certification_level,omitempty"`
	Participants       int               `json:"participants"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	PaymentType        string            `json:"payment_type,omitempty"`
	PaymentMethodID    string            `json:"payment_method_id,omitempty"`
	IntentID           string            `json:"intent_id"`
	AmountCents        int64             `json:"amount_cents"`
}

// Create handles POST /reservations requests
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	activityID, err := uuid.Parse(body.ActivityID)
	if err != nil {
		http.Error(w, "invalid activity_id", http.StatusBadRequest)
		return
	}

	res, err := h.service.Create(r.Context(), &CreateRequest{
		OrgID:              orgID,
		ActivityID:         activityID,
		CustomerName:       body.CustomerName,
		CustomerEmail:      body.CustomerEmail,
		CustomerAge:        body.CustomerAge,
		CustomerWeightKg:   body.CustomerWeightKg,
		CustomerHeightCm:   body.CustomerHeightCm,
		CertificationLevel: body.CertificationLevel,
		Participants:       body.Participants,
		Metadata:           body.Metadata,
		PaymentType:        body.PaymentType,
		PaymentMethodID:    body.PaymentMethodID,
		IntentID:           body.IntentID,
		AmountCents:        body.AmountCents,
	})
	if err != nil {
		h.respondError(w, err, "failed to create reservation")
		return
	}

	h.logger.Info("reservation created", "id", res.ID, "kind", res.ActivityKind, "org_id", orgID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
}

// Get handles GET /reservations/{reservationID} requests
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	res, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		h.respondError(w, err, "failed to get reservation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

type scheduleRequestBody struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Resources   []string  `json:"resources,omitempty"`
}

// Schedule handles POST /reservations/{reservationID}/schedule requests
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	var body scheduleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.Schedule(r.Context(), &ScheduleRequest{
		OrgID:         orgID,
		ReservationID: id,
		ScheduledAt:   body.ScheduledAt,
		Resources:     body.Resources,
	})
	if err != nil {
		h.respondError(w, err, "failed to schedule reservation")
		return
	}

	h.logger.Info("reservation scheduled", "id", res.ID, "scheduled_at", body.ScheduledAt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// Complete handles POST /reservations/{reservationID}/complete requests
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	res, err := h.service.Complete(r.Context(), orgID, id)
	if err != nil {
		h.respondError(w, err, "failed to complete reservation")
		return
	}

	h.logger.Info("reservation completed", "id", res.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

type cancelRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel handles POST /reservations/{reservationID}/cancel requests
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	var body cancelRequestBody
	if r.Body != nil {
		// A missing or empty body just means no reason was given.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	res, err := h.service.Cancel(r.Context(), orgID, id, body.Reason)
	if err != nil {
		h.respondError(w, err, "failed to cancel reservation")
		return
	}

	h.logger.Info("reservation cancelled", "id", res.ID, "reason", body.Reason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	var violation *activities.ConstraintViolationError
	var precondition *SchedulePreconditionError
	var conflict *ConflictError
	var transition *InvalidTransitionError

	switch {
	case errors.Is(err, ErrReservationNotFound), errors.Is(err, activities.ErrActivityNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &violation), errors.As(err, &precondition):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &conflict), errors.As(err, &transition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrUnknownMetadataKey),
		errors.Is(err, ErrMissingIntentID),
		errors.Is(err, ErrInvalidParticipants),
		errors.Is(err, activities.ErrModuleNotFound):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(msg, "error", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
