package api

import (
	"log/slog"
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// maxPageSize caps public event listings.
const maxPageSize = 100

// EventHandler serves event authoring, review and the public catalogue.
type EventHandler struct {
	lifecycle     service.LifecycleService
	participation service.ParticipationService
	logger        *slog.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(
	lifecycle service.LifecycleService,
	participation service.ParticipationService,
	logger *slog.Logger,
) *EventHandler {
	if lifecycle == nil || participation == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("services cannot be nil for EventHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		lifecycle:     lifecycle,
		participation: participation,
		logger:        logger.With(slog.String("component", "event_handler")),
	}
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req CreateEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	providerID := claims.ActorID
	if claims.HasRole(auth.RoleAdmin) {
		if req.ProviderID == nil {
			HandleAPIError(w, r, domain.NewValidationError("provider_id", "is required"), "")
			return
		}
		providerID = *req.ProviderID
	}

	event, err := domain.NewEvent(
		providerID,
		req.Title,
		domain.CECategory(req.Category),
		domain.Modality(req.Modality),
		req.TotalCEUs,
		req.StartDate,
	)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	event.Description = req.Description
	event.EndDate = req.EndDate
	event.MaxParticipants = req.MaxParticipants
	event.FeeCents = req.FeeCents
	if req.InstructorID != nil {
		event.InstructorID = *req.InstructorID
	}
	event.InstructorName = req.InstructorName
	if req.LearningObjectives != nil {
		event.LearningObjectives = req.LearningObjectives
	}
	event.InstructorQualificationsSummary = req.InstructorQualificationsSummary
	event.ConflictsOfInterest = req.ConflictsOfInterest

	if err := event.Validate(); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.lifecycle.CreateEvent(r.Context(), event); err != nil {
		HandleAPIError(w, r, err, "Failed to create event")
		return
	}

	log.Debug("event created", slog.String("event_id", event.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, event)
}

// GetEvent handles GET /events/{eventID}. Only publicly visible events are
// served; owners see their other events through the provider listing.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := getPathUUID(r, "eventID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	event, err := h.lifecycle.GetEvent(r.Context(), eventID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get event")
		return
	}
	if !event.IsPubliclyVisible() {
		HandleAPIError(w, r, store.ErrEventNotFound, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, event)
}

// ListEvents handles GET /events with optional ce_category, modality,
// provider_id, limit and offset query parameters.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	events, err := h.lifecycle.ListPublicEvents(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list events")
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, events)
}

func parseEventFilter(r *http.Request) (store.EventFilter, error) {
	var filter store.EventFilter
	q := r.URL.Query()

	if raw := q.Get("ce_category"); raw != "" {
		category, err := domain.ParseCECategory(raw)
		if err != nil {
			return filter, err
		}
		filter.Category = category
	}
	if raw := q.Get("modality"); raw != "" {
		modality, err := domain.ParseModality(raw)
		if err != nil {
			return filter, err
		}
		filter.Modality = modality
	}
	providerID, err := getQueryUUID(r, "provider_id")
	if err != nil {
		return filter, err
	}
	if providerID != nil {
		filter.ProviderID = *providerID
	}

	if filter.Limit, err = getQueryInt(r, "limit"); err != nil {
		return filter, err
	}
	if filter.Limit == 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset, err = getQueryInt(r, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// loadManagedEvent resolves the eventID path parameter and checks that the
// actor may manage it. It writes the error response and returns false on
// failure.
func (h *EventHandler) loadManagedEvent(w http.ResponseWriter, r *http.Request) (*domain.Event, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return nil, false
	}
	return loadManagedEvent(w, r, h.lifecycle, claims)
}

func loadManagedEvent(
	w http.ResponseWriter,
	r *http.Request,
	lifecycle service.LifecycleService,
	claims *auth.Claims,
) (*domain.Event, bool) {
	eventID, err := getPathUUID(r, "eventID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, false
	}
	event, err := lifecycle.GetEvent(r.Context(), eventID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get event")
		return nil, false
	}
	if !canManageEvent(claims, event) {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return nil, false
	}
	return event, true
}

// SetCheckInCode handles PUT /events/{eventID}/check-in-code
func (h *EventHandler) SetCheckInCode(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadManagedEvent(w, r)
	if !ok {
		return
	}

	var req CheckInCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.lifecycle.SetCheckInCode(r.Context(), event.ID, req.Code); err != nil {
		HandleAPIError(w, r, err, "Failed to set check-in code")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitEvent handles POST /events/{eventID}/submit
func (h *EventHandler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadManagedEvent(w, r)
	if !ok {
		return
	}

	submitted, err := h.lifecycle.Submit(r.Context(), event.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit event")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, submitted)
}

// FeedbackSummary handles GET /events/{eventID}/feedback-summary
func (h *EventHandler) FeedbackSummary(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadManagedEvent(w, r)
	if !ok {
		return
	}

	summary, err := h.participation.FeedbackSummary(r.Context(), event.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to summarize feedback")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// ApproveEvent handles POST /admin/events/{eventID}/approve
func (h *EventHandler) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(eventID, reviewerID uuid.UUID) (*domain.Event, error) {
		return h.lifecycle.Approve(r.Context(), eventID, reviewerID)
	})
}

// RejectEvent handles POST /admin/events/{eventID}/reject
func (h *EventHandler) RejectEvent(w http.ResponseWriter, r *http.Request) {
	var req RejectEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.review(w, r, func(eventID, reviewerID uuid.UUID) (*domain.Event, error) {
		return h.lifecycle.Reject(r.Context(), eventID, reviewerID, req.Reason)
	})
}

// BeginEvent handles POST /admin/events/{eventID}/begin
func (h *EventHandler) BeginEvent(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(eventID, _ uuid.UUID) (*domain.Event, error) {
		return h.lifecycle.Begin(r.Context(), eventID)
	})
}

// CompleteEvent handles POST /admin/events/{eventID}/complete
func (h *EventHandler) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(eventID, _ uuid.UUID) (*domain.Event, error) {
		return h.lifecycle.Complete(r.Context(), eventID)
	})
}

// ArchiveEvent handles POST /admin/events/{eventID}/archive
func (h *EventHandler) ArchiveEvent(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(eventID, _ uuid.UUID) (*domain.Event, error) {
		return h.lifecycle.Archive(r.Context(), eventID)
	})
}

// review runs an administrative status change. Routes using it are
// restricted to administrators by the router.
func (h *EventHandler) review(
	w http.ResponseWriter,
	r *http.Request,
	transition func(eventID, reviewerID uuid.UUID) (*domain.Event, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	eventID, err := getPathUUID(r, "eventID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	event, err := transition(eventID, claims.ActorID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update event status")
		return
	}

	log.Info("event status changed",
		slog.String("event_id", event.ID.String()),
		slog.String("status", string(event.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, event)
}
