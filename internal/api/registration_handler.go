package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
)

// RegistrationHandler serves registration, attendance and feedback.
type RegistrationHandler struct {
	participation service.ParticipationService
	logger        *slog.Logger
}

// NewRegistrationHandler creates a new RegistrationHandler
func NewRegistrationHandler(participation service.ParticipationService, logger *slog.Logger) *RegistrationHandler {
	if participation == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("participation service cannot be nil for RegistrationHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationHandler{
		participation: participation,
		logger:        logger.With(slog.String("component", "registration_handler")),
	}
}

// Register handles POST /events/{eventID}/registrations. A repeat
// registration answers 200 with the existing registration.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reg, err := h.participation.Register(r.Context(), service.RegisterInput{
		EventID:       eventID,
		ParticipantID: claims.ActorID,
		Name:          req.Name,
		BACBID:        req.BACBID,
		Email:         req.Email,
	})
	if errors.Is(err, service.ErrAlreadyRegistered) && reg != nil {
		shared.RespondWithJSON(w, r, http.StatusOK, RegistrationResponse{Registration: reg, AlreadyRegistered: true})
		return
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to register")
		return
	}

	log.Debug("participant registered",
		slog.String("registration_id", reg.ID.String()),
		slog.String("event_id", eventID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, RegistrationResponse{Registration: reg})
}

// ListMyRegistrations handles GET /me/registrations
func (h *RegistrationHandler) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	regs, err := h.participation.ListRegistrations(r.Context(), claims.ActorID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list registrations")
		return
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, regs)
}

// GetRegistration handles GET /registrations/{registrationID}
func (h *RegistrationHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, reg)
}

// Cancel handles POST /registrations/{registrationID}/cancel
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	cancelled, err := h.participation.Cancel(r.Context(), reg.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel registration")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, cancelled)
}

// CheckIn handles POST /registrations/{registrationID}/check-in
func (h *RegistrationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	var req CheckInRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	attendance, err := h.participation.CheckIn(r.Context(), reg.ID, req.Code)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to check in")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, attendance)
}

// CheckOut handles POST /registrations/{registrationID}/check-out
func (h *RegistrationHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	attendance, err := h.participation.CheckOut(r.Context(), reg.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to check out")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, attendance)
}

// RecordProgress handles POST /registrations/{registrationID}/progress
func (h *RegistrationHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	var req ProgressRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	attendance, err := h.participation.RecordProgress(r.Context(), reg.ID, req.Percentage)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record progress")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, attendance)
}

// SubmitFeedback handles POST /registrations/{registrationID}/feedback
func (h *RegistrationHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	var req FeedbackRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	feedback, err := h.participation.SubmitFeedback(r.Context(), service.FeedbackInput{
		RegistrationID:   reg.ID,
		OverallRating:    req.OverallRating,
		InstructorRating: req.InstructorRating,
		ContentRating:    req.ContentRating,
		RelevanceRating:  req.RelevanceRating,
		ApplicationPlan:  req.ApplicationPlan,
		Comments:         req.Comments,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit feedback")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, feedback)
}

// ConfirmAttendance handles POST /admin/registrations/{registrationID}/confirm-attendance
func (h *RegistrationHandler) ConfirmAttendance(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	registrationID, err := getPathUUID(r, "registrationID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	attendance, err := h.participation.ConfirmAttendance(r.Context(), registrationID, claims.ActorID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to confirm attendance")
		return
	}

	log.Info("attendance confirmed by admin", slog.String("registration_id", registrationID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, attendance)
}

// loadOwnedRegistration resolves the registrationID path parameter and checks
// that the actor is its participant or an admin.
func loadOwnedRegistration(
	w http.ResponseWriter,
	r *http.Request,
	participation service.ParticipationService,
) (*domain.Registration, *auth.Claims, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return nil, nil, false
	}
	registrationID, err := getPathUUID(r, "registrationID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, nil, false
	}

	reg, err := participation.GetRegistration(r.Context(), registrationID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get registration")
		return nil, nil, false
	}
	if !canActFor(claims, reg.ParticipantID) {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return nil, nil, false
	}
	return reg, claims, true
}
