package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/redact"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required")
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format")
	}
	return id, nil
}

// getQueryUUID parses an optional UUID query parameter. It returns nil when
// the parameter is absent.
func getQueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.NewValidationError(name, "has invalid format")
	}
	return &id, nil
}

// getQueryInt parses an optional non-negative integer query parameter.
func getQueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// requireClaims returns the authenticated actor, writing 401 when the
// request is anonymous.
func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := shared.ClaimsFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return nil, false
	}
	return claims, true
}

// decodeAndValidate reads the JSON body into req and validates it, writing
// a 400 response on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	log := logger.FromContextOrDefault(r.Context(), slog.Default())

	if err := shared.DecodeJSON(r, req); err != nil {
		log.Warn("invalid request format", redact.Attr(err))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}

// canManageEvent reports whether the actor owns the event or is an admin.
func canManageEvent(claims *auth.Claims, event *domain.Event) bool {
	if claims.HasRole(auth.RoleAdmin) {
		return true
	}
	return claims.HasRole(auth.RoleProvider) && claims.ActorID == event.ProviderID
}

// canActFor reports whether the actor is the participant or an admin.
func canActFor(claims *auth.Claims, participantID uuid.UUID) bool {
	if claims.HasRole(auth.RoleAdmin) {
		return true
	}
	return claims.HasRole(auth.RoleParticipant) && claims.ActorID == participantID
}
