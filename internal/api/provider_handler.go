package api

import (
	"log/slog"
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/google/uuid"
)

// ProviderHandler serves provider accreditation.
type ProviderHandler struct {
	providers service.ProviderService
	logger    *slog.Logger
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(providers service.ProviderService, logger *slog.Logger) *ProviderHandler {
	if providers == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("provider service cannot be nil for ProviderHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderHandler{
		providers: providers,
		logger:    logger.With(slog.String("component", "provider_handler")),
	}
}

// CreateProvider handles POST /admin/providers
func (h *ProviderHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateProviderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	provider, err := h.providers.CreateProvider(r.Context(), service.ProviderInput{
		Name:           req.ProviderName,
		ProviderNumber: req.BACBProviderNumber,
		ContactEmail:   req.ContactEmail,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create provider")
		return
	}

	log.Info("provider created", slog.String("provider_id", provider.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, provider)
}

// GetProvider handles GET /providers/{providerID}
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.authorizedProviderID(w, r)
	if !ok {
		return
	}

	provider, err := h.providers.GetProvider(r.Context(), providerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get provider")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, provider)
}

// ListProviderEvents handles GET /providers/{providerID}/events. It lists
// events in every status, drafts included.
func (h *ProviderHandler) ListProviderEvents(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.authorizedProviderID(w, r)
	if !ok {
		return
	}

	events, err := h.providers.ListEvents(r.Context(), providerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list provider events")
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, events)
}

// RenewProvider handles POST /admin/providers/{providerID}/renew
func (h *ProviderHandler) RenewProvider(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	providerID, err := getPathUUID(r, "providerID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	provider, err := h.providers.Renew(r.Context(), providerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to renew provider")
		return
	}

	log.Info("provider renewed",
		slog.String("provider_id", provider.ID.String()),
		slog.Time("expires_at", provider.ExpiresAt))
	shared.RespondWithJSON(w, r, http.StatusOK, provider)
}

// authorizedProviderID lets a provider act on its own record and an admin
// on any.
func (h *ProviderHandler) authorizedProviderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return uuid.Nil, false
	}
	providerID, err := getPathUUID(r, "providerID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	if !claims.HasRole(auth.RoleAdmin) && !(claims.HasRole(auth.RoleProvider) && claims.ActorID == providerID) {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return uuid.Nil, false
	}
	return providerID, true
}
