package api

import (
	"log/slog"
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/go-chi/chi/v5"
)

// CertificateHandler serves eligibility checks, issuance, rendering,
// revocation and public verification.
type CertificateHandler struct {
	certificates  service.CertificateService
	eligibility   service.EligibilityService
	participation service.ParticipationService
	verification  service.VerificationService
	logger        *slog.Logger
}

// NewCertificateHandler creates a new CertificateHandler
func NewCertificateHandler(
	certificates service.CertificateService,
	eligibility service.EligibilityService,
	participation service.ParticipationService,
	verification service.VerificationService,
	logger *slog.Logger,
) *CertificateHandler {
	if certificates == nil || eligibility == nil || participation == nil || verification == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("services cannot be nil for CertificateHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateHandler{
		certificates:  certificates,
		eligibility:   eligibility,
		participation: participation,
		verification:  verification,
		logger:        logger.With(slog.String("component", "certificate_handler")),
	}
}

// CheckEligibility handles GET /registrations/{registrationID}/eligibility
func (h *CertificateHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	result, err := h.eligibility.CheckRegistration(r.Context(), reg.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to check eligibility")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// IssueCertificate handles POST /registrations/{registrationID}/certificate.
// It returns the existing certificate when one was already issued and 422
// with every unmet criterion when the registration is not eligible.
func (h *CertificateHandler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	cert, err := h.certificates.IssueOrGet(r.Context(), reg.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to issue certificate")
		return
	}

	log.Debug("certificate served",
		slog.String("registration_id", reg.ID.String()),
		slog.String("certificate_number", cert.CertificateNumber))
	shared.RespondWithJSON(w, r, http.StatusOK, cert)
}

// IssueForEvent handles POST /events/{eventID}/certificate for the
// authenticated participant.
func (h *CertificateHandler) IssueForEvent(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	eventID, err := getPathUUID(r, "eventID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	cert, err := h.certificates.IssueForParticipant(r.Context(), eventID, claims.ActorID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to issue certificate")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, cert)
}

// ListMyCertificates handles GET /me/certificates with an optional event_id
// query parameter.
func (h *CertificateHandler) ListMyCertificates(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	eventID, err := getQueryUUID(r, "event_id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	certs, err := h.certificates.ListForParticipant(r.Context(), claims.ActorID, eventID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list certificates")
		return
	}
	if certs == nil {
		certs = []*domain.Certificate{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, certs)
}

// GetCertificate handles GET /certificates/{certificateID}
func (h *CertificateHandler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	cert, ok := h.loadOwnedCertificate(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, cert)
}

// RenderCertificate handles GET /certificates/{certificateID}/document
func (h *CertificateHandler) RenderCertificate(w http.ResponseWriter, r *http.Request) {
	cert, ok := h.loadOwnedCertificate(w, r)
	if !ok {
		return
	}

	doc, err := h.certificates.Render(r.Context(), cert.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to render certificate")
		return
	}
	shared.RespondWithHTML(w, r, http.StatusOK, doc)
}

// RevokeCertificate handles POST /admin/certificates/{number}/revoke
func (h *CertificateHandler) RevokeCertificate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req RevokeCertificateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	cert, err := h.certificates.Revoke(r.Context(), chi.URLParam(r, "number"), req.Reason, claims.ActorID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to revoke certificate")
		return
	}

	log.Info("certificate revoked", slog.String("certificate_number", cert.CertificateNumber))
	shared.RespondWithJSON(w, r, http.StatusOK, cert)
}

// VerifyCertificate handles GET /verify/{number}. Revoked and unknown
// numbers produce the same 404 response.
func (h *CertificateHandler) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.verification.Verify(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to verify certificate")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toVerificationResponse(cert))
}

func (h *CertificateHandler) loadOwnedCertificate(w http.ResponseWriter, r *http.Request) (*domain.Certificate, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return nil, false
	}
	certificateID, err := getPathUUID(r, "certificateID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, false
	}

	cert, err := h.certificates.GetCertificate(r.Context(), certificateID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get certificate")
		return nil, false
	}
	if !canActFor(claims, cert.ParticipantID) {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return nil, false
	}
	return cert, true
}
