package api

import (
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api/middleware"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by Routes.
type Handlers struct {
	Events        *EventHandler
	Registrations *RegistrationHandler
	Quizzes       *QuizHandler
	Certificates  *CertificateHandler
	Providers     *ProviderHandler
}

// RoutesConfig carries the handlers and cross-cutting middleware of the API.
type RoutesConfig struct {
	Handlers     Handlers
	Auth         *middleware.AuthMiddleware
	VerifyLimits *middleware.RateLimiter
}

// Routes registers every API route on r. It is meant to be mounted under
// /api.
func Routes(cfg RoutesConfig) func(r chi.Router) {
	h := cfg.Handlers
	return func(r chi.Router) {
		// Public endpoints
		r.Get("/events", h.Events.ListEvents)
		r.Get("/events/{eventID}", h.Events.GetEvent)
		r.Group(func(r chi.Router) {
			if cfg.VerifyLimits != nil {
				r.Use(cfg.VerifyLimits.Limit)
			}
			r.Get("/verify/{number}", h.Certificates.VerifyCertificate)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Authenticate)

			// Event authoring
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleProvider, auth.RoleAdmin))
				r.Post("/events", h.Events.CreateEvent)
				r.Put("/events/{eventID}/check-in-code", h.Events.SetCheckInCode)
				r.Post("/events/{eventID}/submit", h.Events.SubmitEvent)
				r.Get("/events/{eventID}/feedback-summary", h.Events.FeedbackSummary)
				r.Post("/events/{eventID}/quiz", h.Quizzes.CreateQuiz)
				r.Post("/events/{eventID}/quiz/draft", h.Quizzes.DraftQuestions)
				r.Get("/providers/{providerID}", h.Providers.GetProvider)
				r.Get("/providers/{providerID}/events", h.Providers.ListProviderEvents)
			})

			r.Get("/events/{eventID}/quiz", h.Quizzes.GetQuiz)

			// Participation
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleParticipant, auth.RoleAdmin))
				r.Post("/events/{eventID}/registrations", h.Registrations.Register)
				r.Post("/events/{eventID}/certificate", h.Certificates.IssueForEvent)
				r.Get("/me/registrations", h.Registrations.ListMyRegistrations)
				r.Get("/me/certificates", h.Certificates.ListMyCertificates)

				r.Route("/registrations/{registrationID}", func(r chi.Router) {
					r.Get("/", h.Registrations.GetRegistration)
					r.Post("/cancel", h.Registrations.Cancel)
					r.Post("/check-in", h.Registrations.CheckIn)
					r.Post("/check-out", h.Registrations.CheckOut)
					r.Post("/progress", h.Registrations.RecordProgress)
					r.Post("/feedback", h.Registrations.SubmitFeedback)
					r.Post("/quiz-attempts", h.Quizzes.SubmitAttempt)
					r.Get("/quiz-attempts", h.Quizzes.ListAttempts)
					r.Get("/eligibility", h.Certificates.CheckEligibility)
					r.Post("/certificate", h.Certificates.IssueCertificate)
				})

				r.Get("/certificates/{certificateID}", h.Certificates.GetCertificate)
				r.Get("/certificates/{certificateID}/document", h.Certificates.RenderCertificate)
			})

			// Administration
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleAdmin))
				r.Post("/providers", h.Providers.CreateProvider)
				r.Post("/providers/{providerID}/renew", h.Providers.RenewProvider)
				r.Post("/events/{eventID}/approve", h.Events.ApproveEvent)
				r.Post("/events/{eventID}/reject", h.Events.RejectEvent)
				r.Post("/events/{eventID}/begin", h.Events.BeginEvent)
				r.Post("/events/{eventID}/complete", h.Events.CompleteEvent)
				r.Post("/events/{eventID}/archive", h.Events.ArchiveEvent)
				r.Post("/registrations/{registrationID}/confirm-attendance", h.Registrations.ConfirmAttendance)
				r.Post("/certificates/{number}/revoke", h.Certificates.RevokeCertificate)
			})
		})
	}
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
