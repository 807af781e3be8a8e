package main

import (
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api"
	apiMiddleware "github.com/behaviorschool/ceu-api/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	r.Route("/api", api.Routes(api.RoutesConfig{
		Handlers: api.Handlers{
			Events:        api.NewEventHandler(app.lifecycle, app.participation, app.logger),
			Registrations: api.NewRegistrationHandler(app.participation, app.logger),
			Quizzes:       api.NewQuizHandler(app.quizzes, app.lifecycle, app.participation, app.logger),
			Certificates: api.NewCertificateHandler(
				app.certificates,
				app.eligibility,
				app.participation,
				app.verification,
				app.logger,
			),
			Providers: api.NewProviderHandler(app.providers, app.logger),
		},
		Auth:         apiMiddleware.NewAuthMiddleware(app.jwtService),
		VerifyLimits: app.verifyLimits,
	}))

	r.Get("/health", api.HealthHandler)

	return r
}
