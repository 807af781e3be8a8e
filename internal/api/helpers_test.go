package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/api"
	"github.com/behaviorschool/ceu-api/internal/api/middleware"
	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/config"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/domain/eligibility"
	"github.com/behaviorschool/ceu-api/internal/domain/grading"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/mocks"
	"github.com/behaviorschool/ceu-api/internal/platform/render"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/behaviorschool/ceu-api/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

type testServer struct {
	t      *testing.T
	router http.Handler
	mem    *mocks.Memory
	stores service.Stores
	jwt    auth.JWTService
	admin  string
}

type serverOption func(*serverOptions)

type serverOptions struct {
	drafter      service.QuizDrafter
	verifyLimits *middleware.RateLimiter
}

func withDrafter(d service.QuizDrafter) serverOption {
	return func(o *serverOptions) { o.drafter = d }
}

func withVerifyLimits(l *middleware.RateLimiter) serverOption {
	return func(o *serverOptions) { o.verifyLimits = l }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := mocks.NewMemory()
	tx := &mocks.Transactor{}
	stores := service.Stores{
		Providers:     mem.Providers(),
		Events:        mem.Events(),
		Registrations: mem.Registrations(),
		Attendance:    mem.Attendance(),
		Feedback:      mem.Feedback(),
		Quizzes:       mem.Quizzes(),
		Certificates:  mem.Certificates(),
	}
	emitter := events.NopEmitter{}

	lifecycle, err := service.NewLifecycleService(stores, tx, emitter, log)
	require.NoError(t, err)
	participation, err := service.NewParticipationService(stores, tx, log)
	require.NoError(t, err)
	quizzes, err := service.NewQuizService(stores, tx, grading.NewDefaultService(), options.drafter,
		domain.DefaultPassThreshold, log)
	require.NoError(t, err)
	eligibilitySvc, err := service.NewEligibilityService(stores, eligibility.NewDefaultService(), log)
	require.NoError(t, err)
	providers, err := service.NewProviderService(stores.Providers, stores.Events, emitter, 0, log)
	require.NoError(t, err)

	renderer, err := render.New()
	require.NoError(t, err)
	factory := task.NewCertificateNotificationTaskFactory(stores.Certificates, stores.Registrations,
		&mocks.RecordingSender{}, "https://ceu.example.com/verify", log)
	certificates, err := service.NewCertificateService(
		stores,
		tx,
		eligibility.NewDefaultService(),
		service.NotificationOutbox{Tasks: task.NewMockTaskStore(), Factory: factory},
		renderer,
		emitter,
		service.CertificateConfig{NumberPrefix: "CE", NumberMaxRetries: 3},
		log,
	)
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeHours: 1})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	r.Route("/api", api.Routes(api.RoutesConfig{
		Handlers: api.Handlers{
			Events:        api.NewEventHandler(lifecycle, participation, log),
			Registrations: api.NewRegistrationHandler(participation, log),
			Quizzes:       api.NewQuizHandler(quizzes, lifecycle, participation, log),
			Certificates: api.NewCertificateHandler(certificates, eligibilitySvc, participation,
				service.NewVerificationService(stores.Certificates, log), log),
			Providers: api.NewProviderHandler(providers, log),
		},
		Auth:         middleware.NewAuthMiddleware(jwtService),
		VerifyLimits: options.verifyLimits,
	}))
	r.Get("/health", api.HealthHandler)

	s := &testServer{t: t, router: r, mem: mem, stores: stores, jwt: jwtService}
	s.admin = s.token(uuid.New(), auth.RoleAdmin)
	return s
}

func (s *testServer) token(actorID uuid.UUID, role auth.Role) string {
	s.t.Helper()
	token, err := s.jwt.GenerateToken(context.Background(), actorID, role)
	require.NoError(s.t, err)
	return token
}

// do sends a JSON request. body may be nil.
func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	return decode[shared.ErrorResponse](t, rr)
}

// provider stores an active provider and returns it with a provider token.
func (s *testServer) provider() (*domain.Provider, string) {
	s.t.Helper()
	p, err := domain.NewProvider("Behavior School", "OP-"+uuid.NewString()[:8], "ops@example.com", time.Now(), 0)
	require.NoError(s.t, err)
	require.NoError(s.t, s.stores.Providers.Create(context.Background(), p))
	return p, s.token(p.ID, auth.RoleProvider)
}

// event stores an event of p in status.
func (s *testServer) event(p *domain.Provider, status domain.EventStatus, modality domain.Modality) *domain.Event {
	s.t.Helper()
	e, err := domain.NewEvent(p.ID, "Ethics in Practice", domain.CECategoryEthics, modality, 1.0,
		time.Now().Add(72*time.Hour))
	require.NoError(s.t, err)
	e.LearningObjectives = []string{"Identify dual relationships"}
	e.InstructorQualificationsSummary = "BCBA-D"
	e.InstructorName = "Dr. Rivera"
	require.NoError(s.t, s.stores.Events.Create(context.Background(), e))
	if status != domain.EventStatusDraft {
		e.Status = status
		require.NoError(s.t, s.stores.Events.Update(context.Background(), e))
	}
	return e
}

// participant returns a fresh participant id and token.
func (s *testServer) participant() (uuid.UUID, string) {
	id := uuid.New()
	return id, s.token(id, auth.RoleParticipant)
}

// eventRequest is a valid event creation payload starting in three days.
func eventRequest() api.CreateEventRequest {
	return api.CreateEventRequest{
		Title:                           "Ethics in Practice",
		Description:                     "Dual relationships and the code",
		Category:                        "ethics",
		Modality:                        "in_person",
		TotalCEUs:                       1.0,
		StartDate:                       time.Now().Add(72 * time.Hour).UTC(),
		InstructorName:                  "Dr. Rivera",
		LearningObjectives:              []string{"Identify dual relationships", "Apply code 2.0"},
		InstructorQualificationsSummary: "BCBA-D, 10 years of supervision",
	}
}
