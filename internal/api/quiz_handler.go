package api

import (
	"log/slog"
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/store"
)

// QuizHandler serves quiz authoring, drafting and attempts.
type QuizHandler struct {
	quizzes       service.QuizService
	lifecycle     service.LifecycleService
	participation service.ParticipationService
	logger        *slog.Logger
}

// NewQuizHandler creates a new QuizHandler
func NewQuizHandler(
	quizzes service.QuizService,
	lifecycle service.LifecycleService,
	participation service.ParticipationService,
	logger *slog.Logger,
) *QuizHandler {
	if quizzes == nil || lifecycle == nil || participation == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("services cannot be nil for QuizHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizHandler{
		quizzes:       quizzes,
		lifecycle:     lifecycle,
		participation: participation,
		logger:        logger.With(slog.String("component", "quiz_handler")),
	}
}

// CreateQuiz handles POST /events/{eventID}/quiz
func (h *QuizHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	event, ok := loadManagedEvent(w, r, h.lifecycle, claims)
	if !ok {
		return
	}

	var req CreateQuizRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	quiz, err := h.quizzes.CreateQuiz(r.Context(), service.QuizInput{
		EventID:       event.ID,
		Title:         req.Title,
		PassThreshold: req.PassThreshold,
		MaxAttempts:   req.MaxAttempts,
		Questions:     toDomainQuestions(req.Questions),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create quiz")
		return
	}

	log.Debug("quiz created",
		slog.String("quiz_id", quiz.ID.String()),
		slog.Int("questions", len(quiz.Questions)))
	shared.RespondWithJSON(w, r, http.StatusCreated, quiz)
}

// GetQuiz handles GET /events/{eventID}/quiz. Owners and admins receive the
// answer key; everyone else gets the questions only, and only for publicly
// visible events.
func (h *QuizHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
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
	manager := canManageEvent(claims, event)
	if !manager && !event.IsPubliclyVisible() {
		HandleAPIError(w, r, store.ErrEventNotFound, "")
		return
	}

	quiz, err := h.quizzes.GetQuiz(r.Context(), eventID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get quiz")
		return
	}
	if manager {
		shared.RespondWithJSON(w, r, http.StatusOK, quiz)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toParticipantQuiz(quiz))
}

// DraftQuestions handles POST /events/{eventID}/quiz/draft. Drafts are
// returned for review and never stored.
func (h *QuizHandler) DraftQuestions(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	event, ok := loadManagedEvent(w, r, h.lifecycle, claims)
	if !ok {
		return
	}

	questions, err := h.quizzes.DraftQuestions(r.Context(), event.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to draft questions")
		return
	}

	log.Debug("questions drafted",
		slog.String("event_id", event.ID.String()),
		slog.Int("count", len(questions)))
	shared.RespondWithJSON(w, r, http.StatusOK, DraftQuestionsResponse{Questions: questions})
}

// SubmitAttempt handles POST /registrations/{registrationID}/quiz-attempts
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	var req SubmitAttemptRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	attempt, err := h.quizzes.SubmitAttempt(r.Context(), reg.ID, req.Answers)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit quiz attempt")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, attempt)
}

// ListAttempts handles GET /registrations/{registrationID}/quiz-attempts
func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	reg, _, ok := loadOwnedRegistration(w, r, h.participation)
	if !ok {
		return
	}

	attempts, err := h.quizzes.ListAttempts(r.Context(), reg.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list quiz attempts")
		return
	}
	if attempts == nil {
		attempts = []domain.QuizResponse{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, attempts)
}
