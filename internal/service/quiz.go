package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/domain/grading"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// maxAttemptNumberRetries bounds retries when two submissions of the same
// registration race for one attempt number.
const maxAttemptNumberRetries = 3

// QuizInput describes a quiz to attach to a draft event. A zero
// PassThreshold uses the configured default.
type QuizInput struct {
	EventID       uuid.UUID
	Title         string
	PassThreshold float64
	MaxAttempts   *int
	Questions     []domain.QuizQuestion
}

// QuizDrafter proposes quiz questions for an event.
type QuizDrafter interface {
	DraftQuestions(ctx context.Context, event *domain.Event, count int) ([]domain.QuizQuestion, error)
}

// QuizService authors quizzes and grades attempts.
type QuizService interface {
	// CreateQuiz attaches a quiz to a draft event.
	CreateQuiz(ctx context.Context, in QuizInput) (*domain.Quiz, error)

	// GetQuiz returns the quiz of an event.
	GetQuiz(ctx context.Context, eventID uuid.UUID) (*domain.Quiz, error)

	// SubmitAttempt grades answers and stores them as the registration's next
	// attempt. It fails with domain.ErrMaxAttemptsReached once the quiz's
	// attempt limit is used up.
	SubmitAttempt(ctx context.Context, registrationID uuid.UUID, answers domain.Answers) (*domain.QuizResponse, error)

	// ListAttempts returns the registration's attempts, oldest first.
	ListAttempts(ctx context.Context, registrationID uuid.UUID) ([]domain.QuizResponse, error)

	// DraftQuestions proposes enough questions for the event's CEUs. Drafts
	// are returned for review and never stored.
	DraftQuestions(ctx context.Context, eventID uuid.UUID) ([]domain.QuizQuestion, error)
}

type quizServiceImpl struct {
	stores           Stores
	tx               store.Transactor
	grader           grading.Service
	drafter          QuizDrafter
	defaultThreshold float64
	logger           *slog.Logger
}

var _ QuizService = (*quizServiceImpl)(nil)

// NewQuizService creates a QuizService. drafter may be nil, in which case
// DraftQuestions returns ErrDraftingUnavailable.
func NewQuizService(
	stores Stores,
	tx store.Transactor,
	grader grading.Service,
	drafter QuizDrafter,
	defaultThreshold float64,
	logger *slog.Logger,
) (QuizService, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor cannot be nil")
	}
	if grader == nil {
		grader = grading.NewServiceWithParams(grading.NewParams(defaultThreshold))
	}
	if defaultThreshold <= 0 || defaultThreshold > 1 {
		defaultThreshold = domain.DefaultPassThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &quizServiceImpl{
		stores:           stores,
		tx:               tx,
		grader:           grader,
		drafter:          drafter,
		defaultThreshold: defaultThreshold,
		logger:           logger.With(slog.String("component", "quiz_service")),
	}, nil
}

// CreateQuiz implements QuizService.CreateQuiz
func (s *quizServiceImpl) CreateQuiz(ctx context.Context, in QuizInput) (*domain.Quiz, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	threshold := in.PassThreshold
	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	quiz, err := domain.NewQuiz(in.EventID, in.Title, threshold, in.MaxAttempts, in.Questions, time.Now())
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stores := s.stores.WithTx(tx)
		event, err := stores.Events.GetForUpdate(ctx, in.EventID)
		if err != nil {
			return notFoundOr(err, store.ErrEventNotFound, "quiz", "create_quiz")
		}
		if event.Status != domain.EventStatusDraft {
			return ErrQuizLocked
		}
		if err := stores.Quizzes.Create(ctx, quiz); err != nil {
			if errors.Is(err, store.ErrQuizExists) || errors.Is(err, domain.ErrValidation) {
				return err
			}
			return NewServiceError("quiz", "create_quiz", "failed to save quiz", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("quiz created",
		slog.String("quiz_id", quiz.ID.String()),
		slog.String("event_id", quiz.EventID.String()),
		slog.Int("questions", len(quiz.Questions)))
	return quiz, nil
}

// GetQuiz implements QuizService.GetQuiz
func (s *quizServiceImpl) GetQuiz(ctx context.Context, eventID uuid.UUID) (*domain.Quiz, error) {
	quiz, err := s.stores.Quizzes.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrQuizNotFound, "quiz", "get_quiz")
	}
	return quiz, nil
}

// SubmitAttempt implements QuizService.SubmitAttempt
func (s *quizServiceImpl) SubmitAttempt(
	ctx context.Context,
	registrationID uuid.UUID,
	answers domain.Answers,
) (*domain.QuizResponse, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	reg, err := s.stores.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrRegistrationNotFound, "quiz", "submit_attempt")
	}
	if reg.Cancelled {
		return nil, domain.ErrRegistrationCancelled
	}
	quiz, err := s.GetQuiz(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}

	result, err := s.grader.Grade(quiz, answers)
	if err != nil {
		if errors.Is(err, grading.ErrUnknownQuestion) {
			return nil, domain.NewValidationError("answers", err.Error())
		}
		return nil, NewServiceError("quiz", "submit_attempt", "failed to grade attempt", err)
	}

	for try := 0; try < maxAttemptNumberRetries; try++ {
		previous, err := s.stores.Quizzes.ListResponses(ctx, reg.ID, quiz.ID)
		if err != nil {
			return nil, NewServiceError("quiz", "submit_attempt", "failed to list attempts", err)
		}
		if quiz.AttemptsExhausted(len(previous)) {
			return nil, domain.ErrMaxAttemptsReached
		}

		response := &domain.QuizResponse{
			ID:             uuid.New(),
			RegistrationID: reg.ID,
			QuizID:         quiz.ID,
			Answers:        answers,
			Score:          result.Score,
			MaxScore:       result.MaxScore,
			Passed:         result.Passed,
			AttemptNumber:  len(previous) + 1,
			SubmittedAt:    time.Now().UTC(),
		}
		err = s.stores.Quizzes.CreateResponse(ctx, response)
		if err == nil {
			log.Info("quiz attempt graded",
				slog.String("registration_id", reg.ID.String()),
				slog.Int("attempt", response.AttemptNumber),
				slog.Int("score", response.Score),
				slog.Int("max_score", response.MaxScore),
				slog.Bool("passed", response.Passed))
			return response, nil
		}
		if !store.IsDuplicateError(err) {
			return nil, NewServiceError("quiz", "submit_attempt", "failed to save attempt", err)
		}
		log.Debug("attempt number taken by a concurrent submission, retrying",
			slog.String("registration_id", reg.ID.String()))
	}
	return nil, NewServiceError("quiz", "submit_attempt", "attempt numbering kept colliding", nil)
}

// ListAttempts implements QuizService.ListAttempts
func (s *quizServiceImpl) ListAttempts(ctx context.Context, registrationID uuid.UUID) ([]domain.QuizResponse, error) {
	reg, err := s.stores.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrRegistrationNotFound, "quiz", "list_attempts")
	}
	quiz, err := s.GetQuiz(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	responses, err := s.stores.Quizzes.ListResponses(ctx, reg.ID, quiz.ID)
	if err != nil {
		return nil, NewServiceError("quiz", "list_attempts", "failed to list attempts", err)
	}
	return responses, nil
}

// DraftQuestions implements QuizService.DraftQuestions
func (s *quizServiceImpl) DraftQuestions(ctx context.Context, eventID uuid.UUID) ([]domain.QuizQuestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.drafter == nil {
		return nil, ErrDraftingUnavailable
	}
	event, err := s.stores.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrEventNotFound, "quiz", "draft_questions")
	}
	if countObjectives(event.LearningObjectives) == 0 {
		return nil, domain.NewValidationError("learning_objectives", "must contain at least one objective to draft a quiz")
	}

	count := domain.MinimumQuizQuestions(event.TotalCEUs)
	questions, err := s.drafter.DraftQuestions(ctx, event, count)
	if err != nil {
		log.Error("quiz drafting failed",
			slog.String("error", err.Error()),
			slog.String("event_id", eventID.String()))
		return nil, NewServiceError("quiz", "draft_questions", "drafter failed", err)
	}

	log.Info("quiz questions drafted",
		slog.String("event_id", eventID.String()),
		slog.Int("requested", count),
		slog.Int("drafted", len(questions)))
	return questions, nil
}

func countObjectives(objectives []string) int {
	n := 0
	for _, o := range objectives {
		if o != "" {
			n++
		}
	}
	return n
}
