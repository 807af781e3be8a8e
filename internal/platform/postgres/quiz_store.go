package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// PostgresQuizStore implements the store.QuizStore interface
// using a PostgreSQL database as the storage backend.
type PostgresQuizStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresQuizStore creates a new PostgreSQL implementation of the QuizStore interface.
func NewPostgresQuizStore(db store.DBTX, logger *slog.Logger) *PostgresQuizStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQuizStore{
		db:     db,
		logger: logger.With(slog.String("component", "quiz_store")),
	}
}

var _ store.QuizStore = (*PostgresQuizStore)(nil)

// Create implements store.QuizStore.Create
// The quiz row and its question rows are separate statements, so callers
// run Create on a store bound to a transaction.
func (s *PostgresQuizStore) Create(ctx context.Context, quiz *domain.Quiz) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := quiz.Validate(); err != nil {
		log.Warn("quiz validation failed during create",
			slog.String("error", err.Error()),
			slog.String("quiz_id", quiz.ID.String()))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quizzes (id, event_id, title, pass_threshold, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		quiz.ID,
		quiz.EventID,
		quiz.Title,
		quiz.PassThreshold,
		toNullInt(quiz.MaxAttempts),
		quiz.CreatedAt,
		quiz.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return MapUniqueViolation(err, store.ErrQuizExists)
		}
		log.Error("failed to create quiz",
			slog.String("error", err.Error()),
			slog.String("event_id", quiz.EventID.String()))
		return MapError(err)
	}

	for _, q := range quiz.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options: %w", err)
		}
		correct, err := json.Marshal(q.CorrectAnswerIDs)
		if err != nil {
			return fmt.Errorf("failed to encode correct answers: %w", err)
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO quiz_questions (id, quiz_id, position, prompt, question_type, options,
				correct_answer_ids, points)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, q.ID, quiz.ID, q.Position, q.Prompt, q.Type, options, correct, q.Points)
		if err != nil {
			log.Error("failed to create quiz question",
				slog.String("error", err.Error()),
				slog.String("quiz_id", quiz.ID.String()),
				slog.Int("position", q.Position))
			return MapError(err)
		}
	}

	log.Info("quiz created",
		slog.String("quiz_id", quiz.ID.String()),
		slog.String("event_id", quiz.EventID.String()),
		slog.Int("questions", len(quiz.Questions)))
	return nil
}

// GetByID implements store.QuizStore.GetByID
func (s *PostgresQuizStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quiz, error) {
	return s.get(ctx, "id", id)
}

// GetByEventID implements store.QuizStore.GetByEventID
func (s *PostgresQuizStore) GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Quiz, error) {
	return s.get(ctx, "event_id", eventID)
}

func (s *PostgresQuizStore) get(ctx context.Context, column string, id uuid.UUID) (*domain.Quiz, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// column is one of two constants chosen by the callers above.
	query := `
		SELECT id, event_id, title, pass_threshold, max_attempts, created_at, updated_at
		FROM quizzes
		WHERE ` + column + ` = $1
	`
	var quiz domain.Quiz
	var maxAttempts sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&quiz.ID,
		&quiz.EventID,
		&quiz.Title,
		&quiz.PassThreshold,
		&maxAttempts,
		&quiz.CreatedAt,
		&quiz.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrQuizNotFound
		}
		log.Error("failed to get quiz", slog.String("error", err.Error()))
		return nil, err
	}
	quiz.MaxAttempts = fromNullInt(maxAttempts)

	questions, err := s.questions(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	quiz.Questions = questions
	return &quiz, nil
}

func (s *PostgresQuizStore) questions(ctx context.Context, quizID uuid.UUID) ([]domain.QuizQuestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quiz_id, position, prompt, question_type, options, correct_answer_ids, points
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY position ASC
	`, quizID)
	if err != nil {
		log.Error("failed to query quiz questions", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	questions := []domain.QuizQuestion{}
	for rows.Next() {
		var q domain.QuizQuestion
		var qType string
		var options, correct []byte
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Position, &q.Prompt, &qType, &options, &correct, &q.Points); err != nil {
			return nil, err
		}
		q.Type = domain.QuestionType(qType)
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options: %w", err)
		}
		if err := json.Unmarshal(correct, &q.CorrectAnswerIDs); err != nil {
			return nil, fmt.Errorf("failed to decode correct answers: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateResponse implements store.QuizStore.CreateResponse
func (s *PostgresQuizStore) CreateResponse(ctx context.Context, r *domain.QuizResponse) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quiz_responses (id, registration_id, quiz_id, answers, score, max_score,
			passed, attempt_number, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		r.ID,
		r.RegistrationID,
		r.QuizID,
		answers,
		r.Score,
		r.MaxScore,
		r.Passed,
		r.AttemptNumber,
		r.SubmittedAt,
	)
	if err != nil {
		log.Error("failed to create quiz response",
			slog.String("error", err.Error()),
			slog.String("registration_id", r.RegistrationID.String()),
			slog.Int("attempt_number", r.AttemptNumber))
		return MapError(err)
	}

	log.Info("quiz attempt recorded",
		slog.String("registration_id", r.RegistrationID.String()),
		slog.Int("attempt_number", r.AttemptNumber),
		slog.Bool("passed", r.Passed))
	return nil
}

// ListResponses implements store.QuizStore.ListResponses
func (s *PostgresQuizStore) ListResponses(
	ctx context.Context,
	registrationID, quizID uuid.UUID,
) ([]domain.QuizResponse, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registration_id, quiz_id, answers, score, max_score, passed,
			attempt_number, submitted_at
		FROM quiz_responses
		WHERE registration_id = $1 AND quiz_id = $2
		ORDER BY attempt_number ASC
	`, registrationID, quizID)
	if err != nil {
		log.Error("failed to query quiz responses", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	responses := []domain.QuizResponse{}
	for rows.Next() {
		var r domain.QuizResponse
		var answers []byte
		if err := rows.Scan(
			&r.ID,
			&r.RegistrationID,
			&r.QuizID,
			&answers,
			&r.Score,
			&r.MaxScore,
			&r.Passed,
			&r.AttemptNumber,
			&r.SubmittedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answers, &r.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// WithTx implements store.QuizStore.WithTx
func (s *PostgresQuizStore) WithTx(tx *sql.Tx) store.QuizStore {
	return &PostgresQuizStore{db: tx, logger: s.logger}
}
