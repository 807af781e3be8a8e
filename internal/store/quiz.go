package store

import (
	"context"
	"database/sql"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// QuizStore defines the interface for quiz and quiz attempt data access.
type QuizStore interface {
	// Create saves a quiz together with its questions.
	// Returns ErrQuizExists if the event already has a quiz.
	Create(ctx context.Context, quiz *domain.Quiz) error

	// GetByID retrieves a quiz and its questions.
	// Returns ErrQuizNotFound if the quiz does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Quiz, error)

	// GetByEventID retrieves the quiz attached to an event.
	// Returns ErrQuizNotFound if the event has no quiz.
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Quiz, error)

	// CreateResponse saves a graded attempt.
	// Returns ErrDuplicate if the attempt number is already taken.
	CreateResponse(ctx context.Context, response *domain.QuizResponse) error

	// ListResponses returns every attempt of a registration on a quiz,
	// ordered by attempt number.
	ListResponses(ctx context.Context, registrationID, quizID uuid.UUID) ([]domain.QuizResponse, error)

	// WithTx returns a new QuizStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) QuizStore
}
