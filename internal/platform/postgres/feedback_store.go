package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

const feedbackColumns = `f.id, f.registration_id, f.overall_rating, f.instructor_rating,
	f.content_rating, f.relevance_rating, f.application_plan, f.comments, f.submitted_at`

// PostgresFeedbackStore implements the store.FeedbackStore interface
// using a PostgreSQL database as the storage backend.
type PostgresFeedbackStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFeedbackStore creates a new PostgreSQL implementation of the FeedbackStore interface.
func NewPostgresFeedbackStore(db store.DBTX, logger *slog.Logger) *PostgresFeedbackStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresFeedbackStore{
		db:     db,
		logger: logger.With(slog.String("component", "feedback_store")),
	}
}

var _ store.FeedbackStore = (*PostgresFeedbackStore)(nil)

// Create implements store.FeedbackStore.Create
func (s *PostgresFeedbackStore) Create(ctx context.Context, f *domain.Feedback) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := f.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO feedback (id, registration_id, overall_rating, instructor_rating,
			content_rating, relevance_rating, application_plan, comments, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		f.ID,
		f.RegistrationID,
		f.OverallRating,
		f.InstructorRating,
		f.ContentRating,
		f.RelevanceRating,
		f.ApplicationPlan,
		f.Comments,
		f.SubmittedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return MapUniqueViolation(err, store.ErrFeedbackExists)
		}
		log.Error("failed to create feedback",
			slog.String("error", err.Error()),
			slog.String("registration_id", f.RegistrationID.String()))
		return MapError(err)
	}

	log.Info("feedback submitted", slog.String("registration_id", f.RegistrationID.String()))
	return nil
}

// GetByRegistrationID implements store.FeedbackStore.GetByRegistrationID
func (s *PostgresFeedbackStore) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*domain.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback f WHERE f.registration_id = $1`
	f, err := scanFeedback(s.db.QueryRowContext(ctx, query, registrationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrFeedbackNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get feedback",
			slog.String("error", err.Error()),
			slog.String("registration_id", registrationID.String()))
		return nil, err
	}
	return f, nil
}

// ListByEvent implements store.FeedbackStore.ListByEvent
func (s *PostgresFeedbackStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Feedback, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + feedbackColumns + `
		FROM feedback f
		JOIN registrations r ON r.id = f.registration_id
		WHERE r.event_id = $1
		ORDER BY f.submitted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		log.Error("failed to query feedback", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	items := []domain.Feedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	return items, rows.Err()
}

// WithTx implements store.FeedbackStore.WithTx
func (s *PostgresFeedbackStore) WithTx(tx *sql.Tx) store.FeedbackStore {
	return &PostgresFeedbackStore{db: tx, logger: s.logger}
}

func scanFeedback(row rowScanner) (*domain.Feedback, error) {
	var f domain.Feedback
	if err := row.Scan(
		&f.ID,
		&f.RegistrationID,
		&f.OverallRating,
		&f.InstructorRating,
		&f.ContentRating,
		&f.RelevanceRating,
		&f.ApplicationPlan,
		&f.Comments,
		&f.SubmittedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}
