package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

const (
	eventColumns = `id, provider_id, title, description, ce_category, modality, total_ceus,
	start_date, end_date, max_participants, fee_cents, status, instructor_id, instructor_name,
	learning_objectives, instructor_qualifications_summary, conflicts_of_interest,
	rejection_reason, reviewed_by, reviewed_at, verification_code_hash, created_at, updated_at`

	defaultEventPageSize = 50
	maxEventPageSize     = 200
)

// PostgresEventStore implements the store.EventStore interface
// using a PostgreSQL database as the storage backend.
type PostgresEventStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEventStore creates a new PostgreSQL implementation of the EventStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresEventStore(db store.DBTX, logger *slog.Logger) *PostgresEventStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEventStore{
		db:     db,
		logger: logger.With(slog.String("component", "event_store")),
	}
}

var _ store.EventStore = (*PostgresEventStore)(nil)

// Create implements store.EventStore.Create
// Returns store.ErrInvalidEntity if the provider does not exist.
func (s *PostgresEventStore) Create(ctx context.Context, event *domain.Event) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := event.Validate(); err != nil {
		log.Warn("event validation failed during create",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return err
	}

	objectives, err := json.Marshal(nonNilStrings(event.LearningObjectives))
	if err != nil {
		return fmt.Errorf("failed to encode learning objectives: %w", err)
	}

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.ProviderID,
		event.Title,
		event.Description,
		event.Category,
		event.Modality,
		event.TotalCEUs,
		event.StartDate,
		toNullTime(event.EndDate),
		toNullInt(event.MaxParticipants),
		event.FeeCents,
		event.Status,
		uuidOrNull(event.InstructorID),
		event.InstructorName,
		objectives,
		event.InstructorQualificationsSummary,
		event.ConflictsOfInterest,
		event.RejectionReason,
		toNullUUID(event.ReviewedBy),
		toNullTime(event.ReviewedAt),
		event.VerificationCodeHash,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("event references unknown provider",
				slog.String("event_id", event.ID.String()),
				slog.String("provider_id", event.ProviderID.String()))
			return fmt.Errorf("%w: provider with ID %s not found", store.ErrInvalidEntity, event.ProviderID)
		}
		log.Error("failed to create event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return MapError(err)
	}

	log.Info("event created",
		slog.String("event_id", event.ID.String()),
		slog.String("provider_id", event.ProviderID.String()))
	return nil
}

// GetByID implements store.EventStore.GetByID
func (s *PostgresEventStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return s.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// GetForUpdate implements store.EventStore.GetForUpdate
func (s *PostgresEventStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return s.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresEventStore) get(ctx context.Context, query string, id uuid.UUID) (*domain.Event, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("event not found", slog.String("event_id", id.String()))
			return nil, store.ErrEventNotFound
		}
		log.Error("failed to get event",
			slog.String("error", err.Error()),
			slog.String("event_id", id.String()))
		return nil, err
	}
	return event, nil
}

// Update implements store.EventStore.Update
func (s *PostgresEventStore) Update(ctx context.Context, event *domain.Event) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := event.Validate(); err != nil {
		log.Warn("event validation failed during update",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return err
	}

	objectives, err := json.Marshal(nonNilStrings(event.LearningObjectives))
	if err != nil {
		return fmt.Errorf("failed to encode learning objectives: %w", err)
	}

	query := `
		UPDATE events
		SET title = $1, description = $2, ce_category = $3, modality = $4, total_ceus = $5,
			start_date = $6, end_date = $7, max_participants = $8, fee_cents = $9, status = $10,
			instructor_id = $11, instructor_name = $12, learning_objectives = $13,
			instructor_qualifications_summary = $14, conflicts_of_interest = $15,
			rejection_reason = $16, reviewed_by = $17, reviewed_at = $18,
			verification_code_hash = $19, updated_at = $20
		WHERE id = $21
	`
	result, err := s.db.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.Category,
		event.Modality,
		event.TotalCEUs,
		event.StartDate,
		toNullTime(event.EndDate),
		toNullInt(event.MaxParticipants),
		event.FeeCents,
		event.Status,
		uuidOrNull(event.InstructorID),
		event.InstructorName,
		objectives,
		event.InstructorQualificationsSummary,
		event.ConflictsOfInterest,
		event.RejectionReason,
		toNullUUID(event.ReviewedBy),
		toNullTime(event.ReviewedAt),
		event.VerificationCodeHash,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		log.Error("failed to update event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrEventNotFound); err != nil {
		return err
	}

	log.Debug("event updated",
		slog.String("event_id", event.ID.String()),
		slog.String("status", string(event.Status)))
	return nil
}

// ListPublic implements store.EventStore.ListPublic
func (s *PostgresEventStore) ListPublic(ctx context.Context, filter store.EventFilter) ([]*domain.Event, error) {
	conds := []string{"status IN ($1, $2, $3)"}
	args := []any{domain.EventStatusApproved, domain.EventStatusInProgress, domain.EventStatusCompleted}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Category != "" {
		add("ce_category = $%d", filter.Category)
	}
	if filter.Modality != "" {
		add("modality = $%d", filter.Modality)
	}
	if filter.ProviderID != uuid.Nil {
		add("provider_id = $%d", filter.ProviderID)
	}
	if filter.StartsFrom != nil {
		add("start_date >= $%d", filter.StartsFrom.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventPageSize
	}
	if limit > maxEventPageSize {
		limit = maxEventPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		WHERE %s
		ORDER BY start_date ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, eventColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	return s.list(ctx, query, args...)
}

// ListByProvider implements store.EventStore.ListByProvider
func (s *PostgresEventStore) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE provider_id = $1 ORDER BY created_at DESC`
	return s.list(ctx, query, providerID)
}

// ListByStatus implements store.EventStore.ListByStatus
func (s *PostgresEventStore) ListByStatus(ctx context.Context, status domain.EventStatus) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE status = $1 ORDER BY created_at ASC`
	return s.list(ctx, query, status)
}

// ListDueToBegin implements store.EventStore.ListDueToBegin
func (s *PostgresEventStore) ListDueToBegin(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = $1 AND start_date <= $2
		ORDER BY start_date ASC
	`
	return s.list(ctx, query, domain.EventStatusApproved, now.UTC())
}

// ListDueToComplete implements store.EventStore.ListDueToComplete
func (s *PostgresEventStore) ListDueToComplete(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = $1 AND COALESCE(end_date, start_date) <= $2
		ORDER BY start_date ASC
	`
	return s.list(ctx, query, domain.EventStatusInProgress, now.UTC())
}

func (s *PostgresEventStore) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query events", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	events := []*domain.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			log.Error("failed to scan event row", slog.String("error", err.Error()))
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning event rows", slog.String("error", err.Error()))
		return nil, err
	}
	return events, nil
}

// WithTx implements store.EventStore.WithTx
func (s *PostgresEventStore) WithTx(tx *sql.Tx) store.EventStore {
	return &PostgresEventStore{db: tx, logger: s.logger}
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		e            domain.Event
		category     string
		modality     string
		status       string
		endDate      sql.NullTime
		maxSeats     sql.NullInt64
		instructorID uuid.NullUUID
		objectives   []byte
		reviewedBy   uuid.NullUUID
		reviewedAt   sql.NullTime
	)
	if err := row.Scan(
		&e.ID,
		&e.ProviderID,
		&e.Title,
		&e.Description,
		&category,
		&modality,
		&e.TotalCEUs,
		&e.StartDate,
		&endDate,
		&maxSeats,
		&e.FeeCents,
		&status,
		&instructorID,
		&e.InstructorName,
		&objectives,
		&e.InstructorQualificationsSummary,
		&e.ConflictsOfInterest,
		&e.RejectionReason,
		&reviewedBy,
		&reviewedAt,
		&e.VerificationCodeHash,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.Category = domain.CECategory(category)
	e.Modality = domain.Modality(modality)
	e.Status = domain.EventStatus(status)
	e.EndDate = fromNullTime(endDate)
	e.MaxParticipants = fromNullInt(maxSeats)
	e.InstructorID = instructorID.UUID
	e.ReviewedBy = fromNullUUID(reviewedBy)
	e.ReviewedAt = fromNullTime(reviewedAt)
	e.StartDate = e.StartDate.UTC()

	e.LearningObjectives = []string{}
	if len(objectives) > 0 {
		if err := json.Unmarshal(objectives, &e.LearningObjectives); err != nil {
			return nil, fmt.Errorf("failed to decode learning objectives: %w", err)
		}
	}
	return &e, nil
}

func uuidOrNull(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
