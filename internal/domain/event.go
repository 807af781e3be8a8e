package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the approval and delivery state of an event
type EventStatus string

// Possible event status values
const (
	EventStatusDraft           EventStatus = "draft"
	EventStatusPendingApproval EventStatus = "pending_approval"
	EventStatusApproved        EventStatus = "approved"
	EventStatusRejected        EventStatus = "rejected"
	EventStatusInProgress      EventStatus = "in_progress"
	EventStatusCompleted       EventStatus = "completed"
	EventStatusArchived        EventStatus = "archived"
)

// CECategory is the accreditation category the CEUs count toward
type CECategory string

// Possible CE categories
const (
	CECategoryEthics      CECategory = "ethics"
	CECategorySupervision CECategory = "supervision"
	CECategoryTeaching    CECategory = "teaching"
	CECategoryLearning    CECategory = "learning"
)

// Modality is how an event is delivered
type Modality string

// Possible modalities
const (
	ModalityInPerson     Modality = "in_person"
	ModalitySynchronous  Modality = "synchronous"
	ModalityAsynchronous Modality = "asynchronous"
)

// allowedTransitions lists every legal status change.
var allowedTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:           {EventStatusPendingApproval},
	EventStatusPendingApproval: {EventStatusApproved, EventStatusRejected},
	EventStatusApproved:        {EventStatusInProgress},
	EventStatusInProgress:      {EventStatusCompleted},
	EventStatusCompleted:       {EventStatusArchived},
}

// Event is a trainable offering owned by a provider.
type Event struct {
	ID                              uuid.UUID   `json:"id"`
	ProviderID                      uuid.UUID   `json:"provider_id"`
	Title                           string      `json:"title"`
	Description                     string      `json:"description"`
	Category                        CECategory  `json:"ce_category"`
	Modality                        Modality    `json:"modality"`
	TotalCEUs                       float64     `json:"total_ceus"`
	StartDate                       time.Time   `json:"start_date"`
	EndDate                         *time.Time  `json:"end_date,omitempty"`
	MaxParticipants                 *int        `json:"max_participants,omitempty"`
	FeeCents                        int64       `json:"fee_cents"`
	Status                          EventStatus `json:"status"`
	InstructorID                    uuid.UUID   `json:"instructor_id"`
	InstructorName                  string      `json:"instructor_name"`
	LearningObjectives              []string    `json:"learning_objectives"`
	InstructorQualificationsSummary string      `json:"instructor_qualifications_summary"`
	ConflictsOfInterest             string      `json:"conflicts_of_interest,omitempty"`
	RejectionReason                 string      `json:"rejection_reason,omitempty"`
	ReviewedBy                      *uuid.UUID  `json:"reviewed_by,omitempty"`
	ReviewedAt                      *time.Time  `json:"reviewed_at,omitempty"`
	VerificationCodeHash            string      `json:"-"`
	CreatedAt                       time.Time   `json:"created_at"`
	UpdatedAt                       time.Time   `json:"updated_at"`
}

// NewEvent creates a draft event.
// Returns an error if the structural fields are invalid.
func NewEvent(
	providerID uuid.UUID,
	title string,
	category CECategory,
	modality Modality,
	totalCEUs float64,
	startDate time.Time,
) (*Event, error) {
	now := time.Now().UTC()
	e := &Event{
		ID:                 uuid.New(),
		ProviderID:         providerID,
		Title:              strings.TrimSpace(title),
		Category:           category,
		Modality:           modality,
		TotalCEUs:          totalCEUs,
		StartDate:          startDate.UTC(),
		Status:             EventStatusDraft,
		LearningObjectives: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the structural invariants that hold in every status.
func (e *Event) Validate() error {
	v := &ValidationError{Entity: "event"}
	if e.ID == uuid.Nil {
		v.Add("id", "is required")
	}
	if e.ProviderID == uuid.Nil {
		v.Add("provider_id", "is required")
	}
	if !isValidCECategory(e.Category) {
		v.Add("ce_category", "must be one of ethics, supervision, teaching, learning")
	}
	if !isValidModality(e.Modality) {
		v.Add("modality", "must be one of in_person, synchronous, asynchronous")
	}
	if e.TotalCEUs <= 0 {
		v.Add("total_ceus", "must be greater than zero")
	}
	if e.StartDate.IsZero() {
		v.Add("start_date", "is required")
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		v.Add("end_date", "must not be before start_date")
	}
	if e.MaxParticipants != nil && *e.MaxParticipants <= 0 {
		v.Add("max_participants", "must be greater than zero")
	}
	if e.FeeCents < 0 {
		v.Add("fee_cents", "must not be negative")
	}
	if !isValidEventStatus(e.Status) {
		v.Add("status", "is not a valid event status")
	}
	return v.OrNil()
}

// ValidateForSubmission checks the preconditions for leaving draft. Every
// violated field is reported. quizQuestions is the number of questions on the
// event's quiz, zero when it has none.
func (e *Event) ValidateForSubmission(now time.Time, quizQuestions int) error {
	v := &ValidationError{Entity: "event"}
	if strings.TrimSpace(e.Title) == "" {
		v.Add("title", "is required")
	}
	if countNonBlank(e.LearningObjectives) == 0 {
		v.Add("learning_objectives", "must contain at least one objective")
	}
	if strings.TrimSpace(e.InstructorQualificationsSummary) == "" {
		v.Add("instructor_qualifications_summary", "is required")
	}
	if e.TotalCEUs <= 0 {
		v.Add("total_ceus", "must be greater than zero")
	}
	if !e.StartDate.After(now) {
		v.Add("start_date", "must be in the future")
	}
	if e.Modality == ModalityAsynchronous {
		if required := MinimumQuizQuestions(e.TotalCEUs); quizQuestions < required {
			v.Add("quiz", fmt.Sprintf("asynchronous events need a quiz with at least %d questions", required))
		}
	}
	return v.OrNil()
}

// EffectiveEndDate returns the end date, defaulting to the start date for
// single-session events.
func (e *Event) EffectiveEndDate() time.Time {
	if e.EndDate != nil {
		return *e.EndDate
	}
	return e.StartDate
}

// IsPubliclyVisible reports whether the event may be shown on the public
// registration surface.
func (e *Event) IsPubliclyVisible() bool {
	return IsPublicEventStatus(e.Status)
}

// HasRun reports whether the event has started delivery.
func (e *Event) HasRun() bool {
	return e.Status == EventStatusInProgress || e.Status == EventStatusCompleted
}

// CanTransitionTo reports whether the state machine allows moving to status.
func (e *Event) CanTransitionTo(status EventStatus) bool {
	for _, next := range allowedTransitions[e.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// TransitionTo moves the event to status, or returns a TransitionError.
func (e *Event) TransitionTo(status EventStatus, now time.Time) error {
	if !e.CanTransitionTo(status) {
		return &TransitionError{EventID: e.ID, From: e.Status, To: status}
	}
	e.Status = status
	e.UpdatedAt = now.UTC()
	return nil
}

// IsPublicEventStatus reports whether events in status are publicly visible.
func IsPublicEventStatus(status EventStatus) bool {
	switch status {
	case EventStatusApproved, EventStatusInProgress, EventStatusCompleted:
		return true
	default:
		return false
	}
}

// ParseEventStatus converts s into an EventStatus.
func ParseEventStatus(s string) (EventStatus, error) {
	status := EventStatus(s)
	if !isValidEventStatus(status) {
		return "", NewValidationError("status", "is not a valid event status")
	}
	return status, nil
}

// ParseCECategory converts s into a CECategory.
func ParseCECategory(s string) (CECategory, error) {
	c := CECategory(s)
	if !isValidCECategory(c) {
		return "", NewValidationError("ce_category", "must be one of ethics, supervision, teaching, learning")
	}
	return c, nil
}

// ParseModality converts s into a Modality.
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !isValidModality(m) {
		return "", NewValidationError("modality", "must be one of in_person, synchronous, asynchronous")
	}
	return m, nil
}

func isValidEventStatus(status EventStatus) bool {
	switch status {
	case EventStatusDraft, EventStatusPendingApproval, EventStatusApproved, EventStatusRejected,
		EventStatusInProgress, EventStatusCompleted, EventStatusArchived:
		return true
	default:
		return false
	}
}

func isValidCECategory(c CECategory) bool {
	switch c {
	case CECategoryEthics, CECategorySupervision, CECategoryTeaching, CECategoryLearning:
		return true
	default:
		return false
	}
}

func isValidModality(m Modality) bool {
	switch m {
	case ModalityInPerson, ModalitySynchronous, ModalityAsynchronous:
		return true
	default:
		return false
	}
}

func countNonBlank(values []string) int {
	n := 0
	for _, s := range values {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
