// Package eligibility decides whether a registration has earned a
// certificate. Every criterion is evaluated independently so that all unmet
// requirements are reported together.
package eligibility

import (
	"errors"

	"github.com/behaviorschool/ceu-api/internal/domain"
)

// Common errors
var (
	ErrNilRegistration = errors.New("registration cannot be nil")
	ErrNilEvent        = errors.New("event cannot be nil")
)

// Snapshot is the committed state of one registration at evaluation time.
// Attendance and Feedback are nil when nothing was recorded; Quiz is nil when
// the event has no quiz.
type Snapshot struct {
	Registration *domain.Registration
	Event        *domain.Event
	Attendance   *domain.Attendance
	Feedback     *domain.Feedback
	Quiz         *domain.Quiz
	Responses    []domain.QuizResponse
}

// Result is the eligibility decision. Reasons is empty, never nil, when
// Eligible is true.
type Result struct {
	Eligible bool                    `json:"eligible"`
	Reasons  []domain.UnmetCriterion `json:"reasons"`
}

// Err returns an *domain.EligibilityError carrying the reasons, or nil when
// eligible.
func (r Result) Err(s Snapshot) error {
	if r.Eligible {
		return nil
	}
	e := &domain.EligibilityError{Reasons: r.Reasons}
	if s.Registration != nil {
		e.RegistrationID = s.Registration.ID
	}
	return e
}

// Service evaluates eligibility snapshots
type Service interface {
	Evaluate(s Snapshot) (Result, error)
	Policy() AttemptPolicy
}

type defaultService struct {
	policy AttemptPolicy
}

// NewDefaultService creates an evaluator using the best-attempt policy.
func NewDefaultService() Service {
	return &defaultService{policy: AttemptPolicyBest}
}

// NewService creates an evaluator using policy.
func NewService(policy AttemptPolicy) (Service, error) {
	p, err := ParseAttemptPolicy(string(policy))
	if err != nil {
		return nil, err
	}
	return &defaultService{policy: p}, nil
}

// Policy returns the configured attempt policy.
func (s *defaultService) Policy() AttemptPolicy {
	return s.policy
}

// Evaluate implements Service. It never short-circuits.
func (s *defaultService) Evaluate(snap Snapshot) (Result, error) {
	if snap.Registration == nil {
		return Result{}, ErrNilRegistration
	}
	if snap.Event == nil {
		return Result{}, ErrNilEvent
	}

	reasons := make([]domain.UnmetCriterion, 0, 4)

	if snap.Registration.Cancelled {
		reasons = append(reasons, domain.CriterionRegistrationCancelled)
	}

	if !snap.Attendance.Satisfied(snap.Event.Modality) {
		reasons = append(reasons, domain.CriterionAttendanceUnconfirmed)
	}

	if snap.Feedback == nil {
		reasons = append(reasons, domain.CriterionFeedbackMissing)
	}

	if snap.Quiz != nil {
		attempt := SelectAttempt(s.policy, quizResponses(snap.Quiz, snap.Responses))
		if attempt == nil || !attempt.Passed {
			reasons = append(reasons, domain.CriterionQuizNotPassed)
		}
	}

	switch {
	case snap.Event.HasRun():
	case snap.Event.Status == domain.EventStatusArchived:
		reasons = append(reasons, domain.CriterionEventArchived)
	default:
		reasons = append(reasons, domain.CriterionEventNotStarted)
	}

	return Result{Eligible: len(reasons) == 0, Reasons: reasons}, nil
}

// quizResponses keeps only attempts made against quiz.
func quizResponses(quiz *domain.Quiz, responses []domain.QuizResponse) []domain.QuizResponse {
	out := make([]domain.QuizResponse, 0, len(responses))
	for _, r := range responses {
		if r.QuizID == quiz.ID {
			out = append(out, r)
		}
	}
	return out
}
