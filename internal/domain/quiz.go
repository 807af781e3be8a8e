package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionType determines how many options may be correct
type QuestionType string

// Possible question types
const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeMultipleSelect QuestionType = "multiple_select"
)

// DefaultPassThreshold is the fraction of points needed to pass when a quiz
// does not set its own threshold.
const DefaultPassThreshold = 0.8

// Quiz errors
var (
	ErrMaxAttemptsReached = errors.New("maximum quiz attempts reached")
	ErrQuizHasNoQuestions = errors.New("quiz has no questions")
)

// QuizOption is one selectable answer.
type QuizOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuizQuestion is one gradable question. CorrectAnswerIDs is a set; order is
// irrelevant.
type QuizQuestion struct {
	ID               uuid.UUID    `json:"id"`
	QuizID           uuid.UUID    `json:"quiz_id"`
	Position         int          `json:"position"`
	Prompt           string       `json:"prompt"`
	Type             QuestionType `json:"question_type"`
	Options          []QuizOption `json:"options"`
	CorrectAnswerIDs []string     `json:"correct_answer_ids"`
	Points           int          `json:"points"`
}

// Quiz is attached to at most one event.
type Quiz struct {
	ID            uuid.UUID      `json:"id"`
	EventID       uuid.UUID      `json:"event_id"`
	Title         string         `json:"title"`
	PassThreshold float64        `json:"pass_threshold"`
	MaxAttempts   *int           `json:"max_attempts,omitempty"`
	Questions     []QuizQuestion `json:"questions"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewQuiz creates a quiz for an event. Questions without points get one
// point, and each question is bound to the new quiz.
func NewQuiz(
	eventID uuid.UUID,
	title string,
	passThreshold float64,
	maxAttempts *int,
	questions []QuizQuestion,
	now time.Time,
) (*Quiz, error) {
	if passThreshold == 0 {
		passThreshold = DefaultPassThreshold
	}
	now = now.UTC()
	q := &Quiz{
		ID:            uuid.New(),
		EventID:       eventID,
		Title:         strings.TrimSpace(title),
		PassThreshold: passThreshold,
		MaxAttempts:   maxAttempts,
		Questions:     make([]QuizQuestion, len(questions)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, question := range questions {
		if question.ID == uuid.Nil {
			question.ID = uuid.New()
		}
		if question.Points == 0 {
			question.Points = 1
		}
		question.QuizID = q.ID
		question.Position = i
		q.Questions[i] = question
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks the quiz and every question, reporting all violations.
func (q *Quiz) Validate() error {
	v := &ValidationError{Entity: "quiz"}
	if q.ID == uuid.Nil {
		v.Add("id", "is required")
	}
	if q.EventID == uuid.Nil {
		v.Add("event_id", "is required")
	}
	if q.PassThreshold <= 0 || q.PassThreshold > 1 {
		v.Add("pass_threshold", "must be greater than 0 and at most 1")
	}
	if q.MaxAttempts != nil && *q.MaxAttempts < 1 {
		v.Add("max_attempts", "must be at least 1")
	}
	if len(q.Questions) == 0 {
		v.Add("questions", "must contain at least one question")
	}
	seen := make(map[uuid.UUID]bool, len(q.Questions))
	for i, question := range q.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		if seen[question.ID] {
			v.Add(prefix+".id", "is duplicated")
		}
		seen[question.ID] = true
		validateQuestion(v, prefix, question)
	}
	return v.OrNil()
}

// ValidateQuestions checks unsaved questions, such as drafts, against the
// rules a quiz enforces on each question.
func ValidateQuestions(questions []QuizQuestion) error {
	v := &ValidationError{Entity: "quiz"}
	if len(questions) == 0 {
		v.Add("questions", "must contain at least one question")
	}
	for i, question := range questions {
		validateQuestion(v, fmt.Sprintf("questions[%d]", i), question)
	}
	return v.OrNil()
}

func validateQuestion(v *ValidationError, prefix string, q QuizQuestion) {
	if strings.TrimSpace(q.Prompt) == "" {
		v.Add(prefix+".prompt", "is required")
	}
	if q.Points < 1 {
		v.Add(prefix+".points", "must be a positive integer")
	}

	optionIDs := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.ID == "" {
			v.Add(prefix+".options", "option ids must not be empty")
			continue
		}
		if optionIDs[o.ID] {
			v.Add(prefix+".options", fmt.Sprintf("option id %q is duplicated", o.ID))
		}
		optionIDs[o.ID] = true
	}

	correct := make(map[string]bool, len(q.CorrectAnswerIDs))
	for _, id := range q.CorrectAnswerIDs {
		if !optionIDs[id] {
			v.Add(prefix+".correct_answer_ids", fmt.Sprintf("%q is not one of the options", id))
		}
		correct[id] = true
	}

	switch q.Type {
	case QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			v.Add(prefix+".options", "multiple_choice needs at least 2 options")
		}
		if len(correct) != 1 {
			v.Add(prefix+".correct_answer_ids", "multiple_choice needs exactly 1 correct answer")
		}
	case QuestionTypeTrueFalse:
		if len(q.Options) != 2 {
			v.Add(prefix+".options", "true_false needs exactly 2 options")
		}
		if len(correct) != 1 {
			v.Add(prefix+".correct_answer_ids", "true_false needs exactly 1 correct answer")
		}
	case QuestionTypeMultipleSelect:
		if len(q.Options) < 2 {
			v.Add(prefix+".options", "multiple_select needs at least 2 options")
		}
		if len(correct) == 0 {
			v.Add(prefix+".correct_answer_ids", "multiple_select needs at least 1 correct answer")
		}
	default:
		v.Add(prefix+".question_type", "must be one of multiple_choice, true_false, multiple_select")
	}
}

// MaxScore is the sum of all question points.
func (q *Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Threshold returns the quiz's pass threshold, or fallback when unset.
func (q *Quiz) Threshold(fallback float64) float64 {
	if q.PassThreshold > 0 {
		return q.PassThreshold
	}
	return fallback
}

// AttemptsExhausted reports whether a participant with used attempts may not
// try again.
func (q *Quiz) AttemptsExhausted(used int) bool {
	return q.MaxAttempts != nil && used >= *q.MaxAttempts
}

// Answers maps a question id to the set of selected option ids.
type Answers map[uuid.UUID][]string

// QuizResponse is one graded attempt by a registration.
type QuizResponse struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	QuizID         uuid.UUID `json:"quiz_id"`
	Answers        Answers   `json:"answers"`
	Score          int       `json:"score"`
	MaxScore       int       `json:"max_score"`
	Passed         bool      `json:"passed"`
	AttemptNumber  int       `json:"attempt_number"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Ratio returns score divided by max score, zero for an empty quiz.
func (r *QuizResponse) Ratio() float64 {
	if r.MaxScore == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.MaxScore)
}
