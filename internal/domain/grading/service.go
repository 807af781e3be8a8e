// Package grading scores quiz attempts against the answer key. Grading is a
// pure computation: it never mutates the quiz and always returns the same
// result for the same inputs.
package grading

import (
	"errors"
	"fmt"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrNilQuiz         = errors.New("quiz cannot be nil")
	ErrUnknownQuestion = errors.New("answer references a question that is not on the quiz")
)

// Result is the outcome of grading one attempt.
type Result struct {
	Score    int  `json:"score"`
	MaxScore int  `json:"max_score"`
	Passed   bool `json:"passed"`
}

// Service defines the interface for grading operations
type Service interface {
	// Grade scores answers against quiz. A question earns its points only
	// when the selected option set equals the correct set exactly.
	Grade(quiz *domain.Quiz, answers domain.Answers) (Result, error)
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new grading service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new grading service with custom parameters
func NewServiceWithParams(params *Params) Service {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultService{
		params: params,
	}
}

// Grade implements the Service interface
func (s *defaultService) Grade(quiz *domain.Quiz, answers domain.Answers) (Result, error) {
	if quiz == nil {
		return Result{}, ErrNilQuiz
	}
	if len(quiz.Questions) == 0 {
		return Result{}, domain.ErrQuizHasNoQuestions
	}

	known := make(map[uuid.UUID]bool, len(quiz.Questions))
	for _, q := range quiz.Questions {
		known[q.ID] = true
	}
	for questionID := range answers {
		if !known[questionID] {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
		}
	}

	result := Result{}
	for _, q := range quiz.Questions {
		result.MaxScore += q.Points
		if sameSet(answers[q.ID], q.CorrectAnswerIDs) {
			result.Score += q.Points
		}
	}
	result.Passed = passes(result.Score, result.MaxScore, quiz.Threshold(s.params.DefaultPassThreshold))

	return result, nil
}

// passes compares score/maxScore against threshold.
func passes(score, maxScore int, threshold float64) bool {
	if maxScore <= 0 {
		return false
	}
	return float64(score)/float64(maxScore) >= threshold
}

// sameSet reports whether selected and correct contain exactly the same ids,
// ignoring order and duplicates.
func sameSet(selected, correct []string) bool {
	want := make(map[string]bool, len(correct))
	for _, id := range correct {
		want[id] = true
	}
	got := make(map[string]bool, len(selected))
	for _, id := range selected {
		if !want[id] {
			return false
		}
		got[id] = true
	}
	return len(got) == len(want)
}
