package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rating bounds for every feedback question.
const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is the post-event survey for one registration. It is immutable
// once submitted.
type Feedback struct {
	ID               uuid.UUID `json:"id"`
	RegistrationID   uuid.UUID `json:"registration_id"`
	OverallRating    int       `json:"overall_rating"`
	InstructorRating int       `json:"instructor_rating"`
	ContentRating    int       `json:"content_rating"`
	RelevanceRating  int       `json:"relevance_rating"`
	ApplicationPlan  string    `json:"application_plan"`
	Comments         string    `json:"comments,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// NewFeedback creates a feedback record, reporting every invalid field.
func NewFeedback(
	registrationID uuid.UUID,
	overall, instructor, content, relevance int,
	applicationPlan, comments string,
	now time.Time,
) (*Feedback, error) {
	f := &Feedback{
		ID:               uuid.New(),
		RegistrationID:   registrationID,
		OverallRating:    overall,
		InstructorRating: instructor,
		ContentRating:    content,
		RelevanceRating:  relevance,
		ApplicationPlan:  strings.TrimSpace(applicationPlan),
		Comments:         strings.TrimSpace(comments),
		SubmittedAt:      now.UTC(),
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks every feedback field.
func (f *Feedback) Validate() error {
	v := &ValidationError{Entity: "feedback"}
	if f.RegistrationID == uuid.Nil {
		v.Add("registration_id", "is required")
	}
	ratings := []struct {
		field string
		value int
	}{
		{"overall_rating", f.OverallRating},
		{"instructor_rating", f.InstructorRating},
		{"content_rating", f.ContentRating},
		{"relevance_rating", f.RelevanceRating},
	}
	for _, r := range ratings {
		if r.value < MinRating || r.value > MaxRating {
			v.Add(r.field, "must be between 1 and 5")
		}
	}
	if f.ApplicationPlan == "" {
		v.Add("application_plan", "is required")
	}
	return v.OrNil()
}

// FeedbackSummary aggregates the feedback submitted for one event.
type FeedbackSummary struct {
	EventID           uuid.UUID `json:"event_id"`
	Count             int       `json:"count"`
	AverageOverall    float64   `json:"average_overall"`
	AverageInstructor float64   `json:"average_instructor"`
	AverageContent    float64   `json:"average_content"`
	AverageRelevance  float64   `json:"average_relevance"`
}

// SummarizeFeedback averages the ratings in items.
func SummarizeFeedback(eventID uuid.UUID, items []Feedback) FeedbackSummary {
	s := FeedbackSummary{EventID: eventID, Count: len(items)}
	if len(items) == 0 {
		return s
	}
	var overall, instructor, content, relevance int
	for _, f := range items {
		overall += f.OverallRating
		instructor += f.InstructorRating
		content += f.ContentRating
		relevance += f.RelevanceRating
	}
	n := float64(len(items))
	s.AverageOverall = float64(overall) / n
	s.AverageInstructor = float64(instructor) / n
	s.AverageContent = float64(content) / n
	s.AverageRelevance = float64(relevance) / n
	return s
}
