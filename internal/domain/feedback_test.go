package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeedback(t *testing.T) {
	t.Parallel()

	f, err := NewFeedback(uuid.New(), 5, 4, 4, 5, " Use the checklist with my RBTs ", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Use the checklist with my RBTs", f.ApplicationPlan)

	_, err = NewFeedback(uuid.New(), 0, 6, 3, 3, "   ", "", time.Now())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"overall_rating", "instructor_rating", "application_plan"}, verr.FieldNames())
}

func TestSummarizeFeedback(t *testing.T) {
	t.Parallel()

	eventID := uuid.New()
	empty := SummarizeFeedback(eventID, nil)
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, 0.0, empty.AverageOverall)

	s := SummarizeFeedback(eventID, []Feedback{
		{OverallRating: 5, InstructorRating: 4, ContentRating: 3, RelevanceRating: 2},
		{OverallRating: 4, InstructorRating: 4, ContentRating: 5, RelevanceRating: 4},
	})
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 4.5, s.AverageOverall, 1e-9)
	assert.InDelta(t, 4.0, s.AverageInstructor, 1e-9)
	assert.InDelta(t, 4.0, s.AverageContent, 1e-9)
	assert.InDelta(t, 3.0, s.AverageRelevance, 1e-9)
}
