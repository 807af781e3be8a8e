package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/config"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/generation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels replays queued responses and errors.
type fakeModels struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	lastModel string
	lastCfg   *genai.GenerateContentConfig
	prompt    string
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.lastModel, f.lastCfg = model, cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, errors.New("unexpected call")
}

func jsonResponse(t *testing.T, v any) *genai.GenerateContentResponse {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: string(body)}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func goodDraft() draftResponse {
	return draftResponse{Questions: []draftQuestion{
		{
			Prompt:       "Which response best avoids a dual relationship?",
			QuestionType: "multiple_choice",
			Options: []draftOption{
				{ID: "a", Text: "Decline the gift and explain the code"},
				{ID: "b", Text: "Accept the gift privately"},
				{ID: "c", Text: "Ask a colleague to accept it"},
				{ID: "d", Text: "Ignore the offer"},
			},
			CorrectAnswerIDs: []string{"a"},
		},
		{
			Prompt:           "Supervisors may bill for supervision they did not provide.",
			QuestionType:     "true_false",
			Options:          []draftOption{{ID: "true", Text: "True"}, {ID: "false", Text: "False"}},
			CorrectAnswerIDs: []string{"false"},
		},
	}}
}

func testEvent() *domain.Event {
	return &domain.Event{
		ID:                 uuid.New(),
		Title:              "Ethics in Practice",
		Category:           domain.CECategoryEthics,
		TotalCEUs:          1.0,
		LearningObjectives: []string{"Identify dual relationships", "  ", "Apply code 2.0"},
	}
}

func newTestDrafter(models contentGenerator, maxRetries int) *QuizDrafter {
	d := newQuizDrafter(models, config.LLMConfig{ModelName: "gemini-2.0-flash", MaxRetries: maxRetries},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.baseDelay = time.Millisecond
	return d
}

func TestNewQuizDrafter_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewQuizDrafter(context.Background(), config.LLMConfig{ModelName: "m"}, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewQuizDrafter(context.Background(), config.LLMConfig{GeminiAPIKey: "key"}, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestDraftQuestions(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{jsonResponse(t, goodDraft())}}
	d := newTestDrafter(models, 0)

	questions, err := d.DraftQuestions(context.Background(), testEvent(), 2)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, domain.QuestionTypeMultipleChoice, questions[0].Type)
	assert.Equal(t, []string{"false"}, questions[1].CorrectAnswerIDs)
	assert.Equal(t, 1, questions[1].Points)

	assert.Equal(t, "gemini-2.0-flash", models.lastModel)
	assert.Equal(t, "application/json", models.lastCfg.ResponseMIMEType)
	require.NotNil(t, models.lastCfg.ResponseSchema)
	assert.Contains(t, models.prompt, "- Identify dual relationships")
	assert.Contains(t, models.prompt, "Write exactly 2 questions")
	assert.NotContains(t, models.prompt, "-   ")
}

func TestDraftQuestions_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	models := &fakeModels{
		errs:      []error{errors.New("503 unavailable"), errors.New("503 unavailable"), nil},
		responses: []*genai.GenerateContentResponse{nil, nil, jsonResponse(t, goodDraft())},
	}
	d := newTestDrafter(models, 3)

	questions, err := d.DraftQuestions(context.Background(), testEvent(), 2)
	require.NoError(t, err)
	assert.Len(t, questions, 2)
	assert.Equal(t, 3, models.calls)
}

func TestDraftQuestions_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	boom := errors.New("503 unavailable")
	models := &fakeModels{errs: []error{boom, boom, boom}}
	d := newTestDrafter(models, 2)

	_, err := d.DraftQuestions(context.Background(), testEvent(), 2)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.True(t, generation.IsRetryable(err))
	assert.Equal(t, 3, models.calls)
}

func TestDraftQuestions_PermanentFailures(t *testing.T) {
	t.Parallel()

	invalid := goodDraft()
	invalid.Questions[0].CorrectAnswerIDs = []string{"z"}

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		wantErr error
	}{
		{
			name: "blocked by safety filters",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonSafety,
			}}},
			wantErr: generation.ErrContentBlocked,
		},
		{
			name:    "no candidates",
			resp:    &genai.GenerateContentResponse{},
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name: "not JSON",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: "Here are your questions!"}}},
			}}},
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "no questions",
			resp:    jsonResponse(t, draftResponse{}),
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "answer outside options",
			resp:    jsonResponse(t, invalid),
			wantErr: generation.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			models := &fakeModels{responses: []*genai.GenerateContentResponse{tt.resp}}
			d := newTestDrafter(models, 3)

			_, err := d.DraftQuestions(context.Background(), testEvent(), 2)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, models.calls, "permanent failures are not retried")
		})
	}
}

func TestDraftQuestions_NeedsObjectives(t *testing.T) {
	t.Parallel()

	event := testEvent()
	event.LearningObjectives = []string{" "}
	models := &fakeModels{}

	_, err := newTestDrafter(models, 0).DraftQuestions(context.Background(), event, 2)
	assert.ErrorIs(t, err, ErrNoObjectives)
	assert.Zero(t, models.calls)
}

func TestDraftQuestions_StopsOnCancel(t *testing.T) {
	t.Parallel()

	models := &fakeModels{errs: []error{errors.New("503"), errors.New("503")}}
	d := newTestDrafter(models, 5)
	d.baseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.DraftQuestions(ctx, testEvent(), 2)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.Equal(t, 1, models.calls)
}
