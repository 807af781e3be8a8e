package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/behaviorschool/ceu-api/internal/config"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/generation"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"google.golang.org/genai"
)

const (
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 2
)

// contentGenerator is the part of the genai client the drafter uses.
// *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// QuizDrafter proposes quiz questions for an event's learning objectives.
type QuizDrafter struct {
	models     contentGenerator
	model      string
	maxRetries int
	baseDelay  time.Duration
	rng        *rand.Rand
	logger     *slog.Logger
}

// NewQuizDrafter creates a QuizDrafter backed by the Gemini API.
func NewQuizDrafter(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*QuizDrafter, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}
	return newQuizDrafter(client.Models, cfg, logger), nil
}

func newQuizDrafter(models contentGenerator, cfg config.LLMConfig, logger *slog.Logger) *QuizDrafter {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	delaySeconds := cfg.RetryDelaySeconds
	if delaySeconds < 1 {
		delaySeconds = defaultRetryDelaySeconds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizDrafter{
		models:     models,
		model:      cfg.ModelName,
		maxRetries: maxRetries,
		baseDelay:  time.Duration(delaySeconds) * time.Second,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger.With(slog.String("component", "gemini_drafter")),
	}
}

// DraftQuestions asks the model for count questions covering the event's
// learning objectives. Every returned question passes domain validation.
func (d *QuizDrafter) DraftQuestions(
	ctx context.Context,
	event *domain.Event,
	count int,
) ([]domain.QuizQuestion, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if event == nil {
		return nil, errors.New("event cannot be nil")
	}
	if count < 1 {
		count = 1
	}
	prompt, err := buildPrompt(event, count)
	if err != nil {
		return nil, err
	}

	log.Debug("drafting quiz questions",
		slog.String("event_id", event.ID.String()),
		slog.Int("count", count),
		slog.Int("prompt_length", len(prompt)))

	resp, err := d.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}
	questions, err := toQuestions(resp)
	if err != nil {
		return nil, err
	}

	log.Info("quiz questions drafted",
		slog.String("event_id", event.ID.String()),
		slog.Int("requested", count),
		slog.Int("drafted", len(questions)))
	return questions, nil
}

// generateWithRetry calls the API with exponential backoff and jitter.
// Blocked or unparseable responses are permanent and returned immediately.
func (d *QuizDrafter) generateWithRetry(ctx context.Context, prompt string) (*draftResponse, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	temperature := float32(0.4)
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
		Temperature:      &temperature,
	}

	for attempt := 0; ; attempt++ {
		resp, err := d.models.GenerateContent(ctx, d.model, genai.Text(prompt), genConfig)
		if err == nil {
			var parsed *draftResponse
			parsed, err = parseResponse(resp)
			if err == nil {
				return parsed, nil
			}
			log.Warn("unusable Gemini response", slog.String("error", err.Error()))
			return nil, err
		}

		log.Error("Gemini API call failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
		if attempt >= d.maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, d.maxRetries, err)
		}

		// delay = base * 2^attempt * [0.5, 1.0)
		backoff := float64(d.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + d.rng.Float64()*0.5))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

func parseResponse(resp *genai.GenerateContentResponse) (*draftResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var parsed draftResponse
	if err := json.Unmarshal([]byte(text.String()), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return &parsed, nil
}

// toQuestions converts drafted questions and checks them against the same
// rules a saved quiz must satisfy.
func toQuestions(resp *draftResponse) ([]domain.QuizQuestion, error) {
	if len(resp.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions in response", generation.ErrInvalidResponse)
	}

	out := make([]domain.QuizQuestion, 0, len(resp.Questions))
	for i, q := range resp.Questions {
		options := make([]domain.QuizOption, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, domain.QuizOption{ID: strings.TrimSpace(o.ID), Text: strings.TrimSpace(o.Text)})
		}
		out = append(out, domain.QuizQuestion{
			Position:         i + 1,
			Prompt:           strings.TrimSpace(q.Prompt),
			Type:             domain.QuestionType(q.QuestionType),
			Options:          options,
			CorrectAnswerIDs: q.CorrectAnswerIDs,
			Points:           1,
		})
	}

	if err := domain.ValidateQuestions(out); err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	return out, nil
}
