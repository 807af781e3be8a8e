package gemini

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/behaviorschool/ceu-api/internal/domain"
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("quiz_prompt").Parse(promptSource))

// promptData represents the data passed to the prompt template
type promptData struct {
	Title       string
	Description string
	Category    string
	TotalCEUs   float64
	Objectives  []string
	Count       int
}

func buildPrompt(event *domain.Event, count int) (string, error) {
	objectives := make([]string, 0, len(event.LearningObjectives))
	for _, o := range event.LearningObjectives {
		if o = strings.TrimSpace(o); o != "" {
			objectives = append(objectives, o)
		}
	}
	if len(objectives) == 0 {
		return "", ErrNoObjectives
	}

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, promptData{
		Title:       event.Title,
		Description: event.Description,
		Category:    string(event.Category),
		TotalCEUs:   event.TotalCEUs,
		Objectives:  objectives,
		Count:       count,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
