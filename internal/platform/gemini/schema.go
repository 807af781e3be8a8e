package gemini

import "google.golang.org/genai"

// draftResponse is the JSON shape requested from the model.
type draftResponse struct {
	Questions []draftQuestion `json:"questions"`
}

type draftQuestion struct {
	Prompt           string        `json:"prompt"`
	QuestionType     string        `json:"question_type"`
	Options          []draftOption `json:"options"`
	CorrectAnswerIDs []string      `json:"correct_answer_ids"`
}

type draftOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// responseSchema mirrors draftResponse for the API's structured output mode.
func responseSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	option := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":   str,
			"text": str,
		},
		Required: []string{"id", "text"},
	}
	question := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"prompt": str,
			"question_type": {
				Type: genai.TypeString,
				Enum: []string{"multiple_choice", "true_false", "multiple_select"},
			},
			"options":            {Type: genai.TypeArray, Items: option},
			"correct_answer_ids": {Type: genai.TypeArray, Items: str},
		},
		Required: []string{"prompt", "question_type", "options", "correct_answer_ids"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {Type: genai.TypeArray, Items: question},
		},
		Required: []string{"questions"},
	}
}
