// Package gemini drafts quiz questions for an event using Google's Gemini
// API. It is an infrastructure adapter: the quiz service depends only on the
// QuizDrafter interface and never sees the genai types.
//
// Responses are requested as JSON matching a fixed schema, validated against
// the domain's question rules, and returned for a provider to review.
// Transient API failures are retried with exponential backoff and jitter.
package gemini
