// Package generation holds the errors shared by language model adapters that
// draft quiz questions. Drafts are suggestions for a provider to review; they
// never reach a participant without being saved through the quiz service.
package generation
