package grading

import "github.com/behaviorschool/ceu-api/internal/domain"

// Params defines the configurable parameters for grading
type Params struct {
	// DefaultPassThreshold applies to quizzes that do not set their own
	// threshold. It is a fraction of the maximum score in (0, 1].
	DefaultPassThreshold float64
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		DefaultPassThreshold: domain.DefaultPassThreshold,
	}
}

// NewParams creates Params, falling back to defaults for unset or out of
// range values.
func NewParams(passThreshold float64) *Params {
	params := NewDefaultParams()
	if passThreshold > 0 && passThreshold <= 1 {
		params.DefaultPassThreshold = passThreshold
	}
	return params
}
