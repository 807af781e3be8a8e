package eligibility

import (
	"fmt"
	"strings"

	"github.com/behaviorschool/ceu-api/internal/domain"
)

// AttemptPolicy selects which quiz attempt decides the quiz criterion when a
// participant has several
type AttemptPolicy string

// Supported attempt policies
const (
	// AttemptPolicyBest uses the highest scoring attempt.
	AttemptPolicyBest AttemptPolicy = "best"
	// AttemptPolicyLatest uses the attempt with the highest attempt number.
	AttemptPolicyLatest AttemptPolicy = "latest"
	// AttemptPolicyAnyPassed is satisfied by any attempt marked passed.
	AttemptPolicyAnyPassed AttemptPolicy = "any_passed"
)

// ParseAttemptPolicy converts a configuration value into an AttemptPolicy.
// An empty string selects AttemptPolicyBest.
func ParseAttemptPolicy(s string) (AttemptPolicy, error) {
	switch p := AttemptPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AttemptPolicyBest, nil
	case AttemptPolicyBest, AttemptPolicyLatest, AttemptPolicyAnyPassed:
		return p, nil
	default:
		return "", fmt.Errorf("unknown attempt policy %q", s)
	}
}

// SelectAttempt returns the attempt that decides the quiz criterion under
// policy, or nil when there are no attempts.
func SelectAttempt(policy AttemptPolicy, responses []domain.QuizResponse) *domain.QuizResponse {
	if len(responses) == 0 {
		return nil
	}

	var selected *domain.QuizResponse
	for i := range responses {
		r := &responses[i]
		if selected == nil {
			selected = r
			continue
		}
		switch policy {
		case AttemptPolicyLatest:
			if r.AttemptNumber > selected.AttemptNumber {
				selected = r
			}
		case AttemptPolicyAnyPassed:
			if r.Passed && (!selected.Passed || r.AttemptNumber < selected.AttemptNumber) {
				selected = r
			}
		default:
			// Best: highest ratio, then passed, then earliest attempt.
			switch {
			case r.Ratio() > selected.Ratio():
				selected = r
			case r.Ratio() == selected.Ratio() && r.Passed && !selected.Passed:
				selected = r
			case r.Ratio() == selected.Ratio() && r.Passed == selected.Passed &&
				r.AttemptNumber < selected.AttemptNumber:
				selected = r
			}
		}
	}
	return selected
}
