package gemini

import "errors"

// ErrNoObjectives is returned when an event has no learning objectives to
// write questions for.
var ErrNoObjectives = errors.New("event has no learning objectives")
