package domain

import "math"

const (
	// minutesPerHalfCEU is the instructional time that earns 0.5 CEU.
	minutesPerHalfCEU = 25

	// questionsPerHalfCEU is how many quiz questions each 0.5 CEU requires.
	questionsPerHalfCEU = 3

	// minQuizQuestions is the floor for any quiz that gates a certificate.
	minQuizQuestions = 3
)

// CEUsForMinutes converts instructional minutes into CEUs, rounding down to
// the nearest half unit.
func CEUsForMinutes(minutes int) float64 {
	if minutes <= 0 {
		return 0
	}
	return float64(minutes/minutesPerHalfCEU) * 0.5
}

// MinimumQuizQuestions returns how many questions a quiz for an event worth
// ceus must have.
func MinimumQuizQuestions(ceus float64) int {
	if ceus <= 0 {
		return minQuizQuestions
	}
	// Round before ceiling so 1.5/0.5 does not become 3.0000000001.
	halves := math.Ceil(math.Round(ceus/0.5*1e6) / 1e6)
	n := int(halves) * questionsPerHalfCEU
	if n < minQuizQuestions {
		return minQuizQuestions
	}
	return n
}
