// Package domain contains the continuing-education entities (providers,
// events, registrations, attendance, feedback, quizzes and certificates),
// their invariants and the errors they report. It has no knowledge of
// storage or transport.
package domain
