package service

import (
	"database/sql"
	"fmt"

	"github.com/behaviorschool/ceu-api/internal/store"
)

// Stores bundles the repositories the services read and write.
type Stores struct {
	Providers     store.ProviderStore
	Events        store.EventStore
	Registrations store.RegistrationStore
	Attendance    store.AttendanceStore
	Feedback      store.FeedbackStore
	Quizzes       store.QuizStore
	Certificates  store.CertificateStore
}

// Validate reports the first missing repository.
func (s Stores) Validate() error {
	switch {
	case s.Providers == nil:
		return fmt.Errorf("providers store cannot be nil")
	case s.Events == nil:
		return fmt.Errorf("events store cannot be nil")
	case s.Registrations == nil:
		return fmt.Errorf("registrations store cannot be nil")
	case s.Attendance == nil:
		return fmt.Errorf("attendance store cannot be nil")
	case s.Feedback == nil:
		return fmt.Errorf("feedback store cannot be nil")
	case s.Quizzes == nil:
		return fmt.Errorf("quizzes store cannot be nil")
	case s.Certificates == nil:
		return fmt.Errorf("certificates store cannot be nil")
	}
	return nil
}

// WithTx returns every repository bound to tx.
func (s Stores) WithTx(tx *sql.Tx) Stores {
	return Stores{
		Providers:     s.Providers.WithTx(tx),
		Events:        s.Events.WithTx(tx),
		Registrations: s.Registrations.WithTx(tx),
		Attendance:    s.Attendance.WithTx(tx),
		Feedback:      s.Feedback.WithTx(tx),
		Quizzes:       s.Quizzes.WithTx(tx),
		Certificates:  s.Certificates.WithTx(tx),
	}
}
