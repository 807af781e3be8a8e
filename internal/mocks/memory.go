package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// Memory holds every entity table behind one mutex.
type Memory struct {
	mu sync.Mutex

	providers     map[uuid.UUID]domain.Provider
	events        map[uuid.UUID]domain.Event
	registrations map[uuid.UUID]domain.Registration
	attendance    map[uuid.UUID]domain.Attendance
	feedback      map[uuid.UUID]domain.Feedback
	quizzes       map[uuid.UUID]domain.Quiz
	responses     []domain.QuizResponse
	certificates  map[uuid.UUID]domain.Certificate

	// CreateCertificateHook, when set, runs before every CreateIfAbsent and
	// may return an error to simulate a store failure.
	CreateCertificateHook func(c *domain.Certificate) error
}

// NewMemory creates an empty in-memory database.
func NewMemory() *Memory {
	return &Memory{
		providers:     make(map[uuid.UUID]domain.Provider),
		events:        make(map[uuid.UUID]domain.Event),
		registrations: make(map[uuid.UUID]domain.Registration),
		attendance:    make(map[uuid.UUID]domain.Attendance),
		feedback:      make(map[uuid.UUID]domain.Feedback),
		quizzes:       make(map[uuid.UUID]domain.Quiz),
		certificates:  make(map[uuid.UUID]domain.Certificate),
	}
}

// Providers returns a ProviderStore over m.
func (m *Memory) Providers() store.ProviderStore { return &ProviderStore{m: m} }

// Events returns an EventStore over m.
func (m *Memory) Events() store.EventStore { return &EventStore{m: m} }

// Registrations returns a RegistrationStore over m.
func (m *Memory) Registrations() store.RegistrationStore { return &RegistrationStore{m: m} }

// Attendance returns an AttendanceStore over m.
func (m *Memory) Attendance() store.AttendanceStore { return &AttendanceStore{m: m} }

// Feedback returns a FeedbackStore over m.
func (m *Memory) Feedback() store.FeedbackStore { return &FeedbackStore{m: m} }

// Quizzes returns a QuizStore over m.
func (m *Memory) Quizzes() store.QuizStore { return &QuizStore{m: m} }

// Certificates returns a CertificateStore over m.
func (m *Memory) Certificates() store.CertificateStore { return &CertificateStore{m: m} }

// CertificateCount returns how many certificates are stored.
func (m *Memory) CertificateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.certificates)
}

// Transactor runs functions without a real transaction. Stores returned by
// Memory ignore the nil *sql.Tx passed to WithTx.
type Transactor struct {
	mu    sync.Mutex
	calls int

	// Err, when set, is returned instead of running fn.
	Err error
}

// InTx implements store.Transactor.
func (t *Transactor) InTx(ctx context.Context, fn store.TxFn) error {
	t.mu.Lock()
	t.calls++
	err := t.Err
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx, nil)
}

// Calls returns how many transactions were started.
func (t *Transactor) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

var _ store.Transactor = (*Transactor)(nil)

// ProviderStore is the in-memory store.ProviderStore
type ProviderStore struct{ m *Memory }

// Create implements store.ProviderStore
func (s *ProviderStore) Create(ctx context.Context, p *domain.Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.providers {
		if existing.ID == p.ID || existing.BACBProviderNumber == p.BACBProviderNumber {
			return store.ErrDuplicate
		}
	}
	s.m.providers[p.ID] = *p
	return nil
}

// GetByID implements store.ProviderStore
func (s *ProviderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.providers[id]
	if !ok {
		return nil, store.ErrProviderNotFound
	}
	return &p, nil
}

// Update implements store.ProviderStore
func (s *ProviderStore) Update(ctx context.Context, p *domain.Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.providers[p.ID]; !ok {
		return store.ErrProviderNotFound
	}
	s.m.providers[p.ID] = *p
	return nil
}

// ListExpired implements store.ProviderStore
func (s *ProviderStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.Provider, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []*domain.Provider{}
	for _, p := range s.m.providers {
		if p.Status == domain.ProviderStatusActive && !p.ExpiresAt.After(now) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// WithTx implements store.ProviderStore
func (s *ProviderStore) WithTx(*sql.Tx) store.ProviderStore { return s }

// EventStore is the in-memory store.EventStore
type EventStore struct{ m *Memory }

// Create implements store.EventStore
func (s *EventStore) Create(ctx context.Context, e *domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.providers[e.ProviderID]; !ok {
		return store.ErrInvalidEntity
	}
	if _, ok := s.m.events[e.ID]; ok {
		return store.ErrDuplicate
	}
	s.m.events[e.ID] = *e
	return nil
}

// GetByID implements store.EventStore
func (s *EventStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	return &e, nil
}

// GetForUpdate implements store.EventStore. Rows are not locked.
func (s *EventStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return s.GetByID(ctx, id)
}

// Update implements store.EventStore
func (s *EventStore) Update(ctx context.Context, e *domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.events[e.ID]; !ok {
		return store.ErrEventNotFound
	}
	s.m.events[e.ID] = *e
	return nil
}

// ListPublic implements store.EventStore
func (s *EventStore) ListPublic(ctx context.Context, f store.EventFilter) ([]*domain.Event, error) {
	out := s.filter(func(e domain.Event) bool {
		if !e.IsPubliclyVisible() {
			return false
		}
		if f.Category != "" && e.Category != f.Category {
			return false
		}
		if f.Modality != "" && e.Modality != f.Modality {
			return false
		}
		if f.ProviderID != uuid.Nil && e.ProviderID != f.ProviderID {
			return false
		}
		if f.StartsFrom != nil && e.StartDate.Before(*f.StartsFrom) {
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*domain.Event{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ListByProvider implements store.EventStore
func (s *EventStore) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Event, error) {
	return s.filter(func(e domain.Event) bool { return e.ProviderID == providerID }), nil
}

// ListByStatus implements store.EventStore
func (s *EventStore) ListByStatus(ctx context.Context, status domain.EventStatus) ([]*domain.Event, error) {
	return s.filter(func(e domain.Event) bool { return e.Status == status }), nil
}

// ListDueToBegin implements store.EventStore
func (s *EventStore) ListDueToBegin(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	return s.filter(func(e domain.Event) bool {
		return e.Status == domain.EventStatusApproved && !e.StartDate.After(now)
	}), nil
}

// ListDueToComplete implements store.EventStore
func (s *EventStore) ListDueToComplete(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	return s.filter(func(e domain.Event) bool {
		return e.Status == domain.EventStatusInProgress && !e.EffectiveEndDate().After(now)
	}), nil
}

func (s *EventStore) filter(keep func(domain.Event) bool) []*domain.Event {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []*domain.Event{}
	for _, e := range s.m.events {
		if keep(e) {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// WithTx implements store.EventStore
func (s *EventStore) WithTx(*sql.Tx) store.EventStore { return s }

// RegistrationStore is the in-memory store.RegistrationStore
type RegistrationStore struct{ m *Memory }

// Create implements store.RegistrationStore
func (s *RegistrationStore) Create(ctx context.Context, r *domain.Registration) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.events[r.EventID]; !ok {
		return store.ErrInvalidEntity
	}
	for _, existing := range s.m.registrations {
		if existing.ID == r.ID || (existing.EventID == r.EventID && existing.ParticipantID == r.ParticipantID) {
			return store.ErrRegistrationExists
		}
	}
	s.m.registrations[r.ID] = *r
	return nil
}

// GetByID implements store.RegistrationStore
func (s *RegistrationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.registrations[id]
	if !ok {
		return nil, store.ErrRegistrationNotFound
	}
	return &r, nil
}

// GetByEventAndParticipant implements store.RegistrationStore
func (s *RegistrationStore) GetByEventAndParticipant(
	ctx context.Context,
	eventID, participantID uuid.UUID,
) (*domain.Registration, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.registrations {
		if r.EventID == eventID && r.ParticipantID == participantID {
			return &r, nil
		}
	}
	return nil, store.ErrRegistrationNotFound
}

// Update implements store.RegistrationStore
func (s *RegistrationStore) Update(ctx context.Context, r *domain.Registration) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.registrations[r.ID]; !ok {
		return store.ErrRegistrationNotFound
	}
	s.m.registrations[r.ID] = *r
	return nil
}

// CountActiveByEvent implements store.RegistrationStore
func (s *RegistrationStore) CountActiveByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n := 0
	for _, r := range s.m.registrations {
		if r.EventID == eventID && !r.Cancelled {
			n++
		}
	}
	return n, nil
}

// ListByParticipant implements store.RegistrationStore
func (s *RegistrationStore) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*domain.Registration, error) {
	return s.filter(func(r domain.Registration) bool { return r.ParticipantID == participantID }), nil
}

// ListByEvent implements store.RegistrationStore
func (s *RegistrationStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Registration, error) {
	return s.filter(func(r domain.Registration) bool { return r.EventID == eventID }), nil
}

func (s *RegistrationStore) filter(keep func(domain.Registration) bool) []*domain.Registration {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []*domain.Registration{}
	for _, r := range s.m.registrations {
		if keep(r) {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out
}

// WithTx implements store.RegistrationStore
func (s *RegistrationStore) WithTx(*sql.Tx) store.RegistrationStore { return s }

// AttendanceStore is the in-memory store.AttendanceStore
type AttendanceStore struct{ m *Memory }

// Get implements store.AttendanceStore
func (s *AttendanceStore) Get(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.attendance[registrationID]
	if !ok {
		return nil, store.ErrAttendanceNotFound
	}
	return &a, nil
}

// GetForUpdate implements store.AttendanceStore. Rows are not locked.
func (s *AttendanceStore) GetForUpdate(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error) {
	return s.Get(ctx, registrationID)
}

// CreateIfAbsent implements store.AttendanceStore
func (s *AttendanceStore) CreateIfAbsent(ctx context.Context, a *domain.Attendance) error {
	return s.write(a, false)
}

// Upsert implements store.AttendanceStore
func (s *AttendanceStore) Upsert(ctx context.Context, a *domain.Attendance) error {
	return s.write(a, true)
}

func (s *AttendanceStore) write(a *domain.Attendance, merge bool) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.registrations[a.RegistrationID]; !ok {
		return store.ErrInvalidEntity
	}
	stored, ok := s.m.attendance[a.RegistrationID]
	if !ok {
		s.m.attendance[a.RegistrationID] = *a
		return nil
	}
	if merge {
		merged := *a
		merged.Merge(&stored)
		s.m.attendance[a.RegistrationID] = merged
	}
	return nil
}

// WithTx implements store.AttendanceStore
func (s *AttendanceStore) WithTx(*sql.Tx) store.AttendanceStore { return s }

// FeedbackStore is the in-memory store.FeedbackStore
type FeedbackStore struct{ m *Memory }

// Create implements store.FeedbackStore
func (s *FeedbackStore) Create(ctx context.Context, f *domain.Feedback) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.registrations[f.RegistrationID]; !ok {
		return store.ErrInvalidEntity
	}
	if _, ok := s.m.feedback[f.RegistrationID]; ok {
		return store.ErrFeedbackExists
	}
	s.m.feedback[f.RegistrationID] = *f
	return nil
}

// GetByRegistrationID implements store.FeedbackStore
func (s *FeedbackStore) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*domain.Feedback, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	f, ok := s.m.feedback[registrationID]
	if !ok {
		return nil, store.ErrFeedbackNotFound
	}
	return &f, nil
}

// ListByEvent implements store.FeedbackStore
func (s *FeedbackStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Feedback, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []domain.Feedback{}
	for regID, f := range s.m.feedback {
		if r, ok := s.m.registrations[regID]; ok && r.EventID == eventID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// WithTx implements store.FeedbackStore
func (s *FeedbackStore) WithTx(*sql.Tx) store.FeedbackStore { return s }

// QuizStore is the in-memory store.QuizStore
type QuizStore struct{ m *Memory }

// Create implements store.QuizStore
func (s *QuizStore) Create(ctx context.Context, q *domain.Quiz) error {
	if err := q.Validate(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.quizzes {
		if existing.ID == q.ID || existing.EventID == q.EventID {
			return store.ErrQuizExists
		}
	}
	cp := *q
	cp.Questions = append([]domain.QuizQuestion(nil), q.Questions...)
	s.m.quizzes[q.ID] = cp
	return nil
}

// GetByID implements store.QuizStore
func (s *QuizStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quiz, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.quizzes[id]
	if !ok {
		return nil, store.ErrQuizNotFound
	}
	q.Questions = append([]domain.QuizQuestion(nil), q.Questions...)
	return &q, nil
}

// GetByEventID implements store.QuizStore
func (s *QuizStore) GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Quiz, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, q := range s.m.quizzes {
		if q.EventID == eventID {
			q.Questions = append([]domain.QuizQuestion(nil), q.Questions...)
			return &q, nil
		}
	}
	return nil, store.ErrQuizNotFound
}

// CreateResponse implements store.QuizStore
func (s *QuizStore) CreateResponse(ctx context.Context, r *domain.QuizResponse) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.responses {
		if existing.RegistrationID == r.RegistrationID && existing.QuizID == r.QuizID &&
			existing.AttemptNumber == r.AttemptNumber {
			return store.ErrDuplicate
		}
	}
	s.m.responses = append(s.m.responses, *r)
	return nil
}

// ListResponses implements store.QuizStore
func (s *QuizStore) ListResponses(ctx context.Context, registrationID, quizID uuid.UUID) ([]domain.QuizResponse, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []domain.QuizResponse{}
	for _, r := range s.m.responses {
		if r.RegistrationID == registrationID && r.QuizID == quizID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

// WithTx implements store.QuizStore
func (s *QuizStore) WithTx(*sql.Tx) store.QuizStore { return s }

// CertificateStore is the in-memory store.CertificateStore
type CertificateStore struct{ m *Memory }

// CreateIfAbsent implements store.CertificateStore. A conflict on either
// the registration or the number reports false, like ON CONFLICT DO NOTHING.
func (s *CertificateStore) CreateIfAbsent(ctx context.Context, c *domain.Certificate) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.CreateCertificateHook != nil {
		if err := s.m.CreateCertificateHook(c); err != nil {
			return false, err
		}
	}
	for _, existing := range s.m.certificates {
		if existing.ID == c.ID || existing.RegistrationID == c.RegistrationID ||
			existing.CertificateNumber == c.CertificateNumber {
			return false, nil
		}
	}
	s.m.certificates[c.ID] = *c
	return true, nil
}

// GetByID implements store.CertificateStore
func (s *CertificateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Certificate, error) {
	return s.find(func(c domain.Certificate) bool { return c.ID == id })
}

// GetByRegistrationID implements store.CertificateStore
func (s *CertificateStore) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*domain.Certificate, error) {
	return s.find(func(c domain.Certificate) bool { return c.RegistrationID == registrationID })
}

// GetByNumber implements store.CertificateStore
func (s *CertificateStore) GetByNumber(ctx context.Context, number string) (*domain.Certificate, error) {
	return s.find(func(c domain.Certificate) bool { return c.CertificateNumber == number })
}

func (s *CertificateStore) find(match func(domain.Certificate) bool) (*domain.Certificate, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.certificates {
		if match(c) {
			return &c, nil
		}
	}
	return nil, store.ErrCertificateNotFound
}

// ListByParticipant implements store.CertificateStore
func (s *CertificateStore) ListByParticipant(
	ctx context.Context,
	participantID uuid.UUID,
	eventID *uuid.UUID,
) ([]*domain.Certificate, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []*domain.Certificate{}
	for _, c := range s.m.certificates {
		if c.ParticipantID != participantID {
			continue
		}
		if eventID != nil && c.EventID != *eventID {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

// Revoke implements store.CertificateStore
func (s *CertificateStore) Revoke(ctx context.Context, c *domain.Certificate) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	existing, ok := s.m.certificates[c.ID]
	if !ok {
		return store.ErrCertificateNotFound
	}
	existing.Status = c.Status
	existing.RevokedAt = c.RevokedAt
	existing.RevocationReason = c.RevocationReason
	existing.RevokedBy = c.RevokedBy
	s.m.certificates[c.ID] = existing
	return nil
}

// ClaimNotification implements store.CertificateStore
func (s *CertificateStore) ClaimNotification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.certificates[id]
	if !ok || c.NotifiedAt != nil {
		return false, nil
	}
	at = at.UTC()
	c.NotifiedAt = &at
	s.m.certificates[id] = c
	return true, nil
}

// ReleaseNotification implements store.CertificateStore
func (s *CertificateStore) ReleaseNotification(ctx context.Context, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.certificates[id]
	if !ok {
		return store.ErrCertificateNotFound
	}
	c.NotifiedAt = nil
	s.m.certificates[id] = c
	return nil
}

// WithTx implements store.CertificateStore
func (s *CertificateStore) WithTx(*sql.Tx) store.CertificateStore { return s }

var (
	_ store.ProviderStore     = (*ProviderStore)(nil)
	_ store.EventStore        = (*EventStore)(nil)
	_ store.RegistrationStore = (*RegistrationStore)(nil)
	_ store.AttendanceStore   = (*AttendanceStore)(nil)
	_ store.FeedbackStore     = (*FeedbackStore)(nil)
	_ store.QuizStore         = (*QuizStore)(nil)
	_ store.CertificateStore  = (*CertificateStore)(nil)
)
