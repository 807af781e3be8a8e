//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/postgres"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/behaviorschool/ceu-api/internal/testdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	provider     *domain.Provider
	event        *domain.Event
	registration *domain.Registration
}

func seed(t *testing.T, db store.DBTX) fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	provider, err := domain.NewProvider("Behavior School", "OP-01-"+uuid.NewString()[:8], "ops@example.com", now, 0)
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresProviderStore(db, nil).Create(ctx, provider))

	event, err := domain.NewEvent(provider.ID, "Ethics in Practice", domain.CECategoryEthics,
		domain.ModalityInPerson, 1.5, now.Add(48*time.Hour))
	require.NoError(t, err)
	event.LearningObjectives = []string{"Identify conflicts of interest"}
	event.InstructorName = "Dr. Rivera"
	require.NoError(t, postgres.NewPostgresEventStore(db, nil).Create(ctx, event))

	reg, err := domain.NewRegistration(event.ID, uuid.New(), "Ada Analyst", "1-23-4567", "ada@example.com", now)
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresRegistrationStore(db, nil).Create(ctx, reg))

	return fixture{provider: provider, event: event, registration: reg}
}

func TestEventStore_RoundTrip(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		f := seed(t, tx)
		events := postgres.NewPostgresEventStore(tx, nil)

		got, err := events.GetByID(ctx, f.event.ID)
		require.NoError(t, err)
		assert.Equal(t, f.event.Title, got.Title)
		assert.Equal(t, []string{"Identify conflicts of interest"}, got.LearningObjectives)
		assert.Equal(t, domain.EventStatusDraft, got.Status)

		require.NoError(t, got.TransitionTo(domain.EventStatusPendingApproval, time.Now()))
		require.NoError(t, events.Update(ctx, got))

		pending, err := events.ListByStatus(ctx, domain.EventStatusPendingApproval)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(pending))
		for _, e := range pending {
			ids = append(ids, e.ID)
		}
		assert.Contains(t, ids, f.event.ID)

		_, err = events.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrEventNotFound)
	})
}

func TestRegistrationStore_DuplicateParticipant(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		f := seed(t, tx)
		regs := postgres.NewPostgresRegistrationStore(tx, nil)

		dup, err := domain.NewRegistration(f.event.ID, f.registration.ParticipantID,
			"Ada Analyst", "", "ada@example.com", time.Now())
		require.NoError(t, err)
		assert.ErrorIs(t, regs.Create(ctx, dup), store.ErrRegistrationExists)

		count, err := regs.CountActiveByEvent(ctx, f.event.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestAttendanceStore_Upsert(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		f := seed(t, tx)
		attendance := postgres.NewPostgresAttendanceStore(tx, nil)

		_, err := attendance.Get(ctx, f.registration.ID)
		assert.ErrorIs(t, err, store.ErrAttendanceNotFound)

		a := domain.NewAttendance(f.registration.ID, time.Now())
		a.CheckIn(time.Now())
		require.NoError(t, attendance.Upsert(ctx, a))
		require.NoError(t, a.CheckOut(time.Now().Add(time.Hour)))
		require.NoError(t, attendance.Upsert(ctx, a))

		got, err := attendance.Get(ctx, f.registration.ID)
		require.NoError(t, err)
		assert.True(t, got.Confirmed)
		assert.NotNil(t, got.CheckOutAt)
	})
}

func TestAttendanceStore_UpsertNeverWithdrawsEvidence(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		f := seed(t, tx)
		attendance := postgres.NewPostgresAttendanceStore(tx, nil)
		now := time.Now().UTC().Truncate(time.Microsecond)

		require.NoError(t, attendance.CreateIfAbsent(ctx, domain.NewAttendance(f.registration.ID, now)))
		done := domain.NewAttendance(f.registration.ID, now)
		require.NoError(t, done.RecordProgress(100, now))
		require.NoError(t, attendance.Upsert(ctx, done))

		stale := domain.NewAttendance(f.registration.ID, now)
		require.NoError(t, stale.RecordProgress(40, now.Add(time.Minute)))
		require.NoError(t, attendance.Upsert(ctx, stale))
		require.NoError(t, attendance.CreateIfAbsent(ctx, domain.NewAttendance(f.registration.ID, now)))

		got, err := attendance.GetForUpdate(ctx, f.registration.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.CompletionPercentage)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, got.CompletedAt.Equal(now))
	})
}

func TestRecordProgress_ConcurrentWritersKeepMaximum(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	testdb.TruncateAll(t, db)
	t.Cleanup(func() { testdb.TruncateAll(t, db) })

	ctx := context.Background()
	f := seed(t, db)
	event, err := domain.NewEvent(f.provider.ID, "Self-paced Supervision", domain.CECategorySupervision,
		domain.ModalityAsynchronous, 2, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresEventStore(db, nil).Create(ctx, event))
	reg, err := domain.NewRegistration(event.ID, uuid.New(), "Ada Analyst", "1-23-4567", "ada@example.com", time.Now())
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresRegistrationStore(db, nil).Create(ctx, reg))

	stores := service.Stores{
		Providers:     postgres.NewPostgresProviderStore(db, nil),
		Events:        postgres.NewPostgresEventStore(db, nil),
		Registrations: postgres.NewPostgresRegistrationStore(db, nil),
		Attendance:    postgres.NewPostgresAttendanceStore(db, nil),
		Feedback:      postgres.NewPostgresFeedbackStore(db, nil),
		Quizzes:       postgres.NewPostgresQuizStore(db, nil),
		Certificates:  postgres.NewPostgresCertificateStore(db, nil),
	}
	svc, err := service.NewParticipationService(stores, store.NewDBTransactor(db), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordProgress(ctx, reg.ID, (i+1)*10)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := stores.Attendance.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.CompletionPercentage)
	assert.NotNil(t, got.CompletedAt)
}

func TestCertificateStore_ConcurrentCreateIfAbsent(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	testdb.TruncateAll(t, db)
	t.Cleanup(func() { testdb.TruncateAll(t, db) })

	f := seed(t, db)
	certs := postgres.NewPostgresCertificateStore(db, nil)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	results := make([]bool, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			number, err := domain.GenerateCertificateNumber("CE", time.Now())
			if err != nil {
				errs[i] = err
				return
			}
			cert, err := domain.NewCertificate(number, f.registration, f.event, f.provider, time.Now())
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = certs.CreateIfAbsent(ctx, cert)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		if results[i] {
			created++
		}
	}
	assert.Equal(t, 1, created)

	stored, err := certs.GetByRegistrationID(ctx, f.registration.ID)
	require.NoError(t, err)
	list, err := certs.ListByParticipant(ctx, f.registration.ParticipantID, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stored.CertificateNumber, list[0].CertificateNumber)

	claimed, err := certs.ClaimNotification(ctx, stored.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = certs.ClaimNotification(ctx, stored.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
}
