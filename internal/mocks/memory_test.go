package mocks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRegistration(t *testing.T, m *Memory) (*domain.Event, *domain.Registration) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	provider, err := domain.NewProvider("Behavior School", "OP-1", "ce@example.com", now, 0)
	require.NoError(t, err)
	require.NoError(t, m.Providers().Create(ctx, provider))

	event, err := domain.NewEvent(provider.ID, "Ethics", domain.CECategoryEthics, domain.ModalityInPerson, 1, now)
	require.NoError(t, err)
	require.NoError(t, m.Events().Create(ctx, event))

	reg, err := domain.NewRegistration(event.ID, uuid.New(), "Pat", "", "pat@example.com", now)
	require.NoError(t, err)
	require.NoError(t, m.Registrations().Create(ctx, reg))
	return event, reg
}

func TestRegistrationStore_UniquePerEventAndParticipant(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	event, reg := seedRegistration(t, m)

	dup, err := domain.NewRegistration(event.ID, reg.ParticipantID, "Pat", "", "pat@example.com", time.Now())
	require.NoError(t, err)
	err = m.Registrations().Create(context.Background(), dup)
	assert.ErrorIs(t, err, store.ErrRegistrationExists)
}

func TestCertificateStore_CreateIfAbsentIsAtomic(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	event, reg := seedRegistration(t, m)
	provider, err := m.Providers().GetByID(context.Background(), event.ProviderID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := domain.GenerateCertificateNumber("", time.Now())
			if !assert.NoError(t, err) {
				return
			}
			cert, err := domain.NewCertificate(number, reg, event, provider, time.Now())
			if !assert.NoError(t, err) {
				return
			}
			ok, err := m.Certificates().CreateIfAbsent(context.Background(), cert)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, m.CertificateCount())
}

func TestCertificateStore_ClaimNotificationOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	event, reg := seedRegistration(t, m)
	provider, err := m.Providers().GetByID(ctx, event.ProviderID)
	require.NoError(t, err)

	cert, err := domain.NewCertificate("CE-2026-AAAAAAAAAA", reg, event, provider, time.Now())
	require.NoError(t, err)
	ok, err := m.Certificates().CreateIfAbsent(ctx, cert)
	require.NoError(t, err)
	require.True(t, ok)

	claimed, err := m.Certificates().ClaimNotification(ctx, cert.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = m.Certificates().ClaimNotification(ctx, cert.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, m.Certificates().ReleaseNotification(ctx, cert.ID))
	claimed, err = m.Certificates().ClaimNotification(ctx, cert.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)
}
