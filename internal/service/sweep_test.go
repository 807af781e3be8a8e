package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	p := h.provider(t)

	starting := h.eventIn(t, p, domain.EventStatusApproved, domain.ModalityInPerson)
	starting.StartDate = time.Now().Add(-time.Hour).UTC()
	end := time.Now().Add(2 * time.Hour).UTC()
	starting.EndDate = &end
	require.NoError(t, h.stores.Events.Update(ctx, starting))

	finishing := h.eventIn(t, p, domain.EventStatusInProgress, domain.ModalityInPerson)
	finishing.StartDate = time.Now().Add(-3 * time.Hour).UTC()
	require.NoError(t, h.stores.Events.Update(ctx, finishing))

	upcoming := h.eventIn(t, p, domain.EventStatusApproved, domain.ModalityInPerson)

	stale := h.provider(t)
	expire(t, h, stale)

	sweeper := service.NewSweepService(newLifecycle(t, h, h.emitter), newProviderService(t, h), discardLogger())
	require.NoError(t, sweeper.Sweep(ctx))

	statusOf := func(id uuid.UUID) domain.EventStatus {
		e, err := h.stores.Events.GetByID(ctx, id)
		require.NoError(t, err)
		return e.Status
	}
	assert.Equal(t, domain.EventStatusInProgress, statusOf(starting.ID))
	assert.Equal(t, domain.EventStatusCompleted, statusOf(finishing.ID))
	assert.Equal(t, domain.EventStatusApproved, statusOf(upcoming.ID))

	got, err := h.stores.Providers.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusLapsed, got.Status)

	// Nothing is left to do on a second pass.
	require.NoError(t, sweeper.Sweep(ctx))
	assert.Equal(t, domain.EventStatusInProgress, statusOf(starting.ID))
}

func TestNewSweepService_PanicsWithoutServices(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.Panics(t, func() { service.NewSweepService(nil, newProviderService(t, h), nil) })
	assert.Panics(t, func() { service.NewSweepService(newLifecycle(t, h, nil), nil, nil) })
}
