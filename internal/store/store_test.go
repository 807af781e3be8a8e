package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestEntityErrorsWrapSentinels(t *testing.T) {
	t.Parallel()

	notFound := []error{
		store.ErrProviderNotFound,
		store.ErrEventNotFound,
		store.ErrRegistrationNotFound,
		store.ErrAttendanceNotFound,
		store.ErrFeedbackNotFound,
		store.ErrQuizNotFound,
		store.ErrCertificateNotFound,
	}
	for _, err := range notFound {
		assert.True(t, store.IsNotFoundError(err), err.Error())
		assert.False(t, store.IsDuplicateError(err), err.Error())
	}

	duplicates := []error{
		store.ErrRegistrationExists,
		store.ErrFeedbackExists,
		store.ErrQuizExists,
		store.ErrCertificateExists,
	}
	for _, err := range duplicates {
		assert.True(t, store.IsDuplicateError(err), err.Error())
		assert.False(t, store.IsNotFoundError(err), err.Error())
	}
}

func TestEntityErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.Is(store.ErrEventNotFound, store.ErrCertificateNotFound))
	assert.False(t, errors.Is(store.ErrFeedbackExists, store.ErrRegistrationExists))
	assert.Equal(t, "entity not found: certificate", store.ErrCertificateNotFound.Error())
}

func TestStoreErrorWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("lookup: %w", store.ErrEventNotFound)
	err := store.NewStoreError("event", "get", "failed to load event", wrapped)

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, store.ErrEventNotFound)
	assert.Equal(t,
		"get operation on event failed: failed to load event: lookup: entity not found: event",
		err.Error())

	bare := store.NewStoreError("quiz", "create", "no rows", nil)
	assert.Equal(t, "create operation on quiz failed: no rows", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
