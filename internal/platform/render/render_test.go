package render_test

import (
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/render"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCertificate() *domain.Certificate {
	issued := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	return &domain.Certificate{
		ID:                uuid.New(),
		CertificateNumber: "CE-2026-ABCDEFGHJK",
		RegistrationID:    uuid.New(),
		ParticipantName:   "Pat <Lee>",
		EventTitle:        "Ethics in Practice",
		EventDate:         issued.AddDate(0, 0, -1),
		TotalCEUs:         1.5,
		Category:          domain.CECategoryEthics,
		ProviderName:      "Behavior School",
		ProviderNumber:    "OP-01-2345",
		InstructorName:    "Dr. Rivera",
		IssuedAt:          issued,
		Status:            domain.CertificateStatusIssued,
	}
}

func TestRenderCertificate(t *testing.T) {
	t.Parallel()

	r, err := render.New()
	require.NoError(t, err)

	out, err := r.RenderCertificate(testCertificate())
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "CE-2026-ABCDEFGHJK")
	assert.Contains(t, html, "Ethics in Practice")
	assert.Contains(t, html, "1.5 ethics CEUs")
	assert.Contains(t, html, "March 2, 2026")
	assert.Contains(t, html, "Pat &lt;Lee&gt;", "participant name must be escaped")
	assert.NotContains(t, html, "REVOKED")
}

func TestRenderCertificate_Revoked(t *testing.T) {
	t.Parallel()

	r, err := render.New()
	require.NoError(t, err)

	cert := testCertificate()
	require.NoError(t, cert.Revoke("issued in error", uuid.New(), time.Now()))

	out, err := r.RenderCertificate(cert)
	require.NoError(t, err)
	assert.Contains(t, string(out), "REVOKED: issued in error")
}

func TestRenderCertificate_Nil(t *testing.T) {
	t.Parallel()

	r, err := render.New()
	require.NoError(t, err)

	_, err = r.RenderCertificate(nil)
	assert.Error(t, err)
}

func TestComposeEmail(t *testing.T) {
	t.Parallel()

	r, err := render.New()
	require.NoError(t, err)

	subject, body, err := r.ComposeEmail("certificate_issued", map[string]any{
		"participant_name":   "Pat",
		"event_title":        "Ethics in Practice",
		"certificate_number": "CE-2026-ABCDEFGHJK",
		"verify_url":         "/api/verify/CE-2026-ABCDEFGHJK",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your CE certificate CE-2026-ABCDEFGHJK is ready", subject)
	assert.Contains(t, body, "Ethics in Practice")

	subject, body, err = r.ComposeEmail("event_rejected", map[string]any{
		"provider_name": "Behavior School",
		"event_title":   "Ethics in Practice",
		"reason":        "missing objectives",
	})
	require.NoError(t, err)
	assert.Equal(t, "Event not approved: Ethics in Practice", subject)
	assert.Contains(t, body, "missing objectives")
}

func TestComposeEmail_UnknownTemplate(t *testing.T) {
	t.Parallel()

	r, err := render.New()
	require.NoError(t, err)

	_, _, err = r.ComposeEmail("nope", nil)
	assert.ErrorIs(t, err, render.ErrUnknownTemplate)
}
