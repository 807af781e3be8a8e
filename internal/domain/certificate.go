package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CertificateStatus represents whether a certificate is still valid
type CertificateStatus string

// Possible certificate status values
const (
	CertificateStatusIssued  CertificateStatus = "issued"
	CertificateStatusRevoked CertificateStatus = "revoked"
)

const (
	// DefaultCertificatePrefix starts every certificate number.
	DefaultCertificatePrefix = "CE"

	// certificateTokenLength is the random part of a certificate number.
	certificateTokenLength = 10
)

// Certificate errors
var (
	ErrEmptyRevocationReason = errors.New("revocation reason cannot be empty")
)

// Certificate is the terminal artifact of an eligible registration. Its
// fields are copied from the event, provider and registration at issuance so
// later edits to those records never alter an issued certificate.
type Certificate struct {
	ID                uuid.UUID         `json:"id"`
	CertificateNumber string            `json:"certificate_number"`
	RegistrationID    uuid.UUID         `json:"registration_id"`
	EventID           uuid.UUID         `json:"event_id"`
	ParticipantID     uuid.UUID         `json:"participant_id"`
	ParticipantName   string            `json:"participant_name"`
	ParticipantBACBID string            `json:"participant_bacb_id,omitempty"`
	EventTitle        string            `json:"event_title"`
	EventDate         time.Time         `json:"event_date"`
	TotalCEUs         float64           `json:"total_ceus"`
	Category          CECategory        `json:"ce_category"`
	ProviderName      string            `json:"provider_name"`
	ProviderNumber    string            `json:"provider_number,omitempty"`
	InstructorName    string            `json:"instructor_name"`
	IssuedAt          time.Time         `json:"issued_at"`
	Status            CertificateStatus `json:"status"`
	RevokedAt         *time.Time        `json:"revoked_at,omitempty"`
	RevocationReason  string            `json:"revocation_reason,omitempty"`
	RevokedBy         *uuid.UUID        `json:"revoked_by,omitempty"`
	NotifiedAt        *time.Time        `json:"-"`
}

// NewCertificate builds an issued certificate for reg.
func NewCertificate(
	number string,
	reg *Registration,
	event *Event,
	provider *Provider,
	now time.Time,
) (*Certificate, error) {
	if reg == nil || event == nil || provider == nil {
		return nil, fmt.Errorf("%w: registration, event and provider are required", ErrValidation)
	}

	c := &Certificate{
		ID:                uuid.New(),
		CertificateNumber: number,
		RegistrationID:    reg.ID,
		EventID:           event.ID,
		ParticipantID:     reg.ParticipantID,
		ParticipantName:   reg.ParticipantName,
		ParticipantBACBID: reg.ParticipantBACBID,
		EventTitle:        event.Title,
		EventDate:         event.StartDate,
		TotalCEUs:         event.TotalCEUs,
		Category:          event.Category,
		ProviderName:      provider.ProviderName,
		ProviderNumber:    provider.BACBProviderNumber,
		InstructorName:    event.InstructorName,
		IssuedAt:          now.UTC(),
		Status:            CertificateStatusIssued,
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every certificate field.
func (c *Certificate) Validate() error {
	v := &ValidationError{Entity: "certificate"}
	if c.ID == uuid.Nil {
		v.Add("id", "is required")
	}
	if c.CertificateNumber == "" {
		v.Add("certificate_number", "is required")
	}
	if c.RegistrationID == uuid.Nil {
		v.Add("registration_id", "is required")
	}
	if c.ParticipantName == "" {
		v.Add("participant_name", "is required")
	}
	if c.EventTitle == "" {
		v.Add("event_title", "is required")
	}
	if c.TotalCEUs <= 0 {
		v.Add("total_ceus", "must be greater than zero")
	}
	if c.ProviderName == "" {
		v.Add("provider_name", "is required")
	}
	switch c.Status {
	case CertificateStatusIssued, CertificateStatusRevoked:
	default:
		v.Add("status", "is not a valid certificate status")
	}
	return v.OrNil()
}

// IsVerifiable reports whether the certificate may be shown to the public.
func (c *Certificate) IsVerifiable() bool {
	return c.Status == CertificateStatusIssued
}

// Revoke marks the certificate revoked. The certificate number is kept so it
// can never be reissued. Revoking an already revoked certificate keeps the
// original revocation details.
func (c *Certificate) Revoke(reason string, by uuid.UUID, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrEmptyRevocationReason
	}
	if c.Status == CertificateStatusRevoked {
		return nil
	}
	now = now.UTC()
	c.Status = CertificateStatusRevoked
	c.RevokedAt = &now
	c.RevocationReason = reason
	c.RevokedBy = &by
	return nil
}

// GenerateCertificateNumber returns a number of the form PREFIX-YYYY-TOKEN
// where TOKEN is random and unguessable. Uniqueness is enforced by the store.
func GenerateCertificateNumber(prefix string, issuedAt time.Time) (string, error) {
	if prefix == "" {
		prefix = DefaultCertificatePrefix
	}
	token, err := randomToken(certificateTokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate certificate number: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(prefix), issuedAt.UTC().Year(), token), nil
}

// NormalizeCertificateNumber trims and upper-cases user input before lookup.
func NormalizeCertificateNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}
