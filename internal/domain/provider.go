package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderStatus represents the accreditation state of a provider
type ProviderStatus string

// Possible provider status values
const (
	ProviderStatusActive ProviderStatus = "active"
	ProviderStatusLapsed ProviderStatus = "lapsed"
)

// DefaultApprovalValidity is how long a provider approval lasts before renewal.
const DefaultApprovalValidity = 365 * 24 * time.Hour

// Provider is an organization accredited to issue CEUs.
type Provider struct {
	ID                 uuid.UUID      `json:"id"`
	ProviderName       string         `json:"provider_name"`
	BACBProviderNumber string         `json:"bacb_provider_number"`
	ContactEmail       string         `json:"contact_email"`
	Status             ProviderStatus `json:"status"`
	ApprovedAt         time.Time      `json:"approved_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewProvider creates an active provider whose approval starts at now and
// lasts for validity.
func NewProvider(name, providerNumber, contactEmail string, now time.Time, validity time.Duration) (*Provider, error) {
	if validity <= 0 {
		validity = DefaultApprovalValidity
	}
	now = now.UTC()
	p := &Provider{
		ID:                 uuid.New(),
		ProviderName:       strings.TrimSpace(name),
		BACBProviderNumber: strings.TrimSpace(providerNumber),
		ContactEmail:       strings.TrimSpace(contactEmail),
		Status:             ProviderStatusActive,
		ApprovedAt:         now,
		ExpiresAt:          now.Add(validity),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every provider field and reports all violations together.
func (p *Provider) Validate() error {
	v := &ValidationError{Entity: "provider"}
	if p.ID == uuid.Nil {
		v.Add("id", "is required")
	}
	if p.ProviderName == "" {
		v.Add("provider_name", "is required")
	}
	if p.BACBProviderNumber == "" {
		v.Add("bacb_provider_number", "is required")
	}
	if p.ContactEmail != "" {
		if _, err := mail.ParseAddress(p.ContactEmail); err != nil {
			v.Add("contact_email", "is not a valid email address")
		}
	}
	if !isValidProviderStatus(p.Status) {
		v.Add("status", "is not a valid provider status")
	}
	if !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(p.ApprovedAt) {
		v.Add("expires_at", "must not be before approved_at")
	}
	return v.OrNil()
}

// IsActive reports whether the provider may have events approved.
func (p *Provider) IsActive() bool {
	return p.Status == ProviderStatusActive
}

// IsExpired reports whether the approval period ended at or before now.
func (p *Provider) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// MarkLapsed flips the provider to lapsed.
func (p *Provider) MarkLapsed(now time.Time) {
	p.Status = ProviderStatusLapsed
	p.UpdatedAt = now.UTC()
}

// Renew reactivates the provider with a fresh approval period.
func (p *Provider) Renew(now time.Time, validity time.Duration) {
	if validity <= 0 {
		validity = DefaultApprovalValidity
	}
	now = now.UTC()
	p.Status = ProviderStatusActive
	p.ApprovedAt = now
	p.ExpiresAt = now.Add(validity)
	p.UpdatedAt = now
}

func isValidProviderStatus(status ProviderStatus) bool {
	switch status {
	case ProviderStatusActive, ProviderStatusLapsed:
		return true
	default:
		return false
	}
}
