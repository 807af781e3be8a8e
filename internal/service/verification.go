package service

import (
	"context"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
)

// VerificationService serves public certificate lookups.
type VerificationService interface {
	// Verify returns the issued certificate carrying number. Revoked and
	// unknown numbers both yield store.ErrCertificateNotFound.
	Verify(ctx context.Context, number string) (*domain.Certificate, error)
}

type verificationServiceImpl struct {
	certificates store.CertificateStore
	logger       *slog.Logger
}

var _ VerificationService = (*verificationServiceImpl)(nil)

// NewVerificationService creates a VerificationService.
func NewVerificationService(certificates store.CertificateStore, logger *slog.Logger) VerificationService {
	if certificates == nil {
		panic("certificates cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &verificationServiceImpl{
		certificates: certificates,
		logger:       logger.With(slog.String("component", "verification_service")),
	}
}

// Verify implements VerificationService.Verify
func (s *verificationServiceImpl) Verify(ctx context.Context, number string) (*domain.Certificate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	number = domain.NormalizeCertificateNumber(number)
	if number == "" {
		return nil, store.ErrCertificateNotFound
	}

	cert, err := s.certificates.GetByNumber(ctx, number)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrCertificateNotFound
		}
		log.Error("certificate lookup failed", slog.String("error", err.Error()))
		return nil, NewServiceError("verification", "verify", "lookup failed", err)
	}
	if !cert.IsVerifiable() {
		return nil, store.ErrCertificateNotFound
	}
	return cert, nil
}
