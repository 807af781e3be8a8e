package main

import (
	"errors"
	"fmt"

	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	revokeReason string
	revokedBy    string
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <certificate-number>",
	Short: "Revoke an issued certificate",
	Long: `Marks a certificate revoked. Public verification of a revoked
certificate reports it as not found. Revoking an already revoked
certificate keeps the original revocation details.`,
	Args: cobra.ExactArgs(1),
	RunE: runRevoke,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <certificate-number>",
	Short: "Look up a certificate the way public verification does",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	revokeCmd.Flags().StringVar(&revokeReason, "reason", "", "reason recorded on the certificate (required)")
	revokeCmd.Flags().StringVar(&revokedBy, "by", "", "ID of the administrator revoking the certificate (required)")
	_ = revokeCmd.MarkFlagRequired("reason")
	_ = revokeCmd.MarkFlagRequired("by")

	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runRevoke(cmd *cobra.Command, args []string) error {
	adminID, err := uuid.Parse(revokedBy)
	if err != nil {
		return fmt.Errorf("invalid --by: %w", err)
	}

	return withBackend(cmd.Context(), func(b *backend) error {
		cert, err := b.certificates.Revoke(cmd.Context(), args[0], revokeReason, adminID)
		if err != nil {
			return fmt.Errorf("revoke failed: %w", err)
		}
		cmd.Printf("Certificate %s revoked at %s: %s\n",
			cert.CertificateNumber, cert.RevokedAt.Format("2006-01-02T15:04:05Z07:00"), cert.RevocationReason)
		return nil
	})
}

func runVerify(cmd *cobra.Command, args []string) error {
	return withBackend(cmd.Context(), func(b *backend) error {
		cert, err := b.verification.Verify(cmd.Context(), args[0])
		if errors.Is(err, store.ErrCertificateNotFound) {
			return fmt.Errorf("certificate %s not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}

		cmd.Printf("Certificate:  %s\n", cert.CertificateNumber)
		cmd.Printf("Participant:  %s\n", cert.ParticipantName)
		cmd.Printf("Event:        %s (%s)\n", cert.EventTitle, cert.EventDate.Format("2006-01-02"))
		cmd.Printf("CEUs:         %.1f %s\n", cert.TotalCEUs, cert.Category)
		cmd.Printf("Provider:     %s\n", cert.ProviderName)
		cmd.Printf("Issued:       %s\n", cert.IssuedAt.Format("2006-01-02"))
		return nil
	})
}
