package main

import (
	"fmt"

	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	tokenActor string
	tokenRole  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with the configured secret",
	Long: `Prints a token for an actor and role. Production tokens come from the
identity provider; this command exists for local testing and operations.
Provider tokens must carry the provider's ID as the actor.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenActor, "actor", "", "actor ID; a new one is generated when empty")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleParticipant), "participant, provider or admin")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	role, err := auth.ParseRole(tokenRole)
	if err != nil {
		return fmt.Errorf("invalid --role %q: %w", tokenRole, err)
	}

	actorID := uuid.New()
	if tokenActor != "" {
		if actorID, err = uuid.Parse(tokenActor); err != nil {
			return fmt.Errorf("invalid --actor: %w", err)
		}
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	token, err := jwtService.GenerateToken(cmd.Context(), actorID, role)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	cmd.Println(token)
	return nil
}
