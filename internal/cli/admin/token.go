package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ainotes/secondbrain/internal/auth"
	"github.com/ainotes/secondbrain/internal/config"
	"github.com/ainotes/secondbrain/internal/repository"
	"github.com/spf13/cobra"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage session tokens",
		Long:  "Issue session tokens outside the Google sign-in flow",
	}

	cmd.AddCommand(TokenIssueCmd())

	return cmd
}

func TokenIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue a session token for a user",
		Long:  "Issue a JWT for an existing user, for support and testing",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenIssue,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	userID := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Refuse to mint tokens for user IDs that do not exist.
	userRepo := repository.NewUserRepository(pool)
	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	tokenSvc := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpirationDays)
	token, err := tokenSvc.IssueToken(user.ID)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"user_id": user.ID,
			"email":   user.Email,
			"token":   token,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Token issued for %s <%s>:\n%s\n", user.Name, user.Email, token)
	}

	return nil
}
