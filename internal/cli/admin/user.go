package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ainotes/secondbrain/internal/config"
	"github.com/ainotes/secondbrain/internal/database"
	"github.com/ainotes/secondbrain/internal/pagination"
	"github.com/ainotes/secondbrain/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Inspect users who have signed in",
	}

	cmd.AddCommand(UserListCmd())
	cmd.AddCommand(UserShowCmd())

	return cmd
}

func UserListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Long:  "List users, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runUserList(outputFormat, limit, cursor)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runUserList(outputFormat string, limit int, cursorStr string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	cursor, _ := pagination.DecodeCursor(cursorStr)
	result, err := userRepo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(result.Items))
		for i, u := range result.Items {
			data[i] = map[string]interface{}{
				"id":         u.ID,
				"google_id":  u.GoogleID,
				"email":      u.Email,
				"name":       u.Name,
				"created_at": u.CreatedAt,
			}
		}
		output := map[string]interface{}{
			"items":    data,
			"cursor":   result.NextCursor,
			"has_more": result.HasMore,
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(result.Items) == 0 {
			fmt.Println("No users found")
			return nil
		}
		fmt.Println("Users:")
		for _, u := range result.Items {
			fmt.Printf("  %s: %s <%s> (signed up: %s)\n", u.ID, u.Name, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		if result.HasMore && result.NextCursor != "" {
			fmt.Printf("\nMore results available. Use --cursor %s\n", result.NextCursor)
		}
	}

	return nil
}

func UserShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user",
		Long:  "Show one user and how much knowledge they have stored",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserShow,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runUserShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	userID := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	memoryRepo := repository.NewMemoryRepository(pool)

	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	memories, err := memoryRepo.CountByOwner(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to count memories: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         user.ID,
			"google_id":  user.GoogleID,
			"email":      user.Email,
			"name":       user.Name,
			"created_at": user.CreatedAt,
			"memories":   memories,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("User: %s <%s>\n", user.Name, user.Email)
		fmt.Printf("ID: %s\n", user.ID)
		fmt.Printf("Google ID: %s\n", user.GoogleID)
		fmt.Printf("Signed up: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Stored memories: %d\n", memories)
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.NewPool(ctx, cfg.DatabaseURL)
}
