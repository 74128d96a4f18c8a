package main

import (
	"fmt"
	"os"

	"github.com/ainotes/secondbrain/internal/cli"
	"github.com/ainotes/secondbrain/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "braind",
		Short: "Second Brain daemon and CLI",
		Long:  "Second Brain daemon for running the API server and inspecting users",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.UserCmd())
	rootCmd.AddCommand(admin.TokenCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
