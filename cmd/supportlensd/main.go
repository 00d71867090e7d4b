package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/supportlens/supportlens/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "supportlensd",
		Short: "SupportLens daemon and CLI",
		Long:  "SupportLens daemon for running the support API server, managing API keys, and repairing the knowledge base index",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.RepairCmd())
	rootCmd.AddCommand(admin.APIKeyCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
