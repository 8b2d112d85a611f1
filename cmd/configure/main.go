package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tandemhq/tandem-api/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "tandem-configure",
		Short: "Configuration tool for Tandem API",
		Long:  "CLI tool for managing CORS and rate limit settings and previewing recurrence schedules",
	}

	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewPreviewCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
