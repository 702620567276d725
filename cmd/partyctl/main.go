package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	adminFlag string
	rootCmd   = &cobra.Command{
		Use:          "partyctl",
		Short:        "Operator CLI for the party planner admin API",
		SilenceUsage: true,
	}
)

func defaultAdminURL() string {
	if v := os.Getenv("ADMIN_URL"); v != "" {
		return v
	}
	return "http://localhost:9090"
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&adminFlag, "admin", "a", defaultAdminURL(), "Admin server base URL")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
