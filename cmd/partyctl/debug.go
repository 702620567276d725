package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	debugCmd := &cobra.Command{Use: "debug", Short: "Best-effort listings across all parties"}

	debugCmd.AddCommand(&cobra.Command{
		Use:   "parties",
		Short: "List every party",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAdminClient(adminFlag).do(cmd.Context(), http.MethodGet, "/admin/debug/parties", nil, nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	})

	var partyID string
	guestsCmd := &cobra.Command{
		Use:   "guests",
		Short: "List guests of one party, or of all parties",
		RunE: func(cmd *cobra.Command, args []string) error {
			var query map[string]string
			if partyID != "" {
				query = map[string]string{"partyId": partyID}
			}
			data, err := newAdminClient(adminFlag).do(cmd.Context(), http.MethodGet, "/admin/debug/guests", nil, query)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	guestsCmd.Flags().StringVarP(&partyID, "party", "p", "", "Party ID")
	debugCmd.AddCommand(guestsCmd)

	rootCmd.AddCommand(debugCmd)
}
