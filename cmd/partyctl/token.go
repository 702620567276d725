package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var userID, email string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd.Context(), newAdminClient(adminFlag), userID, email, os.Stdout)
		},
	}
	tokenCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	tokenCmd.Flags().StringVarP(&email, "email", "e", "", "User email")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(ctx context.Context, c *adminClient, userID, email string, out io.Writer) error {
	payload := map[string]string{"id": userID}
	if email != "" {
		payload["email"] = email
	}
	data, err := c.do(ctx, http.MethodPost, "/admin/tokens", payload, nil)
	if err != nil {
		return err
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	_, err = fmt.Fprintln(out, resp.Token)
	return err
}
