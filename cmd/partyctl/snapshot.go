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
	snapshotCmd := &cobra.Command{Use: "snapshot", Short: "Export or replace the whole store"}

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the store snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := io.Writer(os.Stdout)
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return runExport(cmd.Context(), newAdminClient(adminFlag), out)
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	snapshotCmd.AddCommand(exportCmd)

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the store with a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), newAdminClient(adminFlag), args[0], os.Stdout)
		},
	}
	snapshotCmd.AddCommand(importCmd)

	rootCmd.AddCommand(snapshotCmd)
}

func runExport(ctx context.Context, c *adminClient, out io.Writer) error {
	data, err := c.do(ctx, http.MethodGet, "/admin/snapshot", nil, nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func runImport(ctx context.Context, c *adminClient, path string, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%s is not valid JSON", path)
	}
	data, err := c.do(ctx, http.MethodPut, "/admin/snapshot", json.RawMessage(raw), nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
