package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all persisted signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()

			signals, err := client.ListSignals(cmd.Context())
			if err != nil {
				logger.Error("list failed", zap.Error(err))
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(signals)
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch one signal by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			client := newAPIClient()

			sig, err := client.GetSignal(cmd.Context(), id)
			if err != nil {
				logger.Error("get failed", zap.Int64("id", id), zap.Error(err))
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sig)
		},
	}
}
