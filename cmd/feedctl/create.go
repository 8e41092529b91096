package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func createCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create signals and publish them to the live feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()
			enc := json.NewEncoder(os.Stdout)

			for i := 0; i < count; i++ {
				sig, err := client.CreateSignal(cmd.Context())
				if err != nil {
					logger.Error("create failed", zap.Int("created", i), zap.Error(err))
					return err
				}
				if err := enc.Encode(sig); err != nil {
					return err
				}
			}

			logger.Info("signals created", zap.Int("count", count))
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of signals to create")
	return cmd
}
