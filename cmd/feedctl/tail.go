package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/store"
)

func tailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Follow the live signal feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()
			enc := json.NewEncoder(os.Stdout)

			logger.Info("tailing feed", zap.String("baseURL", cfg.API.BaseURL))

			err := client.TailFeed(cmd.Context(), func(sig store.Signal) error {
				return enc.Encode(sig)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				logger.Error("tail failed", zap.Error(err))
				return err
			}

			// Stream completed: the server reset the feed.
			logger.Info("feed completed")
			return nil
		},
	}
}
