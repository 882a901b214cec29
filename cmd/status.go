package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the chat backend",
	Long:  `Probe the chat backend's /health endpoint at transport.base_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		transport := chat.NewHTTPTransportWithTimeout(cfg.Transport.BaseURL, cfg.Transport.Timeout)

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		if err := transport.Health(ctx); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s: unavailable (%v)\n", cfg.Transport.BaseURL, err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backend %s: ok\n", cfg.Transport.BaseURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
