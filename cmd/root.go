package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "canvaschat",
	Short: "Chat with a model that edits your canvas",
	Long: `canvaschat streams model replies into a conversation and applies the
unified diffs they propose to a shared canvas.

Run a single exchange with --prompt, or start the web API with "serve" and
the model-facing chat API with "backend".`,
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := viper.GetString("prompt")
		if prompt == "" {
			return cmd.Help()
		}

		return RunApplication(cmd.Context(), &AppConfig{
			Config:     config.Get(),
			Prompt:     prompt,
			CanvasPath: viper.GetString("canvas_path"),
			AllowEdits: viper.GetBool("canvas.allow_edits"),
		})
	},
}

// Execute runs the root command until it returns or the process is
// interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.canvaschat/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("base-url", "http://localhost:8000", "chat backend URL")
	viper.BindPFlag("transport.base_url", rootCmd.PersistentFlags().Lookup("base-url"))

	rootCmd.PersistentFlags().String("transport", config.TransportHTTP, "how to reach the model: http or langchain")
	viper.BindPFlag("transport.mode", rootCmd.PersistentFlags().Lookup("transport"))

	rootCmd.Flags().StringP("prompt", "p", "", "run a single exchange with this prompt")
	viper.BindPFlag("prompt", rootCmd.Flags().Lookup("prompt"))

	rootCmd.Flags().String("canvas", "", "file used as the canvas for --prompt")
	viper.BindPFlag("canvas_path", rootCmd.Flags().Lookup("canvas"))

	rootCmd.Flags().Bool("allow-edits", false, "apply the model's proposed diff to the canvas")
	viper.BindPFlag("canvas.allow_edits", rootCmd.Flags().Lookup("allow-edits"))
}

// initApp loads configuration and starts logging
func initApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Init(); err != nil {
		return err
	}

	historyPath := filepath.Join(filepath.Dir(config.ResolvePath(cfg.Logging.LogFile)), "chat.history")
	if err := logger.InitHistoryFile(historyPath, cfg.Logging.Preserve); err != nil {
		logger.Warn("Chat history disabled: %v", err)
	}

	logger.Debug("Configuration loaded from %q", config.GetConfigFileUsed())
	return nil
}
