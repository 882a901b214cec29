package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/killallgit/canvaschat/pkg/backend"
	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/killallgit/canvaschat/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// shutdownTimeout bounds how long in-flight requests get after a signal
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web API",
	Long:  `Serve chat sessions to the canvas front-end over HTTP, Server-Sent Events and WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.NewHTTPServer(config.Get())
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), "web API", srv)
	},
}

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Start the chat backend",
	Long:  `Serve the model-facing chat API (/chat, /chat/diff and /health) the web API talks to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := backend.NewServer(config.Get())
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), "chat backend", srv)
	},
}

// runServer serves until ctx is done, then shuts down gracefully
func runServer(ctx context.Context, name string, srv *http.Server) error {
	log := logger.WithComponent("cmd")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("Server listening", "server", name, "addr", srv.Addr)
	fmt.Printf("canvaschat %s listening on %s\n", name, srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info("Server stopped", "server", name)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	backendCmd.Flags().String("addr", ":8000", "listen address")
	viper.BindPFlag("backend.addr", backendCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backendCmd)
}
