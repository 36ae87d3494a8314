package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"persona-rag/internal/app"
	"persona-rag/internal/server"
)

var servePort int

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the corpus and start the HTTP service",
		Long: `Index every paragraph of the corpus folder, then serve the chat API.

Examples:
  persona-rag serve
  persona-rag serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		if servePort < 1 || servePort > 65535 {
			return fmt.Errorf("--port must be 1-65535, got %d", servePort)
		}
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing application")
		}
	}()

	if _, err := a.IndexCorpus(ctx); err != nil {
		return err
	}

	return server.New(a.Pipeline, cfg.Server).Start(ctx, cfg.Addr())
}
