package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"persona-rag/internal/config"
	"persona-rag/internal/helper"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	cfg        *config.Config
)

// NewRootCmd builds the persona-rag command tree. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "persona-rag",
		Short: "Answer questions as a persona grounded in personal notes",
		Long: `persona-rag indexes a folder of plain-text notes into a vector store and
answers chat questions in the first person, using the most relevant notes
as context.

Examples:
  persona-rag serve --port 8080
  persona-rag index --dry-run
  persona-rag ask --query "Where did you study?"
  persona-rag snapshot export --file backup.gob.gz`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE:              runServe,
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML config file")
	root.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewIndexCmd())
	root.AddCommand(NewAskCmd())
	root.AddCommand(NewSnapshotCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// .env is optional
	_ = godotenv.Load()

	c, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	helper.SetupLogger(c.Logging.Level, c.Logging.Pretty)
	log.Debug().Str("path", configPath).Msg("Loaded config")
	cfg = c
	return nil
}
