package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"persona-rag/internal/app"
	"persona-rag/internal/helper"
	"persona-rag/internal/parser"
)

var indexDryRun bool

func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed the corpus into the vector store",
		Long: `Split every .txt file of the corpus folder on blank lines and store each
paragraph in the vector store.

Examples:
  persona-rag index
  persona-rag index --dry-run`,
		Args: cobra.NoArgs,
		RunE: runIndex,
	}
	cmd.Flags().BoolVar(&indexDryRun, "dry-run", false, "Print the parsed paragraphs without storing them")
	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexDryRun {
		chunks, err := parser.LoadCorpus(cfg.Corpus.Dir)
		if err != nil {
			return err
		}
		log.Info().Int("chunks", len(chunks)).Msg("Parsed corpus")
		helper.PrettyPrint(cmd.OutOrStdout(), chunks)
		return nil
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	added, err := a.IndexCorpus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d paragraphs\n", added)
	return nil
}
