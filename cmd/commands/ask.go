package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"persona-rag/internal/app"
	"persona-rag/internal/models"
)

var (
	askQuery   string
	askHistory []string
)

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer one question from the terminal",
		Long: `Run a single chat turn through the pipeline and print the standalone
question, the retrieved paragraphs and the answer. The corpus is indexed
first if the vector store is empty.

Examples:
  persona-rag ask --query "What do you do for work?"
  persona-rag ask --history "Tell me about your job." --query "Since when?"`,
		Args: cobra.NoArgs,
		RunE: runAsk,
	}
	cmd.Flags().StringVar(&askQuery, "query", "", "Question to answer")
	cmd.Flags().StringArrayVar(&askHistory, "history", nil, "Earlier human turn, repeatable")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askQuery == "" {
		return errors.New("--query is required")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.EnsureIndexed(ctx); err != nil {
		return err
	}

	history := make([]models.ChatMessage, 0, len(askHistory))
	for _, h := range askHistory {
		history = append(history, models.ChatMessage{Role: models.RoleHuman, Content: h})
	}

	res, err := a.Pipeline.Run(ctx, askQuery, history)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(out, "%s\n\n", res.StandaloneQuestion)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, c := range res.Chunks {
		fmt.Fprintf(out, "%s\n\n", c.Content)
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(out, "%s\n\n", res.Answer)
	return nil
}
