package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lexbrief/internal/pipeline"
)

var (
	outJSON       string
	outMD         string
	askTimeout    time.Duration
	showRetrieval bool
	llmProvider   string
	llmModel      string
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a legal question from the session's sources",
	Long: `Ask runs one query through both stages:
- Retrieve verbatim passages with citations from the indexed sources
- Rewrite them in plain language with a closing follow-up question
- Save the answer to the session's history

If the index is empty, the session's sources are indexed first.

Example:
  lexbrief ask "How long do I have to file a civil suit?"
  lexbrief ask "What is a caveat petition?" --session tenancy --show-retrieval
  lexbrief ask "Who pays court fees?" --json answer.json --md answer.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&outJSON, "json", "", "write the outcome as JSON to this path")
	askCmd.Flags().StringVar(&outMD, "md", "", "write the answer in history format to this path")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 5*time.Minute, "overall timeout")
	askCmd.Flags().BoolVar(&showRetrieval, "show-retrieval", false, "print the retrieved passages before the answer")
	askCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, groq, gemini, anthropic, ollama)")
	askCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := a.sessionContext(cfg.Session)
	if err != nil {
		return err
	}
	if err := a.ensureIndexed(ctx, sc); err != nil {
		return err
	}

	outcome, err := a.pipeline.Run(ctx, sc, query)
	if outcome == nil {
		return fmt.Errorf("query failed: %w", err)
	}

	renderer := pipeline.NewRenderer(os.Stdout, showRetrieval || cfg.Output.ShowRetrieval)
	renderer.RenderSummary(outcome)

	if outJSON != "" {
		if rerr := renderer.RenderJSON(outcome, outJSON); rerr != nil {
			return fmt.Errorf("render failed: %w", rerr)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
	}
	if outMD != "" {
		if rerr := renderer.RenderMarkdown(outcome, outMD); rerr != nil {
			return fmt.Errorf("render failed: %w", rerr)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outMD)
	}

	if err != nil {
		return err
	}
	if outcome.Entry != nil {
		fmt.Fprintf(os.Stderr, "✓ Saved to history as %s\n", outcome.Entry.ID)
	}
	return nil
}
