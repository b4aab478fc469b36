package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lexbrief/internal/pipeline"
	"github.com/ppiankov/lexbrief/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchID      string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Answer many questions from a file in parallel",
	Long: `Batch answers questions read from a file (one per line, # comments):
- Every question runs in its own session <batch>-<n>
- All sessions answer from the current session's sources
- Questions run in parallel with a configurable worker count
- Each outcome is written as JSON to the output directory

Example:
  lexbrief batch questions.txt
  lexbrief batch questions.txt --concurrency 2 --output-dir ./answers`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./lexbrief-answers", "output directory for answers")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&batchID, "batch-id", "", "batch id used as session prefix (default: random)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = cfg.Batch.Concurrency
	}
	if batchID == "" {
		batchID = worker.NewBatchID()
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  lexbrief Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Batch id:     %s\n", batchID)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  LLM:          %s\n", cfg.LLM.Provider)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	base, err := a.sessionContext(cfg.Session)
	if err != nil {
		return err
	}
	if err := a.ensureIndexed(ctx, base); err != nil {
		return err
	}

	sessions := func(sessionID string) *pipeline.SessionContext {
		return &pipeline.SessionContext{
			SessionID: sessionID,
			Sources:   base.Sources,
			History:   a.history,
		}
	}
	processor := worker.NewBatchProcessor(a.pipeline, sessions, concurrency)

	fmt.Fprintf(os.Stderr, "⚙️  Answering questions with %d workers...\n\n", concurrency)
	results, err := processor.ProcessFile(ctx, batchID, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(os.Stdout, false)
	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ [%s] %s: %v\n", result.SessionID, result.Query, result.Error)
			continue
		}

		path := filepath.Join(outputDir, result.SessionID+".json")
		if err := renderer.RenderJSON(result.Outcome, path); err != nil {
			fmt.Fprintf(os.Stderr, "✗ [%s] failed to write JSON: %v\n", result.SessionID, err)
			continue
		}

		if result.Outcome.Partial() {
			fmt.Fprintf(os.Stderr, "~ [%s] %s (retrieval only: %v)\n", result.SessionID, result.Query, result.Outcome.SummaryErr)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ [%s] %s\n", result.SessionID, result.Query)
	}

	complete, partial, failed := worker.Counts(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d questions\n", len(results))
	fmt.Fprintf(os.Stderr, "  Answered:  %d\n", complete)
	fmt.Fprintf(os.Stderr, "  Partial:   %d\n", partial)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
