package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	freshIndex   bool
	indexTimeout time.Duration
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or inspect the knowledge index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Index the session's sources",
	Long: `Build fetches, extracts and indexes every active source in order.
A document that fails is reported and the rest are still indexed.

Example:
  lexbrief index build
  lexbrief index build --fresh --session tenancy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), indexTimeout)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		sc, err := a.sessionContext(cfg.Session)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "⚙️  Indexing %d sources...\n", len(sc.Sources))
		report, err := a.pipeline.BuildIndex(ctx, sc, freshIndex)
		if err != nil {
			return err
		}
		printBuildReport(report)
		if report.HasFailures() {
			return fmt.Errorf("%d of %d sources failed to index", len(report.Failed), len(sc.Sources))
		}
		return nil
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.index.Documents(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("Index is empty. Run 'lexbrief index build'.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s  %4d chunks  %s\n", d.IndexedAt.Format(time.RFC3339), d.Chunks, d.DisplayName)
		}
		return nil
	},
}

var indexResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every document from the index",
	Long: `Reset empties the shared index for all sessions. Sessions keep their
source lists and are re-indexed on their next question or index build.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.index.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("✓ Index emptied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
	indexCmd.AddCommand(indexResetCmd)

	indexBuildCmd.Flags().BoolVar(&freshIndex, "fresh", false, "drop the session's documents before re-indexing them")
	indexBuildCmd.Flags().DurationVar(&indexTimeout, "timeout", 30*time.Minute, "overall timeout")
}
