package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lexbrief/internal/export"
	"github.com/ppiankov/lexbrief/internal/history"
	"github.com/ppiankov/lexbrief/internal/model"
)

var (
	historyLimit int
	exportFormat string
	exportOut    string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse, export and clear the session's saved answers",
}

func historyStore() (*model.Config, *history.FileStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, history.NewFileStore(cfg.HistoryDir(), cfg.History.KeepRetrieval), nil
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent answers, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := historyStore()
		if err != nil {
			return err
		}
		limit := historyLimit
		if limit <= 0 {
			limit = cfg.History.Limit
		}

		entries, err := store.ListRecent(cmd.Context(), cfg.Session, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No history for session %s.\n", cfg.Session)
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %s\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), oneLine(e.Query, 80))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one saved answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := historyStore()
		if err != nil {
			return err
		}
		entry, err := store.Get(cmd.Context(), cfg.Session, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Query: %s\n\n%s\n", entry.Query, entry.Result.Raw)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the session's history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := historyStore()
		if err != nil {
			return err
		}
		if err := store.Clear(cmd.Context(), cfg.Session); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Cleared history for session %s\n", cfg.Session)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Download a saved answer as Markdown or PDF",
	Long: `Export writes one saved answer to a file.

Example:
  lexbrief history export 00000001729160000000-1a2b3c4d
  lexbrief history export 00000001729160000000-1a2b3c4d --format pdf -o answer.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		cfg, store, err := historyStore()
		if err != nil {
			return err
		}
		entry, err := store.Get(cmd.Context(), cfg.Session, args[0])
		if err != nil {
			return err
		}

		path := exportOut
		if path == "" {
			path = export.FileName(entry, format)
		}
		if path == "-" {
			return export.Write(os.Stdout, entry, format)
		}
		if err := export.ToFile(entry, format, path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
		return nil
	},
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "number of entries (default from config)")
	historyExportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "export format (markdown, pdf)")
	historyExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output path, - for stdout (default: query_<id>.<ext>)")
}
