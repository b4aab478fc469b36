package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lexbrief/internal/ingest"
)

// sourceCmd represents the source command
var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage the session's active sources",
	Long: `Manage the documents a session answers from.

Sources are URLs or local files (pdf, docx, txt, csv, json, html).
Changes take effect at the next index build.`,
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <url|path>...",
	Short: "Add URLs or local files to the session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ingester := ingest.NewIngester(cfg.UploadsDir())
		sessions := ingest.NewSessionSources(cfg.SessionsDir(), ingest.DefaultDescriptors(cfg.Sources))

		for _, arg := range args {
			in := ingest.Input{Path: arg}
			lower := strings.ToLower(arg)
			if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
				in = ingest.Input{URL: arg}
			}

			desc, err := ingester.AddSource(cmd.Context(), in)
			if err != nil {
				return err
			}

			var index int
			if _, err := sessions.Update(cfg.Session, func(set *ingest.SourceSet) error {
				index = set.Add(desc)
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ [%d] %s\n", index, desc)
		}
		fmt.Fprintf(os.Stderr, "\nRun 'lexbrief index build' to index the new sources.\n")
		return nil
	},
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove a source by its list index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("source index must be an integer: %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sessions := ingest.NewSessionSources(cfg.SessionsDir(), ingest.DefaultDescriptors(cfg.Sources))

		var removed fmt.Stringer
		if _, err := sessions.Update(cfg.Session, func(set *ingest.SourceSet) error {
			desc, err := set.Remove(index)
			removed = desc
			return err
		}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Removed %s\n", removed)
		fmt.Fprintf(os.Stderr, "\nIndexed content stays until 'lexbrief index build --fresh'.\n")
		return nil
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the session's active sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sessions := ingest.NewSessionSources(cfg.SessionsDir(), ingest.DefaultDescriptors(cfg.Sources))

		set, err := sessions.Load(cfg.Session)
		if err != nil {
			return err
		}
		list := set.List()
		if len(list) == 0 {
			fmt.Println("No sources. Add one with 'lexbrief source add <url|path>'.")
			return nil
		}
		for i, src := range list {
			fmt.Printf("[%d] %s\n", i, src)
		}
		return nil
	},
}

var sourceResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sessions := ingest.NewSessionSources(cfg.SessionsDir(), ingest.DefaultDescriptors(cfg.Sources))

		set, err := sessions.Update(cfg.Session, func(set *ingest.SourceSet) error {
			set.Reset(sessions.Defaults())
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Session %s reset to %d default sources\n", cfg.Session, set.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceResetCmd)
}
