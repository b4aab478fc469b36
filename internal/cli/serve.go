package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lexbrief/internal/llm"
	"github.com/ppiankov/lexbrief/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API over HTTP",
	Long: `Serve exposes sources, indexing, queries and history per session:

  GET    /health
  GET    /api/sessions/{sid}/sources
  POST   /api/sessions/{sid}/sources            JSON {"url"} or multipart "file"
  DELETE /api/sessions/{sid}/sources/{index}
  POST   /api/sessions/{sid}/index              JSON {"fresh": true} optional
  POST   /api/sessions/{sid}/queries            JSON {"query"}
  GET    /api/sessions/{sid}/history?limit=N
  DELETE /api/sessions/{sid}/history
  GET    /api/sessions/{sid}/history/{id}/download?format=markdown|pdf

The LLM provider must be reachable at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := llm.CheckAvailable(cmd.Context(), a.provider, llm.DefaultCheckTimeout); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Options{
			Engine:       a.pipeline,
			Sources:      a.sources,
			Ingester:     a.ingester,
			History:      a.history,
			Config:       cfg.Server,
			HistoryLimit: cfg.History.Limit,
		})
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}
