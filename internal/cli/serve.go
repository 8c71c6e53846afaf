// internal/cli/serve.go
package cli

import (
	"github.com/law-makers/landed/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction and quoting over HTTP",
	Long: `Starts the JSON API:

  GET  /health
  POST /api/v1/extract          {"url": "..."}
  GET  /api/v1/extract?url=...
  POST /api/v1/extract/batch    {"urls": ["...", "..."]}
  POST /api/v1/quote            {"items": [{"firstCost": "999", "qty": 2, "volumeFt3": 40}]}

The server stops gracefully on interrupt.`,
	Example: `  landed serve --addr :9000`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().Int("concurrency", 0, "Batch extractions in flight per request (0 picks a default)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	cfg := a.Config

	s := server.New(a.Extractor, a.Quote, server.Options{
		Addr:             cfg.ListenAddr,
		AllowedOrigins:   cfg.AllowedOrigins,
		BatchConcurrency: cfg.BatchConcurrency,
	})
	return s.ListenAndServe(cmd.Context())
}
