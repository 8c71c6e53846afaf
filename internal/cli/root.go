// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/law-makers/landed/internal/app"
	"github.com/law-makers/landed/internal/config"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "landed",
	Short: "Extract product data from retail pages and quote landed cost",
	Long: `Landed reads a retail product page and reports its title, price, image and
variant with per-field confidence, then prices it as a landed-cost quote
(duty, freight, tax and margin).

Pages are fetched directly first. Blocked pages and bot challenges escalate to
a rendering backend: the rendering proxy (default) or a local headless Chrome.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: startApp,
	PersistentPostRun: stopApp,
}

// Execute runs the CLI with ctx and exits non-zero on failure. This is
// called by main.main().
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)

	// Disable the default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().BoolP("help", "h", false, "Help for landed")
	rootCmd.Flags().Bool("version", false, "Version for landed")

	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
}

// startApp loads configuration and wires the application before a command
// runs. Configuration errors, such as a missing proxy API key, stop here.
func startApp(cmd *cobra.Command, args []string) error {
	if !needsApp(cmd) || GetAppFromCmd(cmd) != nil {
		return nil
	}

	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	SetApp(cmd, a)
	return nil
}

// stopApp releases the application after the command ran
func stopApp(cmd *cobra.Command, args []string) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Close(ctx)
	SetApp(cmd, nil)
}

// appFor returns the application started for cmd
func appFor(cmd *cobra.Command) (*app.Application, error) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}
