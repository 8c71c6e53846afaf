// internal/cli/batch.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/landed/internal/reqctx"
	"github.com/law-makers/landed/internal/ui"
	"github.com/law-makers/landed/internal/utils/output"
	urlutil "github.com/law-makers/landed/internal/utils/url"
	"github.com/law-makers/landed/pkg/models"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	batchFile   string
	batchOut    string
	batchFormat string
	batchImages string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [url...]",
	Short: "Extract many product pages concurrently",
	Long: `Extracts every URL given as an argument or listed in --file (one per line,
# starts a comment, - reads stdin). Results keep the input order.`,
	Example: `  # URLs from a file, written as CSV
  landed batch --file urls.txt --out products.csv

  # A few URLs, at most 4 at a time
  landed batch https://a.example.com/p/1 https://b.example.com/p/2 --concurrency 4`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchFile, "file", "", "File with one URL per line (- for stdin)")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "Write results to a file (.json or .csv)")
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "table", "Stdout format when --out is not set: table, json or csv")
	batchCmd.Flags().StringVar(&batchImages, "images", "", "Download product images into this directory")
	batchCmd.Flags().Int("concurrency", 0, "Extractions in flight (0 picks a default)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	urls := append([]string(nil), args...)
	if batchFile != "" {
		fromFile, err := readURLList(cmd.InOrStdin(), batchFile)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given")
	}
	for _, u := range urls {
		if err := urlutil.ValidateURL(u); err != nil {
			return fmt.Errorf("%s: %w", u, err)
		}
	}
	if err := checkFormat(batchFormat); err != nil {
		return err
	}

	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		bar = progressbar.NewOptions(len(urls),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Extracting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	ctx := reqctx.WithRequestContext(cmd.Context())
	records := a.Extractor.Batch(ctx, urls, a.Config.BatchConcurrency, func(int, models.ProductRecord) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}

	found := 0
	for _, rec := range records {
		if rec.Confidence.Price {
			found++
		}
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.Info(fmt.Sprintf("Priced %d of %d pages", found, len(records))))

	if batchImages != "" {
		saveImages(cmd, a, records, batchImages)
	}

	if batchOut == "" {
		return writeRecords(cmd.OutOrStdout(), batchFormat, records)
	}

	switch strings.ToLower(filepath.Ext(batchOut)) {
	case ".csv":
		err = output.SaveCSV(records, batchOut)
	default:
		err = output.SaveJSON(records, batchOut)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", batchOut, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Saved to "+batchOut))
	return nil
}

// readURLList reads one URL per line, skipping blanks and # comments
func readURLList(stdin io.Reader, path string) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
