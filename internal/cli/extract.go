// internal/cli/extract.go
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/law-makers/landed/internal/app"
	"github.com/law-makers/landed/internal/reqctx"
	"github.com/law-makers/landed/internal/ui"
	"github.com/law-makers/landed/internal/utils/output"
	urlutil "github.com/law-makers/landed/internal/utils/url"
	"github.com/law-makers/landed/pkg/models"
	"github.com/spf13/cobra"
)

var (
	extractFormat   string
	extractSavePage string
	extractImages   string
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract title, price, image and variant from a product page",
	Long: `Fetches a product page and resolves its title, price, image and variant.
Each field reports whether it was found; a page that cannot be fetched at all
still yields a record with only url and store.`,
	Example: `  # Human readable summary
  landed extract https://www.example.com/p/blue-sofa

  # JSON as served by the API
  landed extract https://www.example.com/p/blue-sofa --format=json

  # Keep the page that was used, as Markdown, for review
  landed extract https://www.example.com/p/blue-sofa --save-page=sofa.md

  # Download the product image
  landed extract https://www.example.com/p/blue-sofa --images ./images`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "table", "Output format: table, json or csv")
	extractCmd.Flags().StringVar(&extractSavePage, "save-page", "", "Write the fetched page to a file (.html or .md)")
	extractCmd.Flags().StringVar(&extractImages, "images", "", "Download the product image into this directory")
}

func runExtract(cmd *cobra.Command, args []string) error {
	rawURL := strings.TrimSpace(args[0])
	if err := urlutil.ValidateURL(rawURL); err != nil {
		return err
	}
	if err := checkFormat(extractFormat); err != nil {
		return err
	}

	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	ctx := reqctx.WithRequestContext(cmd.Context())
	res := a.Extractor.Run(ctx, rawURL)

	if extractSavePage != "" {
		switch {
		case res.Page != nil:
			pageURL := res.Page.FinalURL
			if pageURL == "" {
				pageURL = rawURL
			}
			if err := output.SavePage(res.Page.HTML, pageURL, extractSavePage); err != nil {
				return fmt.Errorf("failed to save page: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Saved page to "+extractSavePage))
		case res.Cached:
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Info("Record served from cache; no page to save"))
		default:
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Info("No page was fetched; nothing to save"))
		}
	}

	records := []models.ProductRecord{res.Record}
	if extractImages != "" {
		saveImages(cmd, a, records, extractImages)
	}

	return writeRecords(cmd.OutOrStdout(), extractFormat, records)
}

// saveImages downloads record images and reports each outcome on stderr.
// Failed downloads do not fail the command.
func saveImages(cmd *cobra.Command, a *app.Application, records []models.ProductRecord, dir string) {
	results := a.Images.SaveImages(cmd.Context(), records, dir, a.Config.BatchConcurrency)
	for _, res := range results {
		switch {
		case res.URL == "":
		case res.Error != nil:
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Error("Image "+res.URL+": "+res.Error.Error()))
		default:
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Saved image to "+res.FilePath))
		}
	}
}

func checkFormat(format string) error {
	switch format {
	case "table", "json", "csv":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (must be table, json or csv)", format)
	}
}

// writeRecords prints records in the chosen format. A single record in JSON
// uses the API response shape.
func writeRecords(w io.Writer, format string, records []models.ProductRecord) error {
	switch format {
	case "json":
		if len(records) == 1 {
			return output.WriteJSON(w, models.ExtractResponse{OK: true, ProductRecord: records[0]})
		}
		resp := models.BatchResponse{OK: true, Results: make([]models.ExtractResponse, len(records))}
		for i, rec := range records {
			resp.Results[i] = models.ExtractResponse{OK: true, ProductRecord: rec}
		}
		return output.WriteJSON(w, resp)
	case "csv":
		return output.WriteCSV(w, records)
	default:
		for i, rec := range records {
			if i > 0 {
				fmt.Fprintln(w)
			}
			printRecord(w, rec)
		}
		return nil
	}
}

func printRecord(w io.Writer, rec models.ProductRecord) {
	price := ""
	if rec.Price != nil {
		price = strings.TrimSpace(rec.Price.StringFixed(2) + " " + rec.Currency)
	}
	strategy := string(rec.FetchStrategy)
	if strategy == "" {
		strategy = "none"
	}

	fmt.Fprintf(w, "%s %s\n", ui.Bold("URL:     "), rec.URL)
	fmt.Fprintf(w, "%s %s\n", ui.Bold("Store:   "), rec.Store)
	fmt.Fprintf(w, "%s %s\n", ui.Bold("Fetched: "), strategy)
	printField(w, "Title:   ", rec.Title, rec.Confidence.Title)
	printField(w, "Price:   ", price, rec.Confidence.Price)
	printField(w, "Image:   ", rec.Image, rec.Confidence.Image)
	printField(w, "Variant: ", rec.Variant, rec.Confidence.Variant)
}

func printField(w io.Writer, label, value string, found bool) {
	if !found {
		value = ui.Dim("(not found)")
	}
	fmt.Fprintf(w, "%s %s  %s\n", ui.Bold(label), value, ui.Mark(found))
}
