// internal/cli/quote.go
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/law-makers/landed/internal/quote"
	"github.com/law-makers/landed/internal/reqctx"
	"github.com/law-makers/landed/internal/ui"
	"github.com/law-makers/landed/internal/utils/output"
	urlutil "github.com/law-makers/landed/internal/utils/url"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	quoteCost        string
	quoteQty         int64
	quoteVolume      string
	quoteDescription string
	quoteFormat      string
)

// quoteCmd represents the quote command
var quoteCmd = &cobra.Command{
	Use:   "quote [url]",
	Short: "Price a landed-cost quote for one item",
	Long: `Computes goods, duty, freight, tax and the tiered margin for one line item.
With a URL the first cost comes from the extracted price unless --cost is set.`,
	Example: `  # From a product page
  landed quote https://www.example.com/p/blue-sofa --qty 2 --volume 40

  # From a known cost
  landed quote --cost 999 --qty 2 --volume 40 --format=json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteCost, "cost", "", "First cost per unit")
	quoteCmd.Flags().Int64Var(&quoteQty, "qty", 1, "Quantity")
	quoteCmd.Flags().StringVar(&quoteVolume, "volume", "0", "Shipping volume per unit in cubic feet")
	quoteCmd.Flags().StringVar(&quoteDescription, "description", "", "Line description (defaults to the page title)")
	quoteCmd.Flags().StringVarP(&quoteFormat, "format", "f", "table", "Output format: table or json")
}

func runQuote(cmd *cobra.Command, args []string) error {
	if quoteFormat != "table" && quoteFormat != "json" {
		return fmt.Errorf("invalid format: %s (must be table or json)", quoteFormat)
	}
	if len(args) == 0 && quoteCost == "" {
		return fmt.Errorf("either a product URL or --cost is required")
	}

	volume, err := decimal.NewFromString(quoteVolume)
	if err != nil {
		return fmt.Errorf("invalid --volume %q", quoteVolume)
	}
	line := quote.Line{Description: quoteDescription, Qty: quoteQty, VolumeFt3: volume}

	if quoteCost != "" {
		if line.FirstCost, err = decimal.NewFromString(quoteCost); err != nil {
			return fmt.Errorf("invalid --cost %q", quoteCost)
		}
	}

	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		rawURL := strings.TrimSpace(args[0])
		if err := urlutil.ValidateURL(rawURL); err != nil {
			return err
		}
		ctx := reqctx.WithRequestContext(cmd.Context())
		rec := a.Extractor.Extract(ctx, rawURL)
		if quoteCost == "" {
			if rec.Price == nil {
				// The request id matches the extraction's debug log lines
				return reqctx.NewRequestError(ctx, fmt.Errorf("no price found on %s; pass --cost", rawURL))
			}
			line.FirstCost = *rec.Price
		}
		if line.Description == "" {
			line.Description = rec.Title
		}
	}

	q, err := a.Quote.Quote([]quote.Line{line})
	if err != nil {
		return err
	}

	if quoteFormat == "json" {
		return output.WriteJSON(cmd.OutOrStdout(), q)
	}
	printQuote(cmd.OutOrStdout(), q)
	return nil
}

func printQuote(w io.Writer, q quote.Quote) {
	for _, l := range q.Lines {
		if l.Description != "" {
			fmt.Fprintln(w, ui.Bold(l.Description))
		}
		fmt.Fprintf(w, "  %-12s %s x %d\n", "First cost", l.FirstCost.StringFixed(2), l.Qty)
		row(w, "Goods", l.Goods)
		row(w, "Duty", l.Duty)
		row(w, "Freight", l.Freight)
		row(w, "Landed", l.Landed)
		row(w, "Tax", l.Tax)
		row(w, "Cost", l.Cost)
		fmt.Fprintf(w, "  %-12s %s%%\n", "Margin", l.MarginRate.Shift(2).String())
		row(w, "Sell", l.Sell)
		row(w, "Unit landed", l.UnitLanded)
		row(w, "Unit sell", l.UnitSell)
	}
	if len(q.Lines) > 1 {
		fmt.Fprintln(w, ui.Bold("Totals"))
		row(w, "Cost", q.Totals.Cost)
		row(w, "Sell", q.Totals.Sell)
	}
	fmt.Fprintf(w, "  %-12s %s\n", "Margin", ui.Success(q.Totals.Margin.StringFixed(2)))
}

func row(w io.Writer, label string, d decimal.Decimal) {
	fmt.Fprintf(w, "  %-12s %s\n", label, d.StringFixed(2))
}
