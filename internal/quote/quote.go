// Package quote turns extracted product prices into landed-cost quotes:
// goods, duty, freight, tax and a tiered margin per line item.
package quote

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidLine is returned for line items that cannot be priced
	ErrInvalidLine = errors.New("invalid quote line")

	// ErrInvalidTiers is returned when margin tiers cannot be parsed
	ErrInvalidTiers = errors.New("invalid margin tiers")
)

// DefaultTiers is the margin schedule used when none is configured
const DefaultTiers = "500:0.35,2000:0.25,0:0.18"

// Line is one item of a quote request
type Line struct {
	Description string          `json:"description,omitempty"`
	FirstCost   decimal.Decimal `json:"firstCost"`
	Qty         int64           `json:"qty" validate:"min=1"`
	VolumeFt3   decimal.Decimal `json:"volumeFt3"`
}

// Tier applies Rate to lines whose unit landed cost is at most UpTo.
// A zero UpTo means no upper bound.
type Tier struct {
	UpTo decimal.Decimal
	Rate decimal.Decimal
}

// Rates are the parameters of the landed-cost formula
type Rates struct {
	Duty          decimal.Decimal
	FreightPerFt3 decimal.Decimal
	Tax           decimal.Decimal
	Tiers         []Tier
}

// LineQuote is the cost breakdown of one line. All amounts are in cents
// precision.
type LineQuote struct {
	Line
	Goods      decimal.Decimal `json:"goods"`
	Duty       decimal.Decimal `json:"duty"`
	Freight    decimal.Decimal `json:"freight"`
	Landed     decimal.Decimal `json:"landed"`
	Tax        decimal.Decimal `json:"tax"`
	Cost       decimal.Decimal `json:"cost"`
	MarginRate decimal.Decimal `json:"marginRate"`
	Sell       decimal.Decimal `json:"sell"`
	UnitLanded decimal.Decimal `json:"unitLanded"`
	UnitSell   decimal.Decimal `json:"unitSell"`
}

// Totals sums every line of a quote
type Totals struct {
	Goods   decimal.Decimal `json:"goods"`
	Duty    decimal.Decimal `json:"duty"`
	Freight decimal.Decimal `json:"freight"`
	Landed  decimal.Decimal `json:"landed"`
	Tax     decimal.Decimal `json:"tax"`
	Cost    decimal.Decimal `json:"cost"`
	Sell    decimal.Decimal `json:"sell"`
	Margin  decimal.Decimal `json:"margin"`
}

// Quote is a priced set of lines
type Quote struct {
	Lines  []LineQuote `json:"lines"`
	Totals Totals      `json:"totals"`
}

// Calculator prices quote lines with a fixed set of rates
type Calculator struct {
	rates Rates
}

// New validates rates and returns a Calculator. Tiers are sorted ascending
// with the unbounded tier last.
func New(rates Rates) (*Calculator, error) {
	if rates.Duty.IsNegative() || rates.FreightPerFt3.IsNegative() || rates.Tax.IsNegative() {
		return nil, fmt.Errorf("rates must not be negative")
	}
	if len(rates.Tiers) == 0 {
		tiers, err := ParseTiers(DefaultTiers)
		if err != nil {
			return nil, err
		}
		rates.Tiers = tiers
	}

	tiers := append([]Tier(nil), rates.Tiers...)
	sortTiers(tiers)
	if !tiers[len(tiers)-1].UpTo.IsZero() {
		return nil, fmt.Errorf("%w: the last tier must be unbounded (0)", ErrInvalidTiers)
	}
	rates.Tiers = tiers

	return &Calculator{rates: rates}, nil
}

// Rates returns the rates in use
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Line prices a single line item
func (c *Calculator) Line(l Line) (LineQuote, error) {
	if l.Qty < 1 {
		return LineQuote{}, fmt.Errorf("%w: qty must be at least 1", ErrInvalidLine)
	}
	if l.FirstCost.IsNegative() {
		return LineQuote{}, fmt.Errorf("%w: firstCost must not be negative", ErrInvalidLine)
	}
	if l.VolumeFt3.IsNegative() {
		return LineQuote{}, fmt.Errorf("%w: volumeFt3 must not be negative", ErrInvalidLine)
	}

	qty := decimal.NewFromInt(l.Qty)

	q := LineQuote{Line: l}
	q.Goods = cents(l.FirstCost.Mul(qty))
	q.Duty = cents(q.Goods.Mul(c.rates.Duty))
	q.Freight = cents(l.VolumeFt3.Mul(qty).Mul(c.rates.FreightPerFt3))
	q.Landed = q.Goods.Add(q.Duty).Add(q.Freight)
	q.Tax = cents(q.Landed.Mul(c.rates.Tax))
	q.Cost = q.Landed.Add(q.Tax)
	q.UnitLanded = cents(q.Landed.Div(qty))
	q.MarginRate = c.marginFor(q.UnitLanded)
	q.Sell = cents(q.Cost.Mul(decimal.NewFromInt(1).Add(q.MarginRate)))
	q.UnitSell = cents(q.Sell.Div(qty))

	return q, nil
}

// Quote prices every line and sums the totals. The first invalid line
// fails the whole quote.
func (c *Calculator) Quote(lines []Line) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, fmt.Errorf("%w: no items", ErrInvalidLine)
	}

	out := Quote{Lines: make([]LineQuote, 0, len(lines))}
	for i, l := range lines {
		q, err := c.Line(l)
		if err != nil {
			return Quote{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		out.Lines = append(out.Lines, q)

		t := &out.Totals
		t.Goods = t.Goods.Add(q.Goods)
		t.Duty = t.Duty.Add(q.Duty)
		t.Freight = t.Freight.Add(q.Freight)
		t.Landed = t.Landed.Add(q.Landed)
		t.Tax = t.Tax.Add(q.Tax)
		t.Cost = t.Cost.Add(q.Cost)
		t.Sell = t.Sell.Add(q.Sell)
	}
	out.Totals.Margin = out.Totals.Sell.Sub(out.Totals.Cost)

	return out, nil
}

func (c *Calculator) marginFor(unitLanded decimal.Decimal) decimal.Decimal {
	for _, t := range c.rates.Tiers {
		if t.UpTo.IsZero() || unitLanded.LessThanOrEqual(t.UpTo) {
			return t.Rate
		}
	}
	return decimal.Zero
}

// ParseTiers reads a margin schedule such as "500:0.35,2000:0.25,0:0.18"
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bound, rate, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not bound:rate", ErrInvalidTiers, part)
		}
		upTo, err := decimal.NewFromString(strings.TrimSpace(bound))
		if err != nil || upTo.IsNegative() {
			return nil, fmt.Errorf("%w: bad bound %q", ErrInvalidTiers, bound)
		}
		r, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil || r.IsNegative() {
			return nil, fmt.Errorf("%w: bad rate %q", ErrInvalidTiers, rate)
		}
		tiers = append(tiers, Tier{UpTo: upTo, Rate: r})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrInvalidTiers)
	}
	return tiers, nil
}

func sortTiers(tiers []Tier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		a, b := tiers[i].UpTo, tiers[j].UpTo
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.LessThan(b)
	})
}

// cents rounds half away from zero to two places; amounts are never
// negative so this is half-up.
func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
