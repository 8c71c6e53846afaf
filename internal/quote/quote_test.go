package quote

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCalc(t *testing.T) *Calculator {
	t.Helper()
	tiers, err := ParseTiers("500:0.35,2000:0.25,0:0.18")
	require.NoError(t, err)
	c, err := New(Rates{Duty: d("0.25"), FreightPerFt3: d("12"), Tax: d("0.1"), Tiers: tiers})
	require.NoError(t, err)
	return c
}

func TestLine_Breakdown(t *testing.T) {
	c := newCalc(t)

	q, err := c.Line(Line{FirstCost: d("999.00"), Qty: 2, VolumeFt3: d("40")})
	require.NoError(t, err)

	// goods 1998, duty 499.50, freight 40*2*12 = 960
	assert.Equal(t, "1998", q.Goods.String())
	assert.Equal(t, "499.5", q.Duty.String())
	assert.Equal(t, "960", q.Freight.String())
	assert.Equal(t, "3457.5", q.Landed.String())
	assert.Equal(t, "345.75", q.Tax.String())
	assert.Equal(t, "3803.25", q.Cost.String())
	// unit landed 1728.75 falls in the 2000 tier
	assert.Equal(t, "1728.75", q.UnitLanded.String())
	assert.Equal(t, "0.25", q.MarginRate.String())
	assert.Equal(t, "4754.06", q.Sell.String())
	assert.Equal(t, "2377.03", q.UnitSell.String())
}

func TestLine_TierSelection(t *testing.T) {
	c := newCalc(t)
	zero := Rates{Duty: decimal.Zero, FreightPerFt3: decimal.Zero, Tax: decimal.Zero, Tiers: c.Rates().Tiers}
	flat, err := New(zero)
	require.NoError(t, err)

	tests := []struct {
		cost string
		want string
	}{
		{"100", "0.35"},
		{"500", "0.35"},
		{"500.01", "0.25"},
		{"2000", "0.25"},
		{"2000.01", "0.18"},
		{"99999", "0.18"},
	}

	for _, tt := range tests {
		q, err := flat.Line(Line{FirstCost: d(tt.cost), Qty: 1})
		require.NoError(t, err)
		assert.Equal(t, tt.want, q.MarginRate.String(), "cost %s", tt.cost)
	}
}

func TestLine_RoundsHalfUp(t *testing.T) {
	c, err := New(Rates{Duty: d("0.005"), Tiers: []Tier{{Rate: decimal.Zero}}})
	require.NoError(t, err)

	q, err := c.Line(Line{FirstCost: d("1.00"), Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, "0.01", q.Duty.String())
}

func TestLine_Invalid(t *testing.T) {
	c := newCalc(t)

	for _, l := range []Line{
		{FirstCost: d("10"), Qty: 0},
		{FirstCost: d("-1"), Qty: 1},
		{FirstCost: d("10"), Qty: 1, VolumeFt3: d("-2")},
	} {
		_, err := c.Line(l)
		assert.ErrorIs(t, err, ErrInvalidLine)
	}
}

func TestQuote_Totals(t *testing.T) {
	c := newCalc(t)

	q, err := c.Quote([]Line{
		{Description: "Blue Sofa", FirstCost: d("999.00"), Qty: 2, VolumeFt3: d("40")},
		{Description: "Red Chair", FirstCost: d("149.99"), Qty: 4, VolumeFt3: d("6.5")},
	})
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)

	var sell, cost decimal.Decimal
	for _, l := range q.Lines {
		sell = sell.Add(l.Sell)
		cost = cost.Add(l.Cost)
	}
	assert.True(t, sell.Equal(q.Totals.Sell))
	assert.True(t, cost.Equal(q.Totals.Cost))
	assert.True(t, q.Totals.Margin.Equal(sell.Sub(cost)))
	assert.Equal(t, "Red Chair", q.Lines[1].Description)
}

func TestQuote_Errors(t *testing.T) {
	c := newCalc(t)

	_, err := c.Quote(nil)
	assert.ErrorIs(t, err, ErrInvalidLine)

	_, err = c.Quote([]Line{{FirstCost: d("1"), Qty: 1}, {FirstCost: d("1"), Qty: -3}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLine)
	assert.Contains(t, err.Error(), "item 2")
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers(" 0:0.18, 500:0.35 ,2000:0.25")
	require.NoError(t, err)
	require.Len(t, tiers, 3)

	c, err := New(Rates{Tiers: tiers})
	require.NoError(t, err)
	sorted := c.Rates().Tiers
	assert.Equal(t, "500", sorted[0].UpTo.String())
	assert.Equal(t, "2000", sorted[1].UpTo.String())
	assert.True(t, sorted[2].UpTo.IsZero())

	for _, bad := range []string{"", "500", "abc:0.1", "500:-0.1", "-5:0.1"} {
		_, err := ParseTiers(bad)
		assert.ErrorIs(t, err, ErrInvalidTiers, bad)
	}
}

func TestNew_RequiresUnboundedTier(t *testing.T) {
	_, err := New(Rates{Tiers: []Tier{{UpTo: d("500"), Rate: d("0.3")}}})
	assert.ErrorIs(t, err, ErrInvalidTiers)

	c, err := New(Rates{})
	require.NoError(t, err)
	assert.Len(t, c.Rates().Tiers, 3)

	_, err = New(Rates{Duty: d("-0.1")})
	assert.Error(t, err)
}
