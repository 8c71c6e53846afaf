package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPage(t *testing.T, pageURL, html string) *Page {
	t.Helper()
	p, err := NewPage(pageURL, html)
	require.NoError(t, err)
	return p
}

func TestResolve_StructuredProduct(t *testing.T) {
	html := `<html><head>` +
		ldJSON(`{"@type":"Product","name":"Blue Sofa","offers":{"price":"999.00","priceCurrency":"USD"},"image":"https://x/img.jpg"}`) +
		`</head><body><h1>Something else</h1></body></html>`

	f, err := FromHTML("https://shop.example.com/p/1", "https://shop.example.com/p/1", html)
	require.NoError(t, err)

	assert.Equal(t, "Blue Sofa", f.Title)
	require.NotNil(t, f.Price)
	assert.True(t, f.Price.Equal(decimal.RequireFromString("999.00")))
	assert.Equal(t, "USD", f.Currency)
	assert.Equal(t, "https://x/img.jpg", f.Image)
	assert.Empty(t, f.Variant)
}

func TestResolve_SocialTitleAndBodyPrice(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Red Chair - Walnut"></head>
		<body><p>Sale $149.99</p></body></html>`

	f, err := FromHTML("https://shop.example.com/chair", "https://shop.example.com/chair", html)
	require.NoError(t, err)

	assert.Equal(t, "Red Chair - Walnut", f.Title)
	require.NotNil(t, f.Price)
	assert.True(t, f.Price.Equal(decimal.RequireFromString("149.99")))
	assert.Equal(t, "USD", f.Currency)
}

func TestResolve_MalformedBlockThenValid(t *testing.T) {
	html := `<html><head>` +
		ldJSON(`{"@type": "Product", "name": "Ghost" ,, }`) +
		ldJSON(`{"@type":"Product","name":"Teak Bench","offers":[{"price":"310.00","priceCurrency":"GBP"}],"image":["https://x/bench.jpg"]}`) +
		`</head></html>`

	f, err := FromHTML("https://shop.example.co.uk/bench", "https://shop.example.co.uk/bench", html)
	require.NoError(t, err)

	assert.Equal(t, "Teak Bench", f.Title)
	assert.Equal(t, "310", f.Price.String())
	assert.Equal(t, "GBP", f.Currency)
	assert.Equal(t, "https://x/bench.jpg", f.Image)
}

func TestResolve_NothingFound(t *testing.T) {
	f, err := FromHTML("https://shop.example.com/x", "https://shop.example.com/x", `<html><body></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, Fields{}, f)
}

func TestResolve_Deterministic(t *testing.T) {
	html := `<html><head><title>Desk | Shop</title>
		<script type="application/json">{"b":{"name":"B","price":"2"},"a":{"name":"A","price":"1"}}</script>
		</head><body><span class="price">$12.00</span><img src="https://x/a.jpg"></body></html>`

	first, err := FromHTML("https://shop.example.com/d", "https://shop.example.com/d?color=Oak", html)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := FromHTML("https://shop.example.com/d", "https://shop.example.com/d?color=Oak", html)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "1", first.Price.String())
}

func TestResolveTitle_Cascade(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{"twitter", `<meta name="twitter:title" content="Tw  Title">`, "Tw Title"},
		{"title tag", `<title>
			Page   Title </title><h1>Heading</h1>`, "Page Title"},
		{"heading", `<body><h1> Only <b>Heading</b></h1></body>`, "Only Heading"},
		{"none", `<body><p>text</p></body>`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveTitle(mustPage(t, "", tc.html)))
		})
	}
}

func TestResolvePrice_Stages(t *testing.T) {
	cases := []struct {
		name     string
		html     string
		amount   string
		currency string
	}{
		{
			name:     "product meta",
			html:     `<meta property="product:price:amount" content="1,249.00"><meta property="product:price:currency" content="CAD"><p>$5</p>`,
			amount:   "1249",
			currency: "CAD",
		},
		{
			name:     "itemprop text",
			html:     `<div itemscope><span itemprop="price">€ 89,90</span></div>`,
			amount:   "89.9",
			currency: "EUR",
		},
		{
			name:     "retailer selector beats struck price",
			html:     `<span class="a-price" data-a-strike="true"><span class="a-offscreen">$500.00</span></span><span class="a-price"><span class="a-offscreen">$420.00</span></span>`,
			amount:   "420",
			currency: "USD",
		},
		{
			name:     "generic price class skips was price",
			html:     `<div><span class="price-was">$80.00</span><del><span class="price">$79.00</span></del><span class="product-price">$64.00</span></div>`,
			amount:   "64",
			currency: "USD",
		},
		{
			name:     "data-price attribute",
			html:     `<div data-price="35.5">Buy now</div>`,
			amount:   "35.5",
			currency: "",
		},
		{
			name:     "body text fallback",
			html:     `<p>Only £12.50 today</p>`,
			amount:   "12.5",
			currency: "GBP",
		},
		{
			name:     "symbol after amount",
			html:     `<p>Preis 1.299 €</p>`,
			amount:   "1299",
			currency: "EUR",
		},
		{
			name:     "code after amount",
			html:     `<p>Total 45.00 USD</p>`,
			amount:   "45",
			currency: "USD",
		},
		{
			name:     "superscript cents",
			html:     `<span class="price">$1,299<sup>99</sup></span>`,
			amount:   "1299.99",
			currency: "USD",
		},
		{
			name:     "superscript cents after dotted thousands",
			html:     `<span class="price">1.299<sup>99</sup> €</span>`,
			amount:   "1299.99",
			currency: "EUR",
		},
		{
			name:     "child nodes do not run together",
			html:     `<div class="price-box"><span>$24.00</span><span>2</span></div>`,
			amount:   "24",
			currency: "USD",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price, ok := ResolvePrice(mustPage(t, "", "<html><body>"+tc.html+"</body></html>"))
			require.True(t, ok)
			assert.Equal(t, tc.amount, price.Amount.String())
			assert.Equal(t, tc.currency, price.Currency)
		})
	}
}

func TestResolvePrice_ZeroIsNoResult(t *testing.T) {
	p := mustPage(t, "", `<html><head>`+ldJSON(`{"@type":"Product","name":"Free","offers":{"price":"0.00"}}`)+`</head><body>$0.00</body></html>`)
	_, ok := ResolvePrice(p)
	assert.False(t, ok)
}

func TestResolveImage_Cascade(t *testing.T) {
	cases := []struct {
		name string
		url  string
		html string
		want string
	}{
		{"relative structured image", "https://shop.example.com/p/1", ldJSON(`{"@type":"Product","name":"A","image":"/img/a.jpg"}`), "https://shop.example.com/img/a.jpg"},
		{"og image", "https://shop.example.com/p/1", `<meta property="og:image" content="//cdn.example.com/b.jpg">`, "https://cdn.example.com/b.jpg"},
		{"image_src link", "https://shop.example.com/p/1", `<link rel="image_src" href="c.jpg">`, "https://shop.example.com/p/c.jpg"},
		{"first absolute img", "https://shop.example.com/p/1", `<img src="/rel.jpg"><img src="data:image/png;base64,AA"><img src="https://cdn.example.com/d.jpg">`, "https://cdn.example.com/d.jpg"},
		{"none", "https://shop.example.com/p/1", `<img src="/rel.jpg">`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveImage(mustPage(t, tc.url, "<html><head>"+tc.html+"</head></html>")))
		})
	}
}

func TestPageText_BlockAware(t *testing.T) {
	p := mustPage(t, "", `<html><body>
		<div>Color: <span>Brown</span></div>
		<p>Size:   Large</p>
		<script>var hidden = "Material: Steel";</script>
		<ul><li>One</li><li>Two</li></ul>
	</body></html>`)

	assert.Equal(t, "Color: Brown\nSize: Large\nOne\nTwo", p.Text())
}

func TestPageMeta(t *testing.T) {
	p := mustPage(t, "", `<head>
		<meta property="og:title" content="">
		<meta name="og:title" content="Named">
		<meta itemprop="priceCurrency" content="USD">
	</head>`)

	assert.Equal(t, "Named", p.Meta("og:title"))
	assert.Equal(t, "USD", p.Meta("missing", "priceCurrency"))
	assert.Equal(t, "", p.Meta("nothing"))
}
