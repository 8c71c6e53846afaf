package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL performs comprehensive URL validation
func ValidateURL(urlStr string) error {
	if strings.TrimSpace(urlStr) == "" {
		return fmt.Errorf("invalid URL: empty")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Hostname() == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// IsAbsoluteHTTP reports whether raw is a scheme-qualified http(s) URL
func IsAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// knownStores maps hostname substrings to retailer identifiers. Checked in
// order, first match wins.
var knownStores = []struct {
	match string
	store string
}{
	{"amazon.", "amazon"},
	{"amzn.", "amazon"},
	{"wayfair.", "wayfair"},
	{"ikea.", "ikea"},
	{"walmart.", "walmart"},
	{"target.com", "target"},
	{"homedepot.", "homedepot"},
	{"lowes.", "lowes"},
	{"bestbuy.", "bestbuy"},
	{"costco.", "costco"},
	{"overstock.", "overstock"},
	{"ebay.", "ebay"},
	{"etsy.", "etsy"},
	{"westelm.", "westelm"},
	{"potterybarn.", "potterybarn"},
	{"crateandbarrel.", "crateandbarrel"},
	{"cb2.", "cb2"},
	{"restorationhardware.", "rh"},
	{"rh.com", "rh"},
	{"article.com", "article"},
	{"allmodern.", "allmodern"},
	{"birchlane.", "birchlane"},
}

// StoreFromURL derives the retailer identifier from the URL hostname: a known
// retailer when one matches, otherwise the bare host without a leading "www.".
func StoreFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}

	for _, k := range knownStores {
		if strings.Contains(host, k.match) {
			return k.store
		}
	}

	return strings.TrimPrefix(host, "www.")
}
