package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	urlutil "github.com/law-makers/landed/internal/utils/url"
)

var imageStages = []stage[string]{
	{"structured_data", func(p *Page) (string, bool) {
		for _, c := range p.Candidates() {
			for _, img := range c.Images {
				if u := resolveImage(p.URL, img); u != "" {
					return u, true
				}
			}
		}
		return "", false
	}},
	{"social_meta", func(p *Page) (string, bool) {
		u := resolveImage(p.URL, p.Meta("og:image", "og:image:secure_url", "og:image:url", "twitter:image", "twitter:image:src"))
		return u, u != ""
	}},
	{"image_src_link", func(p *Page) (string, bool) {
		u := resolveImage(p.URL, p.Doc.Find("link[rel~=image_src]").First().AttrOr("href", ""))
		return u, u != ""
	}},
	{"first_absolute_img", func(p *Page) (string, bool) {
		var found string
		p.Doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src := strings.TrimSpace(s.AttrOr("src", ""))
			if urlutil.IsAbsoluteHTTP(src) {
				found = src
				return false
			}
			return true
		})
		return found, found != ""
	}},
}

// ResolveImage returns the main product image as an absolute URL
func ResolveImage(p *Page) string {
	u, _ := cascade("image", p, imageStages)
	return u
}

// resolveImage makes href absolute against the page URL. Inline data URIs
// are not useful as a product image and are dropped.
func resolveImage(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "data:") {
		return ""
	}
	resolved := urlutil.ResolveURL(pageURL, href)
	if !urlutil.IsAbsoluteHTTP(resolved) {
		return ""
	}
	return resolved
}
