package output

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	urlutil "github.com/law-makers/landed/internal/utils/url"
	"golang.org/x/net/html"
)

// CleanHTML strips scripts, styles and form controls, keeps only link and
// image attributes, and makes those URLs absolute against pageURL.
func CleanHTML(htmlContent, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	// Remove unwanted tags
	doc.Find("script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas, template").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		node := s.Nodes[0]
		var newAttrs []html.Attribute
		for _, attr := range node.Attr {
			switch {
			case node.Data == "a" && attr.Key == "href",
				node.Data == "img" && attr.Key == "src":
				attr.Val = urlutil.ResolveURL(pageURL, attr.Val)
				newAttrs = append(newAttrs, attr)
			case (node.Data == "a" || node.Data == "img") && attr.Key == "title",
				node.Data == "img" && attr.Key == "alt":
				newAttrs = append(newAttrs, attr)
			}
		}
		node.Attr = newAttrs
	})

	htmlStr, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlStr), nil
}

// SavePageHTML writes the cleaned page to path
func SavePageHTML(htmlContent, pageURL, path string) error {
	cleaned, err := CleanHTML(htmlContent, pageURL)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(cleaned+"\n"), 0644)
}

// SavePage writes a page snapshot, as Markdown for .md/.markdown paths and as
// cleaned HTML otherwise.
func SavePage(htmlContent, pageURL, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return SavePageMarkdown(htmlContent, pageURL, path)
	default:
		return SavePageHTML(htmlContent, pageURL, path)
	}
}
