package output

import (
	"os"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// PageMarkdown renders a page as GitHub flavored Markdown for review
func PageMarkdown(htmlContent, pageURL string) (string, error) {
	cleaned, err := CleanHTML(htmlContent, pageURL)
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return converter.ConvertString(cleaned)
}

// SavePageMarkdown converts the page to Markdown and writes it to path
func SavePageMarkdown(htmlContent, pageURL, path string) error {
	mdStr, err := PageMarkdown(htmlContent, pageURL)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(mdStr+"\n"), 0644)
}
