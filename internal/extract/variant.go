package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// variantLabels are scanned in priority order: the first label with a usable
// value wins even when a later label appears earlier on the page.
var variantLabels = []string{
	"Color", "Colour", "Finish", "Orientation", "Configuration", "Size", "Style", "Material",
}

var variantLabelRes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(variantLabels))
	for i, label := range variantLabels {
		out[i] = regexp.MustCompile(`(?im)\b` + label + `\s*[:：]\s*([^\n]{1,40}?)\s*$`)
	}
	return out
}()

// placeholderPrefixes mark option prompts rather than chosen values
var placeholderPrefixes = []string{"select", "choose", "please"}

// urlVariantParams maps query keys to labels; the first key present for a
// label wins
var urlVariantParams = []struct {
	label string
	keys  []string
}{
	{"Color", []string{"color_name", "color"}},
	{"Size", []string{"size_name", "size"}},
}

const titleSeparators = " \t-–—:()|,"

// InferVariant reconstructs the selected product option, trying in order:
// the title extension over the social title, structured attributes, a scan
// of visible "Label: value" text, and query parameters of canonicalURL.
func InferVariant(p *Page, title, canonicalURL string) string {
	v, _ := cascade("variant", p, []stage[string]{
		{"title_delta", func(p *Page) (string, bool) {
			d := titleDelta(title, NormalizeSpace(p.Meta("og:title", "twitter:title")))
			return d, d != ""
		}},
		{"structured_attributes", func(p *Page) (string, bool) {
			for _, c := range p.Candidates() {
				if len(c.Attributes) == 0 {
					continue
				}
				parts := make([]string, 0, len(c.Attributes))
				for _, a := range c.Attributes {
					parts = append(parts, a.Label+": "+a.Value)
				}
				return strings.Join(parts, ", "), true
			}
			return "", false
		}},
		{"label_scan", func(p *Page) (string, bool) {
			v := scanLabels(p.Text())
			return v, v != ""
		}},
		{"url_params", func(p *Page) (string, bool) {
			v := variantFromURL(canonicalURL)
			return v, v != ""
		}},
	})
	return v
}

// titleDelta returns what title adds after socialTitle, when title extends it
func titleDelta(title, socialTitle string) string {
	if title == "" || socialTitle == "" || title == socialTitle {
		return ""
	}
	if !strings.HasPrefix(title, socialTitle) {
		return ""
	}
	return strings.Trim(title[len(socialTitle):], titleSeparators)
}

func scanLabels(text string) string {
	for i, re := range variantLabelRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			value := strings.TrimSpace(m[1])
			if value == "" || isPlaceholder(value) {
				continue
			}
			return variantLabels[i] + ": " + value
		}
	}
	return ""
}

func isPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, prefix := range placeholderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func variantFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()

	var parts []string
	for _, param := range urlVariantParams {
		for _, key := range param.keys {
			if v := NormalizeSpace(q.Get(key)); v != "" {
				parts = append(parts, param.label+": "+v)
				break
			}
		}
	}
	return strings.Join(parts, ", ")
}
