package extract

var titleStages = []stage[string]{
	{"structured_data", func(p *Page) (string, bool) {
		for _, c := range p.Candidates() {
			if c.Name != "" {
				return c.Name, true
			}
		}
		return "", false
	}},
	{"social_meta", func(p *Page) (string, bool) {
		t := NormalizeSpace(p.Meta("og:title", "twitter:title"))
		return t, t != ""
	}},
	{"title_tag", func(p *Page) (string, bool) {
		t := NormalizeSpace(p.Doc.Find("title").First().Text())
		return t, t != ""
	}},
	{"heading", func(p *Page) (string, bool) {
		t := NormalizeSpace(p.Doc.Find("h1").First().Text())
		return t, t != ""
	}},
}

// ResolveTitle returns the product title, whitespace-normalized
func ResolveTitle(p *Page) string {
	t, _ := cascade("title", p, titleStages)
	return t
}
