// internal/fetch/detector.go
package fetch

import (
	"regexp"
	"strings"
)

// challengeSignatures are lowercase substrings served by bot walls
var challengeSignatures = []string{
	"captcha",
	"access denied",
	"verify you are human",
	"are you a robot",
	"are you a human",
	"unusual traffic",
	"request unsuccessful. incapsula",
	"pardon our interruption",
	"attention required! | cloudflare",
	"checking your browser before accessing",
	"px-captcha",
}

// IsChallenge reports whether html looks like a bot-challenge page.
// Matching is case-insensitive.
func IsChallenge(html string) bool {
	lower := strings.ToLower(html)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

var (
	scriptTagRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleTagRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	anyTagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	mountRe     = regexp.MustCompile(`(?i)<div[^>]+id=["'](root|app|__next|__nuxt|svelte)["'][^>]*>\s*</div>`)
)

// DetectJavaScriptFramework names the client-side framework that produced
// the markup, or "Unknown".
func DetectJavaScriptFramework(html string) string {
	lower := strings.ToLower(html)

	switch {
	case strings.Contains(lower, "__next_data__") || strings.Contains(lower, `id="__next"`):
		return "Next.js"
	case strings.Contains(lower, "__nuxt__") || strings.Contains(lower, `id="__nuxt"`):
		return "Nuxt"
	case strings.Contains(lower, "data-reactroot") || strings.Contains(lower, "react-dom"):
		return "React"
	case strings.Contains(lower, "ng-version") || strings.Contains(lower, "ng-app"):
		return "Angular"
	case strings.Contains(lower, "data-v-app") || strings.Contains(lower, "vue.runtime"):
		return "Vue"
	case strings.Contains(lower, "svelte-"):
		return "Svelte"
	}
	return "Unknown"
}

// LooksLikeShell reports whether html is a script-only application shell:
// an empty mount node or almost no visible text next to scripts.
func LooksLikeShell(html string) bool {
	scripts := len(scriptTagRe.FindAllStringIndex(html, -1))
	if scripts == 0 {
		return false
	}

	if mountRe.MatchString(html) {
		return true
	}

	text := styleTagRe.ReplaceAllString(scriptTagRe.ReplaceAllString(html, " "), " ")
	text = anyTagRe.ReplaceAllString(text, " ")
	visible := len(strings.Join(strings.Fields(text), " "))

	return visible < 200 && strings.Count(strings.ToLower(html), "<div") < 5
}
